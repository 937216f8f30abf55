package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newImportCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import sessions from an Afterflow CSV export",
		Long: `Import every session in an Afterflow CSV export into the journal.

The import is all-or-nothing: if any row is invalid nothing is stored and
the offending row number is reported.

Examples:
  afterflow import ~/Downloads/afterflow-sessions.csv
  afterflow --tz Europe/Berlin import journal.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer closeQuietly(f)

			var size int64
			if info, err := f.Stat(); err == nil {
				size = info.Size()
			}

			ctx := commandContext(cmd)
			svc, st, err := g.openService(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(st)

			result, err := svc.ImportSessions(ctx, f)
			if err != nil {
				return userError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s %s from %s (%s) in %s\n",
				humanize.Comma(int64(result.Imported)), plural(result.Imported, "session", "sessions"),
				filepath.Base(path), humanize.Bytes(uint64(size)),
				result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
