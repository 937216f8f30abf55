package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/afterflow/internal/core"
)

func newExportCmd(g *globalOptions) *cobra.Command {
	var (
		from, to, treatment, output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions as CSV",
		Long: `Export journal sessions in the Afterflow CSV format.

Writes to stdout unless --output is given. --from and --to accept dates
(2024-03-01) or phrases ("last monday", "yesterday") and are inclusive.

Examples:
  afterflow export > journal.csv
  afterflow export --treatment Psilocybin -o psilocybin.csv
  afterflow export --from 2024-01-01 --to "yesterday"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := g.location()
			if err != nil {
				return err
			}

			var opts core.ExportOptions
			if opts.Range, err = dateRange(from, to, g.now(), loc); err != nil {
				return err
			}
			if treatment != "" {
				t, ok := parseTreatmentFlag(treatment)
				if !ok {
					return fmt.Errorf("unknown treatment %q (choose one of: %s)", treatment, treatmentNames())
				}
				opts.Treatment = t
			}

			ctx := commandContext(cmd)
			svc, st, err := g.openService(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(st)

			result, err := svc.ExportSessions(ctx, opts)
			if err != nil {
				return userError(err)
			}

			dest := "stdout"
			if output == "" || output == "-" {
				if _, err := fmt.Fprint(cmd.OutOrStdout(), result.CSV); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
			} else {
				if err := os.WriteFile(output, []byte(result.CSV), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				dest = output
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s %s (%s) to %s\n",
				humanize.Comma(int64(result.Rows)), plural(result.Rows, "session", "sessions"),
				humanize.Bytes(uint64(len(result.CSV))), dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day to include")
	cmd.Flags().StringVar(&to, "to", "", "Last day to include")
	cmd.Flags().StringVar(&treatment, "treatment", "", "Only export this treatment (e.g. Psilocybin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}

// parseTreatmentFlag accepts display names in any case ("psilocybin", "LSD").
func parseTreatmentFlag(s string) (core.TreatmentType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range core.TreatmentTypes() {
		if strings.EqualFold(t.DisplayName(), s) || strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

func treatmentNames() string {
	types := core.TreatmentTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.DisplayName()
	}
	return strings.Join(names, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
