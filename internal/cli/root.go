// Package cli implements the afterflow command line tool, which exports,
// imports and inspects a local SQLite journal.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/afterflow/internal/core"
	"github.com/JonMunkholm/afterflow/internal/links"
	"github.com/JonMunkholm/afterflow/internal/logging"
	"github.com/JonMunkholm/afterflow/internal/store"
)

var versionInfo = "dev"

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dbPath   string
	timezone string
	logLevel string

	// now is replaced in tests.
	now func() time.Time
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "afterflow.db"
	}
	return filepath.Join(home, ".config", "afterflow", "journal.db")
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globalOptions{now: time.Now})
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "afterflow",
		Short: "Afterflow journal tool",
		Long: `afterflow - export, import and inspect your Afterflow session journal

Sessions are kept in a local SQLite file. Exports use the same CSV format as
the Afterflow app, so a file exported here can be imported there and back.`,
		Version:       versionInfo,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so exported CSV on stdout stays clean.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDBPath(), "Journal database path")
	root.PersistentFlags().StringVar(&opts.timezone, "tz", "UTC", "IANA time zone for CSV dates")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newExportCmd(opts),
		newImportCmd(opts),
		newListCmd(opts),
		newClassifyCmd(opts),
	)
	return root
}

func (o *globalOptions) location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --tz %q: %w", o.timezone, err)
	}
	return loc, nil
}

// openService opens the journal and wraps it in a Service. The caller closes
// the returned store.
func (o *globalOptions) openService(ctx context.Context) (*core.Service, store.Store, error) {
	loc, err := o.location()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.OpenSQLite(ctx, o.dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}

	svc := core.NewService(st, core.ServiceConfig{
		Location: loc,
		Classify: links.Classify,
	})
	return svc, st, nil
}

// commandContext tags the command's context so service logs show the CLI
// as their source.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return core.WithRequestMeta(ctx, core.RequestMeta{Source: "cli"})
}

// userError formats err with its user message and support code, keeping the
// technical detail on a second line.
func userError(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	return fmt.Errorf("%s\n  detail: %w", core.FormatUserError(err), err)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "error", err)
	}
}
