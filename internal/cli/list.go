package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/afterflow/internal/core"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var (
		treatment string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Long: `List journal sessions, newest first.

Examples:
  afterflow list
  afterflow list --treatment Ketamine --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts core.ExportOptions
			if treatment != "" {
				t, ok := parseTreatmentFlag(treatment)
				if !ok {
					return fmt.Errorf("unknown treatment %q (choose one of: %s)", treatment, treatmentNames())
				}
				opts.Treatment = t
			}

			ctx := commandContext(cmd)
			_, st, err := g.openService(ctx)
			if err != nil {
				return err
			}
			defer closeQuietly(st)

			loc, err := g.location()
			if err != nil {
				return err
			}

			records, err := st.ListSessions(ctx, opts)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			now := g.now()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tWHEN\tTREATMENT\tMOOD\tMUSIC")
			shown := 0
			for i := len(records) - 1; i >= 0; i-- {
				if limit > 0 && shown == limit {
					break
				}
				r := records[i]
				music := "-"
				if r.MusicLinkProvider != "" {
					music = r.MusicLinkProvider.DisplayName()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d → %d\t%s\n",
					r.SessionDate.In(loc).Format(core.DateLayout),
					humanize.RelTime(r.SessionDate, now, "ago", "from now"),
					r.Treatment.DisplayName(),
					r.MoodBefore, r.MoodAfter,
					music,
				)
				shown++
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if hidden := len(records) - shown; hidden > 0 {
				fmt.Fprintf(out, "%s more %s not shown\n",
					humanize.Comma(int64(hidden)), plural(hidden, "session", "sessions"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&treatment, "treatment", "", "Only list this treatment")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to show (0 for all)")
	return cmd
}
