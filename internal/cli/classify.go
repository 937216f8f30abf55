package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/afterflow/internal/links"
	"github.com/JonMunkholm/afterflow/internal/metadata"
)

func newClassifyCmd(g *globalOptions) *cobra.Command {
	var (
		fetch   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "classify <url>...",
		Short: "Show how music links are recognized",
		Long: `Classify music links the way the journal does on import.

With --fetch, display metadata is looked up through the provider's oEmbed
endpoint, falling back to a title inferred from the URL.

Examples:
  afterflow classify spotify:playlist:37i9dQZF1DX4sWSpwq3LiO
  afterflow classify --fetch https://youtu.be/dQw4w9WgXcQ`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fetcher *metadata.Fetcher
			if fetch {
				f, err := metadata.New(metadata.Config{Timeout: timeout})
				if err != nil {
					return err
				}
				fetcher = f
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, raw := range args {
				if i > 0 {
					fmt.Fprintln(out)
				}

				c, err := links.Parse(raw)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s\n  error:     %s\n", raw, err)
					continue
				}

				fmt.Fprintf(out, "%s\n", raw)
				fmt.Fprintf(out, "  provider:  %s\n", c.Provider.DisplayName())
				fmt.Fprintf(out, "  original:  %s\n", c.OriginalURL)
				fmt.Fprintf(out, "  canonical: %s\n", c.CanonicalURL)
				if endpoint, ok := links.OEmbedEndpoint(c); ok {
					fmt.Fprintf(out, "  oembed:    %s\n", endpoint)
				}

				if fetch {
					md := fetcher.Resolve(commandContext(cmd), c)
					if md.Title != "" {
						fmt.Fprintf(out, "  title:     %s (%s)\n", md.Title, md.Source)
					}
					if md.AuthorName != "" {
						fmt.Fprintf(out, "  author:    %s\n", md.AuthorName)
					}
					if md.DurationSeconds > 0 {
						fmt.Fprintf(out, "  duration:  %s\n", time.Duration(md.DurationSeconds)*time.Second)
					}
				} else if title, ok := links.FallbackTitle(c); ok {
					fmt.Fprintf(out, "  title:     %s (fallback)\n", title)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d links could not be classified", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "Look up titles through oEmbed")
	cmd.Flags().DurationVar(&timeout, "timeout", metadata.DefaultTimeout, "oEmbed request timeout")
	return cmd
}
