package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
	"FeedWatcher/internal/textutil"
)

// FeedCmd prints the items that pass every enabled filter.
func FeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show feed items accepted by all enabled filters",
		Long:  "Fetch the feed and show the items accepted by every enabled filter. Nothing is marked as seen.",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				feed, err := a.Orchestrator().Browse(ctx)
				if err != nil {
					return fmt.Errorf("failed to load feed: %w", err)
				}

				fmt.Fprintf(out, "Showing %d of %d item(s), updated %s\n\n",
					feed.FilteredItems, feed.TotalItems, feed.LastUpdated.Format("2006-01-02 15:04:05"))
				for _, item := range feed.Items {
					published := "unknown date"
					if !item.PublishedAt.IsZero() {
						published = item.PublishedAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(out, "%s  %s\n", dim.Sprint(published), accent.Sprint(item.Title))
					if item.Link != "" {
						fmt.Fprintf(out, "    %s\n", item.Link)
					}
					if verbose && item.Text() != "" {
						fmt.Fprintf(out, "    %s\n", textutil.Truncate(item.Text(), 300))
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Print item descriptions")
	return cmd
}
