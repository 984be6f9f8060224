package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/usecase"
)

// TickCmd runs a single tick and prints its report.
func TickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one fetch, filter and notify cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				report, err := a.Orchestrator().RunTick(ctx)
				if err != nil && !errors.Is(err, domain.ErrDispatch) {
					return fmt.Errorf("tick failed: %w", err)
				}
				printReport(out, report)
				if err != nil {
					return fmt.Errorf("notification not delivered: %w", err)
				}
				return nil
			})
		},
	}
}

func printReport(out io.Writer, r usecase.TickReport) {
	mark := okMark
	if r.DispatchErr != nil {
		mark = failMark
	}
	fmt.Fprintf(out, "%s Tick %s in %s\n", mark, accent.Sprint(r.Outcome), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  fetched:   %d\n", r.Fetched)
	if r.Untracked > 0 {
		fmt.Fprintf(out, "  untracked: %d\n", r.Untracked)
	}
	fmt.Fprintf(out, "  new:       %d\n", r.Unseen)
	fmt.Fprintf(out, "  matched:   %d\n", r.Matched)
	if r.Matched > 0 {
		fmt.Fprintf(out, "  notified:  %t\n", r.Notified)
	}
	if r.ProcessedRemoved > 0 || r.NotificationsRemoved > 0 {
		fmt.Fprintf(out, "  pruned:    %d processed, %d notifications\n", r.ProcessedRemoved, r.NotificationsRemoved)
	}
}
