package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
)

// ServeCmd runs the schedule until SIGINT or SIGTERM.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run ticks on the configured cron schedule",
		Long: `Run one tick immediately and then on every cron firing.
Send SIGUSR1 to request an extra tick; it is skipped while another tick runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, _ io.Writer) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				manual, release := manualTriggers()
				defer release()

				return a.Serve(ctx, manual)
			})
		},
	}
}
