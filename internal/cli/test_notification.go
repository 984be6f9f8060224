package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
)

// TestNotificationCmd sends a sample message to the configured webhook.
func TestNotificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-notification",
		Short: "Send a sample notification to the Discord webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				if err := a.SendTestNotification(ctx); err != nil {
					return fmt.Errorf("test notification failed: %w", err)
				}
				fmt.Fprintf(out, "%s Test notification sent\n", okMark)
				return nil
			})
		},
	}
}
