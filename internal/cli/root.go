package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
	"FeedWatcher/internal/config"
	"FeedWatcher/internal/logging"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	dim      = color.New(color.Faint)
	accent   = color.New(color.FgCyan)
)

// RootCmd assembles every subcommand under the feedwatcher binary.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feedwatcher",
		Short: "Watch an RSS feed and push filtered releases to Discord",
		Long: `feedwatcher polls one RSS feed, keeps track of items it has already
evaluated, matches new items against user filters and posts matches to a
Discord webhook. Configuration comes from $FEEDWATCHER_CONFIG plus env overrides.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(ServeCmd())
	root.AddCommand(TickCmd())
	root.AddCommand(FeedCmd())
	root.AddCommand(FiltersCmd())
	root.AddCommand(NotificationsCmd())
	root.AddCommand(TestNotificationCmd())
	return root
}

// withApp loads config, builds the application and closes it after fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer application.Close()

	return fn(ctx, application, cmd.OutOrStdout())
}
