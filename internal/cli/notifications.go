package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"FeedWatcher/internal/app"
	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/infrastructure/storage"
	"FeedWatcher/internal/textutil"
)

// NotificationsCmd groups notification history commands.
func NotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Browse and prune the notification history",
	}
	cmd.AddCommand(notificationsListCmd())
	cmd.AddCommand(notificationsDeleteCmd())
	cmd.AddCommand(notificationsClearCmd())
	return cmd
}

func notificationsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sent notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			search, _ := cmd.Flags().GetString("search")

			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				records, total, err := a.Notifications().List(ctx, domain.NotificationQuery{
					Limit:  limit,
					Offset: offset,
					Search: search,
				})
				if err != nil {
					return fmt.Errorf("failed to list notifications: %w", err)
				}
				if total == 0 {
					fmt.Fprintln(out, "No notifications found")
					return nil
				}

				fmt.Fprintf(out, "Showing %d of %d notification(s):\n\n", len(records), total)
				for _, rec := range records {
					fmt.Fprintf(out, "%s  %s  %s\n",
						dim.Sprintf("#%d", rec.ID),
						rec.SentAt.Local().Format("2006-01-02 15:04"),
						accent.Sprint(rec.Title))
					if rec.Link != "" {
						fmt.Fprintf(out, "    %s\n", rec.Link)
					}
					fmt.Fprintf(out, "    filters: %s\n", strings.Join(rec.MatchedFilterNames, ", "))
					if rec.Description != "" {
						fmt.Fprintf(out, "    %s\n", textutil.Truncate(rec.Description, 160))
					}
				}
				if next := offset + len(records); next < total {
					fmt.Fprintf(out, "\nMore available: --offset %d\n", next)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", storage.DefaultNotificationLimit, "Maximum rows to show")
	cmd.Flags().Int("offset", 0, "Rows to skip")
	cmd.Flags().StringP("search", "s", "", "Case-insensitive match on title, description or filter name")
	return cmd
}

func notificationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete one notification record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid notification id %q", args[0])
			}
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				removed, err := a.Notifications().Delete(ctx, id)
				if err != nil {
					return fmt.Errorf("failed to delete notification: %w", err)
				}
				if !removed {
					return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
				}
				fmt.Fprintf(out, "%s Deleted notification #%d\n", okMark, id)
				return nil
			})
		},
	}
}

func notificationsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole notification history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, out io.Writer) error {
				removed, err := a.Notifications().DeleteAll(ctx)
				if err != nil {
					return fmt.Errorf("failed to clear notifications: %w", err)
				}
				fmt.Fprintf(out, "%s Removed %d notification(s)\n", okMark, removed)
				return nil
			})
		},
	}
}
