package storage

import (
	"context"
	"database/sql"
	"fmt"

	"FeedWatcher/internal/textutil"
)

// migrateV003 adds case-folded search keys to the notification log.
// SQLite's LOWER only folds ASCII, so folding happens in Go on write and
// search compares folded text on both sides.
func migrateV003(ctx context.Context, tx *sql.Tx, d Dialect) error {
	stmts := []string{
		`ALTER TABLE notifications ADD COLUMN search_title TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE notifications ADD COLUMN search_description TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE notification_filters ADD COLUMN search_name TEXT NOT NULL DEFAULT ''`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	sb := newBuilder(d)

	type notificationRow struct {
		id                 int64
		title, description string
	}
	var notifications []notificationRow
	rows, err := tx.QueryContext(ctx, `SELECT id, title, description FROM notifications`)
	if err != nil {
		return fmt.Errorf("read notifications: %w", err)
	}
	for rows.Next() {
		var n notificationRow
		if err := rows.Scan(&n.id, &n.title, &n.description); err != nil {
			rows.Close()
			return fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, n := range notifications {
		query, args, err := sb.Update("notifications").
			Set("search_title", textutil.Fold(n.title)).
			Set("search_description", textutil.Fold(n.description)).
			Where("id = ?", n.id).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("backfill notification %d: %w", n.id, err)
		}
	}

	type filterRow struct {
		id       int64
		position int
		name     string
	}
	var names []filterRow
	rows, err = tx.QueryContext(ctx, `SELECT notification_id, position, filter_name FROM notification_filters`)
	if err != nil {
		return fmt.Errorf("read notification filters: %w", err)
	}
	for rows.Next() {
		var f filterRow
		if err := rows.Scan(&f.id, &f.position, &f.name); err != nil {
			rows.Close()
			return fmt.Errorf("scan notification filter: %w", err)
		}
		names = append(names, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, f := range names {
		query, args, err := sb.Update("notification_filters").
			Set("search_name", textutil.Fold(f.name)).
			Where("notification_id = ? AND position = ?", f.id, f.position).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("backfill notification filter %d/%d: %w", f.id, f.position, err)
		}
	}

	return nil
}
