package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/ports"
	"FeedWatcher/internal/textutil"
)

// DefaultNotificationLimit is the page size used when a query leaves Limit unset.
const DefaultNotificationLimit = 100

var notificationColumns = []string{
	"n.id", "n.identity", "n.title", "n.link", "n.description", "n.published_at", "n.sent_at",
}

// NotificationRepository stores the history of dispatched notifications.
type NotificationRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.NotificationLog = (*NotificationRepository)(nil)

// NewNotificationRepository wires the notification log to a database.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db, now: time.Now}
}

// Append stores one record with its ordered filter names and returns the assigned id.
// It does not deduplicate by identity.
func (r *NotificationRepository) Append(ctx context.Context, record domain.NotificationRecord) (int64, error) {
	sentAt := record.SentAt
	if sentAt.IsZero() {
		sentAt = r.now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := r.db.sb.Insert("notifications").
		Columns("identity", "title", "link", "description", "published_at", "sent_at", "search_title", "search_description").
		Values(record.Identity, record.Title, record.Link, record.Description, unixOrNull(record.PublishedAt), sentAt.Unix(),
			textutil.Fold(record.Title), textutil.Fold(record.Description)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	if len(record.MatchedFilterNames) > 0 {
		insert := r.db.sb.Insert("notification_filters").Columns("notification_id", "position", "filter_name", "search_name")
		for i, name := range record.MatchedFilterNames {
			insert = insert.Values(id, i, name, textutil.Fold(name))
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build filter insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert notification filters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit notification: %w", err)
	}
	return id, nil
}

// List returns one page ordered by sent time, newest first, plus the total match count.
func (r *NotificationRepository) List(ctx context.Context, q domain.NotificationQuery) ([]domain.NotificationRecord, int, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultNotificationLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	selectQ := r.db.sb.Select(notificationColumns...).From("notifications n")
	countQ := r.db.sb.Select("COUNT(*)").From("notifications n")
	if term := strings.TrimSpace(q.Search); term != "" {
		cond := searchCondition(term)
		selectQ = selectQ.Where(cond)
		countQ = countQ.Where(cond)
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query, args, err = selectQ.
		OrderBy("n.sent_at DESC", "n.id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}

	records, err := r.scanNotifications(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachFilterNames(ctx, records); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// Delete removes one record; the bool reports whether it existed.
func (r *NotificationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.deleteWhere(ctx, sq.Eq{"notification_id": id}, sq.Eq{"id": id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll clears the log and returns how many records were removed.
func (r *NotificationRepository) DeleteAll(ctx context.Context) (int64, error) {
	return r.deleteWhere(ctx, nil, nil)
}

// Cleanup removes records sent more than maxAgeDays ago.
// Records exactly maxAgeDays old are kept.
func (r *NotificationRepository) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	limit := cutoff(r.now(), maxAgeDays)
	return r.deleteWhere(ctx,
		sq.Expr("notification_id IN (SELECT id FROM notifications WHERE sent_at < ?)", limit),
		sq.Lt{"sent_at": limit},
	)
}

// deleteWhere removes child rows then parent rows in one transaction.
// Nil predicates match everything.
func (r *NotificationRepository) deleteWhere(ctx context.Context, children, parents sq.Sqlizer) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	delChildren := r.db.sb.Delete("notification_filters")
	if children != nil {
		delChildren = delChildren.Where(children)
	}
	query, args, err := delChildren.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("delete notification filters: %w", err)
	}

	delParents := r.db.sb.Delete("notifications")
	if parents != nil {
		delParents = delParents.Where(parents)
	}
	query, args, err = delParents.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) scanNotifications(ctx context.Context, query string, args ...interface{}) ([]domain.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	records := []domain.NotificationRecord{}
	for rows.Next() {
		var (
			rec         domain.NotificationRecord
			publishedAt sql.NullInt64
			sentAt      int64
		)
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.Title, &rec.Link, &rec.Description, &publishedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.PublishedAt = timeFromNull(publishedAt)
		rec.SentAt = time.Unix(sentAt, 0).UTC()
		rec.MatchedFilterNames = []string{}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

func (r *NotificationRepository) attachFilterNames(ctx context.Context, records []domain.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(records))
	index := make(map[int64]int, len(records))
	for i, rec := range records {
		ids = append(ids, rec.ID)
		index[rec.ID] = i
	}

	query, args, err := r.db.sb.Select("notification_id", "filter_name").
		From("notification_filters").
		Where(sq.Eq{"notification_id": ids}).
		OrderBy("notification_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build filter query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query notification filters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scan notification filter: %w", err)
		}
		if i, ok := index[id]; ok {
			records[i].MatchedFilterNames = append(records[i].MatchedFilterNames, name)
		}
	}
	return rows.Err()
}

// searchCondition matches title, description or any matched filter name.
// Both sides are case-folded in Go, so the comparison does not depend on the
// database's LOWER.
func searchCondition(term string) sq.Sqlizer {
	pattern := "%" + escapeLike(textutil.Fold(term)) + "%"
	return sq.Or{
		sq.Expr(`n.search_title LIKE ? ESCAPE '\'`, pattern),
		sq.Expr(`n.search_description LIKE ? ESCAPE '\'`, pattern),
		sq.Expr(`EXISTS (SELECT 1 FROM notification_filters nf WHERE nf.notification_id = n.id AND nf.search_name LIKE ? ESCAPE '\')`, pattern),
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
