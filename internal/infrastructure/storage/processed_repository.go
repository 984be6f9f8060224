package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/ports"
)

// ProcessedRepository records feed identities that were already evaluated.
type ProcessedRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.DedupStore = (*ProcessedRepository)(nil)

// NewProcessedRepository wires the dedup store to a database.
func NewProcessedRepository(db *DB) *ProcessedRepository {
	return &ProcessedRepository{db: db, now: time.Now}
}

// Has reports whether the identity was seen before.
func (r *ProcessedRepository) Has(ctx context.Context, identity string) (bool, error) {
	query, args, err := r.db.sb.Select("1").
		From("processed_items").
		Where(sq.Eq{"identity": identity}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed: %w", err)
	}
	return true, nil
}

// Seen returns the subset of identities that already exist in storage.
func (r *ProcessedRepository) Seen(ctx context.Context, identities []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(identities) == 0 {
		return result, nil
	}

	query, args, err := r.db.sb.Select("identity").
		From("processed_items").
		Where(sq.Eq{"identity": identities}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		result[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// Add inserts the identity once; repeated or concurrent inserts are no-ops.
func (r *ProcessedRepository) Add(ctx context.Context, identity, title string) error {
	query, args, err := r.db.sb.Insert("processed_items").
		Columns("identity", "title", "first_seen_at").
		Values(identity, title, r.now().Unix()).
		Suffix("ON CONFLICT (identity) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert processed: %w", err)
	}
	return nil
}

// Cleanup removes records first seen more than maxAgeDays ago.
// Records exactly maxAgeDays old are kept.
func (r *ProcessedRepository) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	query, args, err := r.db.sb.Delete("processed_items").
		Where(sq.Lt{"first_seen_at": cutoff(r.now(), maxAgeDays)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup processed: %w", err)
	}
	return res.RowsAffected()
}

// Get loads a single record.
func (r *ProcessedRepository) Get(ctx context.Context, identity string) (domain.DedupRecord, error) {
	query, args, err := r.db.sb.Select("identity", "title", "first_seen_at").
		From("processed_items").
		Where(sq.Eq{"identity": identity}).
		ToSql()
	if err != nil {
		return domain.DedupRecord{}, fmt.Errorf("build query: %w", err)
	}

	var (
		rec       domain.DedupRecord
		firstSeen int64
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&rec.Identity, &rec.Title, &firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DedupRecord{}, fmt.Errorf("processed item %s: %w", identity, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DedupRecord{}, fmt.Errorf("get processed: %w", err)
	}
	rec.FirstSeenAt = time.Unix(firstSeen, 0).UTC()
	return rec, nil
}

// Count returns the number of tracked identities.
func (r *ProcessedRepository) Count(ctx context.Context) (int, error) {
	query, args, err := r.db.sb.Select("COUNT(*)").From("processed_items").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count processed: %w", err)
	}
	return n, nil
}
