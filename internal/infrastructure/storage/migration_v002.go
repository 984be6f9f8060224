package storage

import (
	"context"
	"database/sql"
)

// migrateV002 gives filters an insertion sequence. created_at only has
// second precision, so filters created in the same second need a tiebreak
// that keeps their creation order.
func migrateV002(ctx context.Context, tx *sql.Tx, _ Dialect) error {
	stmts := []string{
		`ALTER TABLE filters ADD COLUMN seq BIGINT NOT NULL DEFAULT 0`,
		`UPDATE filters SET seq = (
			SELECT COUNT(*) FROM filters f2
			WHERE f2.created_at < filters.created_at
			   OR (f2.created_at = filters.created_at AND f2.id <= filters.id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filters_seq ON filters(seq)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
