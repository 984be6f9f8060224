package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx, d Dialect) error
}

// MigrationRunner applies pending migrations in version order.
type MigrationRunner struct {
	db         *DB
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
			{Version: 2, Name: "filter_sequence", Apply: migrateV002},
			{Version: 3, Name: "notification_search_keys", Apply: migrateV003},
		},
	}
}

// Run creates the schema_migrations table and applies every migration not yet recorded.
func (r *MigrationRunner) Run(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		applied, err := r.isApplied(ctx, m.Version)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

func (r *MigrationRunner) isApplied(ctx context.Context, version int) (bool, error) {
	query, args, err := r.db.sb.Select("COUNT(*)").
		From("schema_migrations").
		Where("version = ?", version).
		ToSql()
	if err != nil {
		return false, err
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(ctx, tx, r.db.dialect); err != nil {
		return err
	}

	query, args, err := r.db.sb.Insert("schema_migrations").
		Columns("version", "name").
		Values(m.Version, m.Name).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// migrateV001 creates processed items, notification history and filters.
// List-valued fields live in ordered child tables.
func migrateV001(ctx context.Context, tx *sql.Tx, d Dialect) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processed_items (
			identity      TEXT PRIMARY KEY,
			title         TEXT NOT NULL DEFAULT '',
			first_seen_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_items_first_seen_at ON processed_items(first_seen_at)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS notifications (
			id           %s,
			identity     TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			link         TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			published_at BIGINT,
			sent_at      BIGINT NOT NULL
		)`, d.serialKey()),
		`CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications(sent_at)`,
		`CREATE TABLE IF NOT EXISTS notification_filters (
			notification_id BIGINT NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
			position        INTEGER NOT NULL,
			filter_name     TEXT NOT NULL,
			PRIMARY KEY (notification_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS filters (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			enabled    BOOLEAN NOT NULL DEFAULT TRUE,
			min_date   BIGINT,
			max_date   BIGINT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filters_enabled ON filters(enabled)`,
		`CREATE TABLE IF NOT EXISTS filter_keywords (
			filter_id TEXT NOT NULL REFERENCES filters(id) ON DELETE CASCADE,
			field     TEXT NOT NULL,
			position  INTEGER NOT NULL,
			keyword   TEXT NOT NULL,
			PRIMARY KEY (filter_id, field, position)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
