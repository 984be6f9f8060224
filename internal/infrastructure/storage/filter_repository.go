package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/ports"
)

const (
	fieldTitleInclude       = "title_include"
	fieldTitleExclude       = "title_exclude"
	fieldDescriptionInclude = "description_include"
	fieldDescriptionExclude = "description_exclude"
)

var filterColumns = []string{"id", "name", "enabled", "min_date", "max_date", "created_at", "updated_at"}

// FilterRepository persists user filters and their keyword lists.
type FilterRepository struct {
	db  *DB
	now func() time.Time
}

var _ ports.FilterRepository = (*FilterRepository)(nil)

// NewFilterRepository wires the filter store to a database.
func NewFilterRepository(db *DB) *FilterRepository {
	return &FilterRepository{db: db, now: time.Now}
}

// Create stores a new filter, assigning an id when none is set.
func (r *FilterRepository) Create(ctx context.Context, f domain.Filter) (domain.Filter, error) {
	if strings.TrimSpace(f.Name) == "" {
		return domain.Filter{}, fmt.Errorf("filter name is required")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := r.now().UTC().Truncate(time.Second)
	f.CreatedAt, f.UpdatedAt = now, now
	f.Criteria = normalizeCriteria(f.Criteria)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Filter{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seq, err := r.nextSeq(ctx, tx)
	if err != nil {
		return domain.Filter{}, err
	}

	query, args, err := r.db.sb.Insert("filters").
		Columns(append(filterColumns, "seq")...).
		Values(f.ID, f.Name, f.Enabled, nullableTime(f.Criteria.MinDate), nullableTime(f.Criteria.MaxDate), now.Unix(), now.Unix(), seq).
		ToSql()
	if err != nil {
		return domain.Filter{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.Filter{}, fmt.Errorf("insert filter: %w", err)
	}

	if err := r.insertKeywords(ctx, tx, f); err != nil {
		return domain.Filter{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Filter{}, fmt.Errorf("commit filter: %w", err)
	}
	return f, nil
}

// Update replaces name, state and criteria of an existing filter.
func (r *FilterRepository) Update(ctx context.Context, f domain.Filter) (domain.Filter, error) {
	if strings.TrimSpace(f.Name) == "" {
		return domain.Filter{}, fmt.Errorf("filter name is required")
	}
	now := r.now().UTC().Truncate(time.Second)
	f.UpdatedAt = now
	f.Criteria = normalizeCriteria(f.Criteria)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Filter{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := r.db.sb.Update("filters").
		Set("name", f.Name).
		Set("enabled", f.Enabled).
		Set("min_date", nullableTime(f.Criteria.MinDate)).
		Set("max_date", nullableTime(f.Criteria.MaxDate)).
		Set("updated_at", now.Unix()).
		Where(sq.Eq{"id": f.ID}).
		ToSql()
	if err != nil {
		return domain.Filter{}, fmt.Errorf("build update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Filter{}, fmt.Errorf("update filter: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Filter{}, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.Filter{}, fmt.Errorf("filter %s: %w", f.ID, domain.ErrNotFound)
	}

	query, args, err = r.db.sb.Delete("filter_keywords").Where(sq.Eq{"filter_id": f.ID}).ToSql()
	if err != nil {
		return domain.Filter{}, fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.Filter{}, fmt.Errorf("clear keywords: %w", err)
	}
	if err := r.insertKeywords(ctx, tx, f); err != nil {
		return domain.Filter{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Filter{}, fmt.Errorf("commit filter: %w", err)
	}
	return r.Get(ctx, f.ID)
}

// Get loads one filter by id.
func (r *FilterRepository) Get(ctx context.Context, id string) (domain.Filter, error) {
	filters, err := r.query(ctx, sq.Eq{"id": id})
	if err != nil {
		return domain.Filter{}, err
	}
	if len(filters) == 0 {
		return domain.Filter{}, fmt.Errorf("filter %s: %w", id, domain.ErrNotFound)
	}
	return filters[0], nil
}

// List returns all filters in creation order.
// Filters created within the same second keep their insertion order.
func (r *FilterRepository) List(ctx context.Context) ([]domain.Filter, error) {
	return r.query(ctx, nil)
}

// Enabled returns a snapshot of the enabled filters in creation order.
func (r *FilterRepository) Enabled(ctx context.Context) ([]domain.Filter, error) {
	return r.query(ctx, sq.Eq{"enabled": true})
}

// Delete removes a filter; the bool reports whether it existed.
func (r *FilterRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := r.db.sb.Delete("filter_keywords").Where(sq.Eq{"filter_id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("delete keywords: %w", err)
	}

	query, args, err = r.db.sb.Delete("filters").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete filter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return n > 0, nil
}

func (r *FilterRepository) query(ctx context.Context, where sq.Sqlizer) ([]domain.Filter, error) {
	selectQ := r.db.sb.Select(filterColumns...).From("filters").OrderBy("seq", "created_at", "id")
	if where != nil {
		selectQ = selectQ.Where(where)
	}
	query, args, err := selectQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer rows.Close()

	filters := []domain.Filter{}
	for rows.Next() {
		var (
			f                  domain.Filter
			minDate, maxDate   sql.NullInt64
			createdAt, updated int64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Enabled, &minDate, &maxDate, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		f.Criteria.MinDate = timePtr(minDate)
		f.Criteria.MaxDate = timePtr(maxDate)
		f.CreatedAt = time.Unix(createdAt, 0).UTC()
		f.UpdatedAt = time.Unix(updated, 0).UTC()
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close rows: %w", err)
	}

	if err := r.attachKeywords(ctx, filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// nextSeq hands out the next insertion sequence inside the create transaction.
func (r *FilterRepository) nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	query, args, err := r.db.sb.Select("COALESCE(MAX(seq), 0) + 1").From("filters").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build seq query: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next filter seq: %w", err)
	}
	return seq, nil
}

func (r *FilterRepository) attachKeywords(ctx context.Context, filters []domain.Filter) error {
	if len(filters) == 0 {
		return nil
	}

	ids := make([]string, 0, len(filters))
	index := make(map[string]int, len(filters))
	for i, f := range filters {
		ids = append(ids, f.ID)
		index[f.ID] = i
	}

	query, args, err := r.db.sb.Select("filter_id", "field", "keyword").
		From("filter_keywords").
		Where(sq.Eq{"filter_id": ids}).
		OrderBy("filter_id", "field", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build keyword query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, field, keyword string
		if err := rows.Scan(&id, &field, &keyword); err != nil {
			return fmt.Errorf("scan keyword: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		c := &filters[i].Criteria
		switch field {
		case fieldTitleInclude:
			c.TitleIncludes = append(c.TitleIncludes, keyword)
		case fieldTitleExclude:
			c.TitleExcludes = append(c.TitleExcludes, keyword)
		case fieldDescriptionInclude:
			c.DescriptionIncludes = append(c.DescriptionIncludes, keyword)
		case fieldDescriptionExclude:
			c.DescriptionExcludes = append(c.DescriptionExcludes, keyword)
		}
	}
	return rows.Err()
}

func (r *FilterRepository) insertKeywords(ctx context.Context, tx *sql.Tx, f domain.Filter) error {
	insert := r.db.sb.Insert("filter_keywords").Columns("filter_id", "field", "position", "keyword")
	count := 0
	for _, group := range []struct {
		field    string
		keywords []string
	}{
		{fieldTitleInclude, f.Criteria.TitleIncludes},
		{fieldTitleExclude, f.Criteria.TitleExcludes},
		{fieldDescriptionInclude, f.Criteria.DescriptionIncludes},
		{fieldDescriptionExclude, f.Criteria.DescriptionExcludes},
	} {
		for i, kw := range group.keywords {
			insert = insert.Values(f.ID, group.field, i, kw)
			count++
		}
	}
	if count == 0 {
		return nil
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build keyword insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert keywords: %w", err)
	}
	return nil
}

// normalizeCriteria trims keywords and drops blanks; an empty keyword would match every item.
func normalizeCriteria(c domain.FilterCriteria) domain.FilterCriteria {
	c.TitleIncludes = cleanKeywords(c.TitleIncludes)
	c.TitleExcludes = cleanKeywords(c.TitleExcludes)
	c.DescriptionIncludes = cleanKeywords(c.DescriptionIncludes)
	c.DescriptionExcludes = cleanKeywords(c.DescriptionExcludes)
	return c
}

func cleanKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return unixOrNull(*t)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// IsNotFound reports whether err marks a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
