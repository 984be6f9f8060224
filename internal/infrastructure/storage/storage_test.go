package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedWatcher/internal/domain"
)

var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

// openTestDB creates a migrated in-memory database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func clock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"", "sqlite", "SQLite3"} {
		d, err := ParseDialect(name)
		require.NoError(t, err)
		assert.Equal(t, DialectSQLite, d)
	}
	d, err := ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}

func TestPostgresPlaceholders(t *testing.T) {
	db := New(nil, DialectPostgres)
	query, _, err := db.sb.Insert("processed_items").
		Columns("identity", "title").
		Values("a", "b").
		Suffix("ON CONFLICT (identity) DO NOTHING").
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO processed_items (identity,title) VALUES ($1,$2) ON CONFLICT (identity) DO NOTHING", query)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestMigrationsBackfillExistingRows(t *testing.T) {
	pool, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { pool.Close() })
	db := New(pool, DialectSQLite)
	ctx := context.Background()

	initial := NewMigrationRunner(db)
	initial.migrations = initial.migrations[:1]
	require.NoError(t, initial.Run(ctx))

	for _, stmt := range []string{
		`INSERT INTO filters (id, name, enabled, created_at, updated_at) VALUES ('b', 'second', 1, 100, 100)`,
		`INSERT INTO filters (id, name, enabled, created_at, updated_at) VALUES ('a', 'first', 1, 50, 50)`,
		`INSERT INTO notifications (id, identity, title, description, sent_at) VALUES (1, 'x', 'ÉCOLE Überfilm', 'Straße', 100)`,
		`INSERT INTO notification_filters (notification_id, position, filter_name) VALUES (1, 0, 'Größe')`,
	} {
		_, err := pool.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	require.NoError(t, NewMigrationRunner(db).Run(ctx))

	filters, err := NewFilterRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "first", filters[0].Name)
	assert.Equal(t, "second", filters[1].Name)

	repo := NewNotificationRepository(db)
	for _, term := range []string{"überfilm", "STRASSE", "grösse"} {
		_, total, err := repo.List(ctx, domain.NotificationQuery{Search: term})
		require.NoError(t, err)
		assert.Equal(t, 1, total, term)
	}
}

// --- processed items ---

func TestProcessedAddIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewProcessedRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "X", "t"))
	require.NoError(t, repo.Add(ctx, "X", "t"))
	require.NoError(t, repo.Add(ctx, "X", "other title"))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := repo.Get(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "t", rec.Title, "first insert wins")

	has, err := repo.Has(ctx, "X")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.Has(ctx, "Y")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestProcessedConcurrentAdds(t *testing.T) {
	db := openTestDB(t)
	repo := NewProcessedRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Add(ctx, "same", "title")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessedSeen(t *testing.T) {
	db := openTestDB(t)
	repo := NewProcessedRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "a", "A"))
	require.NoError(t, repo.Add(ctx, "c", "C"))

	seen, err := repo.Seen(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, seen)

	seen, err = repo.Seen(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestProcessedCleanupBoundary(t *testing.T) {
	db := openTestDB(t)
	repo := NewProcessedRepository(db)
	ctx := context.Background()

	insertedAt := fixedNow
	repo.now = clock(&insertedAt)

	insertedAt = fixedNow.Add(-30 * 24 * time.Hour)
	require.NoError(t, repo.Add(ctx, "exactly-30d", "kept"))
	insertedAt = fixedNow.Add(-30*24*time.Hour - time.Second)
	require.NoError(t, repo.Add(ctx, "30d-plus-1s", "removed"))
	insertedAt = fixedNow.Add(-time.Hour)
	require.NoError(t, repo.Add(ctx, "recent", "kept"))

	insertedAt = fixedNow
	removed, err := repo.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	seen, err := repo.Seen(ctx, []string{"exactly-30d", "30d-plus-1s", "recent"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"exactly-30d": true, "recent": true}, seen)
}

// --- notifications ---

func appendNotification(t *testing.T, repo *NotificationRepository, title, description string, sentAt time.Time, filters ...string) int64 {
	t.Helper()
	id, err := repo.Append(context.Background(), domain.NotificationRecord{
		Identity:           "id-" + title,
		Title:              title,
		Link:               "https://example.org/" + title,
		Description:        description,
		PublishedAt:        sentAt.Add(-time.Hour),
		MatchedFilterNames: filters,
		SentAt:             sentAt,
	})
	require.NoError(t, err)
	return id
}

func TestNotificationAppendAndList(t *testing.T) {
	db := openTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	first := appendNotification(t, repo, "Older", "first", fixedNow.Add(-2*time.Hour), "HD", "Movies")
	second := appendNotification(t, repo, "Newer", "second", fixedNow.Add(-time.Hour), "Shows")
	assert.Greater(t, second, first, "ids are monotonic")

	records, total, err := repo.List(ctx, domain.NotificationQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)

	assert.Equal(t, "Newer", records[0].Title, "newest first")
	assert.Equal(t, []string{"Shows"}, records[0].MatchedFilterNames)
	assert.Equal(t, "Older", records[1].Title)
	assert.Equal(t, []string{"HD", "Movies"}, records[1].MatchedFilterNames, "filter order is preserved")
	assert.Equal(t, fixedNow.Add(-2*time.Hour), records[1].SentAt)
	assert.Equal(t, fixedNow.Add(-3*time.Hour), records[1].PublishedAt)
}

func TestNotificationAppendDoesNotDeduplicate(t *testing.T) {
	db := openTestDB(t)
	repo := NewNotificationRepository(db)

	appendNotification(t, repo, "Same", "", fixedNow, "A")
	appendNotification(t, repo, "Same", "", fixedNow, "A")

	_, total, err := repo.List(context.Background(), domain.NotificationQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestNotificationPaginationAndSearch(t *testing.T) {
	db := openTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendNotification(t, repo, fmt.Sprintf("Item %d", i), "plain", fixedNow.Add(time.Duration(i)*time.Minute), "General")
	}
	appendNotification(t, repo, "Movie 2160p", "remux", fixedNow.Add(time.Hour), "UHD")
	appendNotification(t, repo, "Show", "Contains DOLBY vision", fixedNow.Add(2*time.Hour), "Other")
	appendNotification(t, repo, "100% match_test", "", fixedNow.Add(3*time.Hour), "Literal")

	page, total, err := repo.List(ctx, domain.NotificationQuery{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Item 4", page[0].Title)
	assert.Equal(t, "Item 3", page[1].Title)

	byTitle, total, err := repo.List(ctx, domain.NotificationQuery{Search: "2160P"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Movie 2160p", byTitle[0].Title)

	byDescription, _, err := repo.List(ctx, domain.NotificationQuery{Search: "dolby"})
	require.NoError(t, err)
	require.Len(t, byDescription, 1)
	assert.Equal(t, "Show", byDescription[0].Title)

	byFilter, total, err := repo.List(ctx, domain.NotificationQuery{Search: "uhd"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"UHD"}, byFilter[0].MatchedFilterNames)

	appendNotification(t, repo, "ÉCOLE Überfilm", "Straße", fixedNow.Add(4*time.Hour), "Größe")
	for _, term := range []string{"überfilm", "école", "GRÖSSE", "größe", "strasse"} {
		found, total, err := repo.List(ctx, domain.NotificationQuery{Search: term})
		require.NoError(t, err)
		require.Equal(t, 1, total, "search %q folds case beyond ASCII", term)
		assert.Equal(t, "ÉCOLE Überfilm", found[0].Title)
	}

	wildcards, total, err := repo.List(ctx, domain.NotificationQuery{Search: "0% match_"})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "LIKE wildcards in the search term are literal")
	assert.Equal(t, "100% match_test", wildcards[0].Title)
}

func TestNotificationDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	id := appendNotification(t, repo, "One", "", fixedNow, "A", "B")
	appendNotification(t, repo, "Two", "", fixedNow, "C")
	appendNotification(t, repo, "Three", "", fixedNow)

	ok, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	var orphans int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM notification_filters WHERE notification_id = ?", id).Scan(&orphans))
	assert.Zero(t, orphans)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, total, err := repo.List(ctx, domain.NotificationQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNotificationCleanupBoundary(t *testing.T) {
	db := openTestDB(t)
	repo := NewNotificationRepository(db)
	repo.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	appendNotification(t, repo, "kept-boundary", "", fixedNow.Add(-7*24*time.Hour), "A")
	appendNotification(t, repo, "removed", "", fixedNow.Add(-7*24*time.Hour-time.Second), "A")
	appendNotification(t, repo, "recent", "", fixedNow, "A")

	removed, err := repo.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	records, total, err := repo.List(ctx, domain.NotificationQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, rec := range records {
		assert.NotEqual(t, "removed", rec.Title)
	}

	var filterRows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM notification_filters").Scan(&filterRows))
	assert.Equal(t, 2, filterRows)
}

// --- filters ---

func TestFilterCRUD(t *testing.T) {
	db := openTestDB(t)
	repo := NewFilterRepository(db)
	repo.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	minDate := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	created, err := repo.Create(ctx, domain.Filter{
		Name:    "UHD Movies",
		Enabled: true,
		Criteria: domain.FilterCriteria{
			TitleIncludes:       []string{"2160p", " ", "Remux "},
			TitleExcludes:       []string{"CAM"},
			DescriptionIncludes: []string{"Atmos"},
			MinDate:             &minDate,
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "UHD Movies", got.Name)
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{"2160p", "Remux"}, got.Criteria.TitleIncludes, "blank keywords are dropped")
	assert.Equal(t, []string{"CAM"}, got.Criteria.TitleExcludes)
	assert.Equal(t, []string{"Atmos"}, got.Criteria.DescriptionIncludes)
	assert.Empty(t, got.Criteria.DescriptionExcludes)
	require.NotNil(t, got.Criteria.MinDate)
	assert.Equal(t, minDate, *got.Criteria.MinDate)
	assert.Nil(t, got.Criteria.MaxDate)
	assert.Equal(t, fixedNow, got.CreatedAt)

	got.Enabled = false
	got.Criteria.TitleIncludes = []string{"1080p"}
	got.Criteria.MinDate = nil
	updated, err := repo.Update(ctx, got)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Equal(t, []string{"1080p"}, updated.Criteria.TitleIncludes)
	assert.Nil(t, updated.Criteria.MinDate)

	_, err = repo.Update(ctx, domain.Filter{ID: "missing", Name: "x"})
	assert.True(t, IsNotFound(err))

	ok, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFilterOrderWithinSameSecond(t *testing.T) {
	db := openTestDB(t)
	repo := NewFilterRepository(db)
	repo.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	names := []string{"A", "B", "C", "D", "E", "F"}
	for _, name := range names {
		_, err := repo.Create(ctx, domain.Filter{Name: name, Enabled: true})
		require.NoError(t, err)
	}

	enabled, err := repo.Enabled(ctx)
	require.NoError(t, err)
	got := make([]string, 0, len(enabled))
	for _, f := range enabled {
		got = append(got, f.Name)
	}
	assert.Equal(t, names, got)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(names))
	assert.Equal(t, "A", all[0].Name)
	assert.Equal(t, "F", all[len(all)-1].Name)
}

func TestFilterEnabledSnapshot(t *testing.T) {
	db := openTestDB(t)
	repo := NewFilterRepository(db)
	ctx := context.Background()

	now := fixedNow
	repo.now = clock(&now)

	_, err := repo.Create(ctx, domain.Filter{Name: "first", Enabled: true})
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = repo.Create(ctx, domain.Filter{Name: "disabled", Enabled: false})
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = repo.Create(ctx, domain.Filter{Name: "second", Enabled: true, Criteria: domain.FilterCriteria{TitleIncludes: []string{"x"}}})
	require.NoError(t, err)

	enabled, err := repo.Enabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "first", enabled[0].Name)
	assert.Equal(t, "second", enabled[1].Name)
	assert.Equal(t, []string{"x"}, enabled[1].Criteria.TitleIncludes)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.Create(ctx, domain.Filter{Name: "  "})
	assert.Error(t, err)
}
