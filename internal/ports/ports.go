package ports

import (
	"context"
	"time"

	"FeedWatcher/internal/domain"
)

// FeedSource pulls the configured feed and normalizes its entries.
type FeedSource interface {
	Fetch(ctx context.Context) ([]domain.CandidateItem, error)
}

// DedupStore remembers identities that were already evaluated.
type DedupStore interface {
	Has(ctx context.Context, identity string) (bool, error)
	Seen(ctx context.Context, identities []string) (map[string]bool, error)
	Add(ctx context.Context, identity, title string) error
	Cleanup(ctx context.Context, maxAgeDays int) (int64, error)
}

// NotificationLog keeps the history of dispatched notifications.
type NotificationLog interface {
	Append(ctx context.Context, record domain.NotificationRecord) (int64, error)
	List(ctx context.Context, query domain.NotificationQuery) ([]domain.NotificationRecord, int, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	Cleanup(ctx context.Context, maxAgeDays int) (int64, error)
}

// FilterProvider hands out the enabled filter snapshot for one tick.
type FilterProvider interface {
	Enabled(ctx context.Context) ([]domain.Filter, error)
}

// FilterRepository manages user-defined filters.
type FilterRepository interface {
	FilterProvider
	Create(ctx context.Context, filter domain.Filter) (domain.Filter, error)
	Update(ctx context.Context, filter domain.Filter) (domain.Filter, error)
	Get(ctx context.Context, id string) (domain.Filter, error)
	List(ctx context.Context) ([]domain.Filter, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Notifier delivers one batch of matches to the outbound sink.
type Notifier interface {
	Dispatch(ctx context.Context, matches []domain.Match) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
