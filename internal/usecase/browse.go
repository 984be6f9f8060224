package usecase

import (
	"context"
	"fmt"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/filter"
)

// Browse fetches the feed and keeps the items accepted by every enabled filter.
// It runs outside the single-flight guard and never touches dedup or
// notification state. Items without an identity are included.
func (o *Orchestrator) Browse(ctx context.Context) (domain.FilteredFeed, error) {
	if o.source == nil {
		return domain.FilteredFeed{}, fmt.Errorf("orchestrator is not fully wired")
	}

	items, err := o.source.Fetch(ctx)
	if err != nil {
		return domain.FilteredFeed{}, fmt.Errorf("fetch feed: %w", err)
	}

	var enabled []domain.Filter
	if o.filters != nil {
		enabled, err = o.filters.Enabled(ctx)
		if err != nil {
			return domain.FilteredFeed{}, fmt.Errorf("%w: load filters: %w", domain.ErrStorage, err)
		}
	}

	kept := filter.ApplyAll(items, enabled)
	return domain.FilteredFeed{
		Items:         kept,
		LastUpdated:   o.now(),
		TotalItems:    len(items),
		FilteredItems: len(kept),
	}, nil
}
