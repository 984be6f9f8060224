package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/filter"
	"FeedWatcher/internal/ports"
)

const (
	defaultProcessedRetentionDays    = 30
	defaultNotificationRetentionDays = 7
)

// TickOutcome describes how far a tick progressed.
type TickOutcome string

const (
	OutcomeCompleted        TickOutcome = "completed"
	OutcomeNoEnabledFilters TickOutcome = "skipped_no_filters"
	OutcomeNoNewItems       TickOutcome = "skipped_no_new_items"
)

// TickReport summarizes one tick.
type TickReport struct {
	Outcome              TickOutcome
	StartedAt            time.Time
	Duration             time.Duration
	Fetched              int
	Untracked            int
	Unseen               int
	Matched              int
	Notified             bool
	DispatchErr          error
	ProcessedRemoved     int64
	NotificationsRemoved int64
}

// PipelineDeps wires all driven adapters into the orchestrator.
type PipelineDeps struct {
	Source        ports.FeedSource
	Filters       ports.FilterProvider
	Dedup         ports.DedupStore
	Notifier      ports.Notifier
	Notifications ports.NotificationLog
	Logger        *slog.Logger

	// Retention windows in days; zero selects 30 and 7.
	ProcessedRetentionDays    int
	NotificationRetentionDays int

	Now func() time.Time
}

// Orchestrator runs the ingest, dedup, filter, notify and log pipeline.
// At most one tick runs at a time.
type Orchestrator struct {
	source        ports.FeedSource
	filters       ports.FilterProvider
	dedup         ports.DedupStore
	notifier      ports.Notifier
	notifications ports.NotificationLog
	logger        *slog.Logger

	processedDays    int
	notificationDays int
	now              func() time.Time

	running atomic.Bool
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps PipelineDeps) *Orchestrator {
	o := &Orchestrator{
		source:           deps.Source,
		filters:          deps.Filters,
		dedup:            deps.Dedup,
		notifier:         deps.Notifier,
		notifications:    deps.Notifications,
		logger:           deps.Logger,
		processedDays:    deps.ProcessedRetentionDays,
		notificationDays: deps.NotificationRetentionDays,
		now:              deps.Now,
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.processedDays <= 0 {
		o.processedDays = defaultProcessedRetentionDays
	}
	if o.notificationDays <= 0 {
		o.notificationDays = defaultNotificationRetentionDays
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Running reports whether a tick is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// RunTick executes one tick. A call made while another tick runs returns
// domain.ErrBusy immediately. Dispatch failures are returned after retention
// has run; the report is filled in as far as the tick got.
func (o *Orchestrator) RunTick(ctx context.Context) (TickReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return TickReport{}, domain.ErrBusy
	}
	defer o.running.Store(false)

	report := TickReport{StartedAt: o.now()}
	err := o.tick(ctx, &report)
	report.Duration = o.now().Sub(report.StartedAt)
	o.logOutcome(report, err)
	return report, err
}

func (o *Orchestrator) tick(ctx context.Context, report *TickReport) error {
	if o.source == nil || o.filters == nil || o.dedup == nil {
		return fmt.Errorf("orchestrator is not fully wired")
	}

	items, err := o.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}
	report.Fetched = len(items)

	enabled, err := o.filters.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("%w: load filters: %w", domain.ErrStorage, err)
	}
	enabled = filter.Enabled(enabled)
	if len(enabled) == 0 {
		report.Outcome = OutcomeNoEnabledFilters
		return nil
	}

	unseen, untracked, err := o.partition(ctx, items)
	if err != nil {
		return err
	}
	report.Untracked = untracked
	report.Unseen = len(unseen)
	if len(unseen) == 0 {
		report.Outcome = OutcomeNoNewItems
		return nil
	}

	matches := filter.MatchItems(unseen, enabled)
	report.Matched = len(matches)
	for _, m := range matches {
		o.logger.Debug("item matched", "title", m.Item.Title, "filters", m.FilterNames())
	}

	// Every unseen item is marked whatever happens to the notification.
	for _, item := range unseen {
		if err := o.dedup.Add(ctx, item.Identity, item.Title); err != nil {
			return fmt.Errorf("%w: mark %s seen: %w", domain.ErrStorage, item.Identity, err)
		}
	}

	var dispatchErr error
	if len(matches) > 0 {
		dispatchErr = o.dispatch(ctx, matches)
		if dispatchErr != nil {
			report.DispatchErr = dispatchErr
		} else {
			report.Notified = true
			if err := o.record(ctx, matches); err != nil {
				return err
			}
		}
	}

	// A failed dispatch stays visible when retention also fails, which is
	// the usual case once ctx is cancelled mid-webhook.
	if err := o.retention(ctx, report); err != nil {
		return errors.Join(dispatchErr, err)
	}

	report.Outcome = OutcomeCompleted
	return dispatchErr
}

// partition keeps tracked items absent from the dedup store, in feed order.
// Repeated identities within one fetch are evaluated once.
func (o *Orchestrator) partition(ctx context.Context, items []domain.CandidateItem) ([]domain.CandidateItem, int, error) {
	ids := make([]string, 0, len(items))
	untracked := 0
	for _, item := range items {
		if !item.Tracked() {
			untracked++
			continue
		}
		ids = append(ids, item.Identity)
	}

	seen, err := o.dedup.Seen(ctx, ids)
	if err != nil {
		return nil, untracked, fmt.Errorf("%w: load processed: %w", domain.ErrStorage, err)
	}
	if seen == nil {
		seen = make(map[string]bool)
	}

	unseen := make([]domain.CandidateItem, 0, len(ids))
	for _, item := range items {
		if !item.Tracked() || seen[item.Identity] {
			continue
		}
		seen[item.Identity] = true
		unseen = append(unseen, item)
	}
	return unseen, untracked, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, matches []domain.Match) error {
	if o.notifier == nil {
		return fmt.Errorf("%w: no notifier configured", domain.ErrDispatch)
	}
	if err := o.notifier.Dispatch(ctx, matches); err != nil {
		if !errors.Is(err, domain.ErrDispatch) {
			err = fmt.Errorf("%w: %w", domain.ErrDispatch, err)
		}
		return err
	}
	return nil
}

// record logs one entry per matched item after a confirmed dispatch.
func (o *Orchestrator) record(ctx context.Context, matches []domain.Match) error {
	if o.notifications == nil {
		return nil
	}

	sentAt := o.now()
	for _, m := range matches {
		_, err := o.notifications.Append(ctx, domain.NotificationRecord{
			Identity:           m.Item.Identity,
			Title:              m.Item.Title,
			Link:               m.Item.Link,
			Description:        m.Item.Text(),
			PublishedAt:        m.Item.PublishedAt,
			MatchedFilterNames: m.FilterNames(),
			SentAt:             sentAt,
		})
		if err != nil {
			return fmt.Errorf("%w: log notification %s: %w", domain.ErrStorage, m.Item.Identity, err)
		}
	}
	return nil
}

func (o *Orchestrator) retention(ctx context.Context, report *TickReport) error {
	removed, err := o.dedup.Cleanup(ctx, o.processedDays)
	if err != nil {
		return fmt.Errorf("%w: cleanup processed: %w", domain.ErrStorage, err)
	}
	report.ProcessedRemoved = removed

	if o.notifications == nil {
		return nil
	}
	removed, err = o.notifications.Cleanup(ctx, o.notificationDays)
	if err != nil {
		return fmt.Errorf("%w: cleanup notifications: %w", domain.ErrStorage, err)
	}
	report.NotificationsRemoved = removed
	return nil
}

func (o *Orchestrator) logOutcome(r TickReport, err error) {
	attrs := []any{
		"outcome", r.Outcome,
		"fetched", r.Fetched,
		"unseen", r.Unseen,
		"matched", r.Matched,
		"notified", r.Notified,
		"duration", r.Duration,
	}
	if r.Untracked > 0 {
		attrs = append(attrs, "untracked", r.Untracked)
	}
	if r.ProcessedRemoved > 0 || r.NotificationsRemoved > 0 {
		attrs = append(attrs, "processed_removed", r.ProcessedRemoved, "notifications_removed", r.NotificationsRemoved)
	}

	if err != nil {
		o.logger.Error("tick failed", append(attrs, "error", err)...)
		return
	}
	o.logger.Info("tick finished", attrs...)
}
