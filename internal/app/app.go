package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"FeedWatcher/internal/config"
	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/infrastructure/discord"
	"FeedWatcher/internal/infrastructure/feed"
	"FeedWatcher/internal/infrastructure/scheduler"
	"FeedWatcher/internal/infrastructure/storage"
	"FeedWatcher/internal/logging"
	"FeedWatcher/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// ErrSchedulerDisabled is returned by Serve when the config turns the schedule off.
var ErrSchedulerDisabled = errors.New("scheduler is disabled in config")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db            *storage.DB
	processed     *storage.ProcessedRepository
	notifications *storage.NotificationRepository
	filters       *storage.FilterRepository
	notifier      *discord.Notifier

	orchestrator *usecase.Orchestrator
	scheduler    *usecase.Scheduler
}

// New opens storage and builds every component from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	a := &Application{
		cfg:           cfg,
		logger:        baseLogger,
		db:            db,
		processed:     storage.NewProcessedRepository(db),
		notifications: storage.NewNotificationRepository(db),
		filters:       storage.NewFilterRepository(db),
		notifier:      discord.NewNotifier(cfg.Notifications.Discord.WebhookURL, nil, cfg.Notifications.Timeout),
	}

	source := feed.NewSource(cfg.Feed.URL, nil, cfg.Feed.Timeout, baseLogger.With("component", "feed"))

	a.orchestrator = usecase.NewOrchestrator(usecase.PipelineDeps{
		Source:                    source,
		Filters:                   a.filters,
		Dedup:                     a.processed,
		Notifier:                  a.notifier,
		Notifications:             a.notifications,
		Logger:                    baseLogger.With("component", "orchestrator"),
		ProcessedRetentionDays:    cfg.Retention.ProcessedDays,
		NotificationRetentionDays: cfg.Retention.NotificationDays,
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	a.scheduler = usecase.NewScheduler(driver, a.orchestrator, baseLogger.With("component", "scheduler"))

	return a, nil
}

// Orchestrator exposes RunTick and Browse.
func (a *Application) Orchestrator() *usecase.Orchestrator { return a.orchestrator }

// Filters exposes the filter store.
func (a *Application) Filters() *storage.FilterRepository { return a.filters }

// Notifications exposes the notification log.
func (a *Application) Notifications() *storage.NotificationRepository { return a.notifications }

// Processed exposes the dedup store.
func (a *Application) Processed() *storage.ProcessedRepository { return a.processed }

// Config returns the resolved configuration.
func (a *Application) Config() config.Config { return a.cfg }

// Serve runs the schedule until ctx is cancelled. Every value received on
// manual triggers an extra tick; it is dropped when a tick is already running.
func (a *Application) Serve(ctx context.Context, manual <-chan struct{}) error {
	if !a.cfg.Scheduler.IsEnabled() {
		return ErrSchedulerDisabled
	}
	if err := scheduler.Validate(a.cfg.Scheduler.CronExpression); err != nil {
		return err
	}

	a.logger.Info("starting scheduler",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String(),
		"feed", a.cfg.Feed.URL,
	)
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var manualTicks sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			a.logger.Info("stopping scheduler")
			err := a.scheduler.Stop(stopCtx)
			manualTicks.Wait()
			return err
		case _, ok := <-manual:
			if !ok {
				manual = nil
				continue
			}
			manualTicks.Add(1)
			go func() {
				defer manualTicks.Done()
				a.scheduler.Trigger(ctx, "manual", time.Now())
			}()
		}
	}
}

// SendTestNotification pushes a sample match through the notifier without
// touching dedup or the notification log.
func (a *Application) SendTestNotification(ctx context.Context) error {
	sample := domain.Match{
		Item: domain.CandidateItem{
			Identity:    "feedwatcher-test-notification",
			Title:       "FeedWatcher test notification",
			Link:        a.cfg.Feed.URL,
			PublishedAt: time.Now(),
			Description: "If you can read this, the webhook is configured correctly.",
		},
		Filters: []domain.Filter{{ID: "test", Name: "Test Filter", Enabled: true}},
	}
	return a.notifier.Dispatch(ctx, []domain.Match{sample})
}

// Close releases the database pool.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
