package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"FeedWatcher/internal/domain"
	"FeedWatcher/internal/ports"
)

// Ticker is the single entry point external triggers call.
type Ticker interface {
	RunTick(ctx context.Context) (TickReport, error)
}

// Scheduler wires the cron-like driver with the orchestrator.
type Scheduler struct {
	driver ports.Scheduler
	ticker Ticker
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ticks.
func NewScheduler(driver ports.Scheduler, ticker Ticker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{driver: driver, ticker: ticker, logger: logger}
}

// Start registers the tick with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.ticker == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.Trigger(ctx, "schedule", trigger)
	}

	return s.driver.Start(ctx, job)
}

// Trigger runs one tick on behalf of source; busy ticks are dropped.
// Failures are logged by the orchestrator and reported here only by kind.
func (s *Scheduler) Trigger(ctx context.Context, source string, at time.Time) {
	_, err := s.ticker.RunTick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrBusy):
		s.logger.Info("tick skipped, previous tick still running", "trigger", source, "at", at)
	case ctx.Err() != nil:
		s.logger.Info("tick interrupted by shutdown", "trigger", source)
	default:
		s.logger.Debug("tick returned error", "trigger", source, "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
