package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FeedWatcher/internal/ports"
)

// CronScheduler fires the job on a five-field cron expression and once on start.
type CronScheduler struct {
	spec     string
	location *time.Location

	mu   sync.Mutex
	cron *cron.Cron
	wg   sync.WaitGroup
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, location *time.Location) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{spec: spec, location: location}
}

// Validate parses the expression without starting anything.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// Start registers the job and runs it immediately in the background.
// Firings continue until Stop or until ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	engine := cron.New(cron.WithLocation(c.location))
	if _, err := engine.AddFunc(c.spec, func() { job(time.Now().In(c.location)) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}
	engine.Start()
	c.cron = engine

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		job(time.Now().In(c.location))
	}()

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			_ = c.Stop(context.Background())
		}()
	}

	return nil
}

// Stop halts future firings and waits for running jobs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	engine := c.cron
	c.cron = nil
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if engine != nil {
			<-engine.Stop().Done()
		}
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
