package scheduler

import (
	"context"
	"time"

	"leadgen_backend/platform/logger"
)

const (
	defaultJobCleanupInterval    = 10 * time.Minute
	defaultCompletedJobRetention = 7 * 24 * time.Hour
	defaultFailedJobRetention    = 30 * 24 * time.Hour

	// A running job older than the task timeout has lost its worker.
	staleJobAfter = searchJobTimeout + 5*time.Minute
)

// JobPurger fails abandoned search jobs and deletes finished ones older than
// the retention windows.
type JobPurger interface {
	FailStale(ctx context.Context, now time.Time, staleAfter time.Duration) (int, error)
	Cleanup(ctx context.Context, now time.Time, doneRetention, failedRetention time.Duration) (int64, error)
}

// SearchJobCleanup periodically removes old finished search jobs.
type SearchJobCleanup struct {
	purger             JobPurger
	log                *logger.Logger
	interval           time.Duration
	completedRetention time.Duration
	failedRetention    time.Duration
	now                func() time.Time
}

func NewSearchJobCleanup(purger JobPurger, log *logger.Logger, interval, completedRetention, failedRetention time.Duration) *SearchJobCleanup {
	if interval <= 0 {
		interval = defaultJobCleanupInterval
	}
	if completedRetention <= 0 {
		completedRetention = defaultCompletedJobRetention
	}
	if failedRetention <= 0 {
		failedRetention = defaultFailedJobRetention
	}

	return &SearchJobCleanup{
		purger:             purger,
		log:                log,
		interval:           interval,
		completedRetention: completedRetention,
		failedRetention:    failedRetention,
		now:                time.Now,
	}
}

func (c *SearchJobCleanup) Run(ctx context.Context) {
	if c == nil || c.purger == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *SearchJobCleanup) cleanup(ctx context.Context) {
	now := c.now()

	failed, err := c.purger.FailStale(ctx, now, staleJobAfter)
	if err != nil {
		c.log.Warn("search job reaper failed", "error", err)
	} else if failed > 0 {
		c.log.Warn("search job cleanup failed interrupted jobs", "failed", failed)
	}

	deleted, err := c.purger.Cleanup(ctx, now, c.completedRetention, c.failedRetention)
	if err != nil {
		c.log.Warn("search job cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("search job cleanup deleted finished jobs", "deleted", deleted)
	}
}
