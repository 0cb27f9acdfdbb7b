package janitor

import (
	"context"
	"time"

	"ceph-check/internal/logs"
	"ceph-check/internal/metrics"
)

// Sweeper deletes report artifacts older than its retention and returns
// how many it removed.
type Sweeper interface {
	RemoveExpired(now time.Time) int
}

// Janitor periodically removes expired report files.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *logs.Logger
	metrics  *metrics.Registry
	now      func() time.Time
}

func New(
	sweeper Sweeper,
	interval time.Duration,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Janitor {
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.WithComponent("janitor"),
		metrics:  reg,
		now:      time.Now,
	}
}

// Start runs the cleanup loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce()
	for {
		select {
		case <-ticker.C:
			j.RunOnce()
		case <-ctx.Done():
			j.logger.Debug("janitor stopped")
			return
		}
	}
}

// RunOnce performs a single cleanup cycle.
func (j *Janitor) RunOnce() int {
	j.metrics.Inc(metrics.JanitorRunsTotal)

	removed := j.sweeper.RemoveExpired(j.now())
	if removed > 0 {
		j.metrics.Add(metrics.JanitorReportsRemovedTotal, int64(removed))
		j.logger.Info("janitor removed stale report files", "removed", removed)
	}
	return removed
}
