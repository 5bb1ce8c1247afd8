// internal/service/queue/retention.go
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retention periodically deletes completed entries. Active entries are never touched.
type Retention struct {
	queues   QueueStore
	maxAge   time.Duration
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

func NewRetention(queues QueueStore, schedule string, maxAge time.Duration, logger *zap.Logger) *Retention {
	return &Retention{
		queues:   queues,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start registers the sweep and starts the scheduler.
func (r *Retention) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.Error("retention sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.Info("retention scheduler started",
		zap.String("schedule", r.schedule),
		zap.Duration("max_age", r.maxAge),
	)
	return nil
}

// Stop waits for a running sweep to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep deletes completed entries older than maxAge and returns how many went.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.queues.PurgeCompleted(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("purged completed queue entries",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}
