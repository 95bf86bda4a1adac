package scheduler

import (
	"context"
	"time"

	"TenderRadar/internal/ports"
)

// DailyScheduler is a lightweight ticker-based driver. The job runs once
// immediately and then every 24h; a real cron binding can replace it without
// touching the pipeline.
type DailyScheduler struct {
	spec string
	stop chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler keeps the cron expression for a future cron binding.
func NewDailyScheduler(spec string) *DailyScheduler {
	return &DailyScheduler{spec: spec}
}

// Start begins ticking. The scheduler only stops jobs between cycles; a
// running cycle is never interrupted mid-parse.
func (c *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.stop != nil {
		return nil
	}

	c.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (c *DailyScheduler) Stop(ctx context.Context) error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.stop = nil
	return nil
}
