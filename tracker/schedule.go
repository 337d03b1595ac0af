package tracker

import (
	"context"
	"time"
)

// Scheduler decides when the next cycle starts. Wait is called after each
// completed cycle and returns ctx.Err() when the loop should stop.
type Scheduler interface {
	Wait(ctx context.Context) error
}

// IntervalScheduler sleeps a fixed period between the end of one cycle
// and the start of the next.
type IntervalScheduler struct {
	Interval time.Duration
}

func (s IntervalScheduler) Wait(ctx context.Context) error {
	t := time.NewTimer(s.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(ctx context.Context) error

func (f SchedulerFunc) Wait(ctx context.Context) error { return f(ctx) }
