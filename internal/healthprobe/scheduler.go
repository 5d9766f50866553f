package healthprobe

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Scheduler drives periodic ProbeAll sweeps on a ticker, the same
// start/stop-channel shape the teacher's health checker scheduler uses
// for its due-time loop, simplified here since every binding in a
// declared document is probed together rather than staggered by a
// per-endpoint due time. rate.Sometimes coarse-gates how often a
// ticker-driven sweep can actually fire. Manual admin ProbeAll calls go
// straight to the Prober and are not gated by it.
type Scheduler struct {
	prober   *Prober
	interval time.Duration
	sometime rate.Sometimes
	stopCh   chan struct{}
}

// NewScheduler builds a scheduler that sweeps every interval, but runs
// ticker-driven sweeps no more often than once per minInterval; manual
// ProbeAll calls are not counted against that interval.
func NewScheduler(prober *Prober, interval, minInterval time.Duration) *Scheduler {
	return &Scheduler{
		prober:   prober,
		interval: interval,
		sometime: rate.Sometimes{Interval: minInterval},
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop is called or ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop ends the sweep loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sometime.Do(func() {
				s.prober.ProbeAll(ctx)
			})
		}
	}
}
