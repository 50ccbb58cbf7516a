// Package autopilot triggers background improvement rounds on a fixed interval.
package autopilot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc starts one round of autopilot work.
type TickFunc func(ctx context.Context)

// Scheduler calls a TickFunc every interval. Ticks are single flight: a tick
// that fires while the previous one is still running is skipped, never queued.
type Scheduler struct {
	interval time.Duration
	tick     TickFunc
	log      zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(interval time.Duration, tick TickFunc, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		tick:     tick,
		log:      logger,
	}
}

// Run blocks until ctx is cancelled, then waits for an in-flight tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Debug().Dur("interval", s.interval).Msg("autopilot scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-ticker.C:
			if !s.TryTick(ctx) {
				s.log.Debug().Msg("autopilot tick skipped, previous tick still running")
			}
		}
	}
}

// TryTick starts a tick in the background unless one is already running and
// reports whether it did.
func (s *Scheduler) TryTick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.tick(ctx)
	}()
	return true
}

// Busy reports whether a tick is in flight.
func (s *Scheduler) Busy() bool {
	return s.running.Load()
}

// Wait blocks until the in-flight tick, if any, returns.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
