// Package scheduler provides the fixed-interval timer that drives
// evaluation cycles. One scheduler per delivery controller; it knows
// nothing about triggers or business state.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per interval. The context is cancelled when the
// scheduler stops.
type TickFunc func(ctx context.Context)

// Scheduler fires a callback on a fixed period. Start on session begin,
// Stop on session end; Stop waits for an in-flight tick to return.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	tick     TickFunc
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	log      zerolog.Logger
}

// New creates a scheduler firing tick every interval.
func New(interval time.Duration, tick TickFunc, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		interval: interval,
		tick:     tick,
		log:      log,
	}
}

// Start begins the periodic loop. It returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the loop. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
