package timer

import (
	"sync"
	"time"
)

// Scheduler drives a tick function at a fixed interval on its own goroutine.
// One scheduler per engine instance; Stop cancels the underlying ticker
// deterministically so paused or torn-down timers never leave a goroutine
// running behind them.
type Scheduler struct {
	interval time.Duration
	tick     func()

	mu   sync.Mutex
	stop chan struct{}
}

// NewScheduler creates a stopped scheduler that will call tick every
// interval once started.
func NewScheduler(interval time.Duration, tick func()) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{interval: interval, tick: tick}
}

// Start launches the ticking goroutine. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				s.tick()
			}
		}
	}()
}

// Stop cancels the ticking goroutine. Idempotent; safe to call on a
// scheduler that was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

// Running reports whether the scheduler is currently ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}
