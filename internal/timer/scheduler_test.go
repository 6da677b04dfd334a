package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_TicksWhileRunning(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(time.Millisecond, func() { ticks.Add(1) })

	s.Start()
	defer s.Stop()

	deadline := time.After(time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("got %d ticks before deadline, want at least 3", ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestScheduler_StopHaltsTicks(t *testing.T) {
	var ticks atomic.Int64
	s := NewScheduler(time.Millisecond, func() { ticks.Add(1) })

	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	settled := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	if got := ticks.Load(); got != settled {
		t.Errorf("ticks advanced from %d to %d after Stop", settled, got)
	}
}

func TestScheduler_StartIdempotent(t *testing.T) {
	s := NewScheduler(time.Hour, func() {})
	s.Start()
	s.Start()
	defer s.Stop()

	if !s.Running() {
		t.Error("expected scheduler to be running")
	}
}

func TestScheduler_StopIdempotent(t *testing.T) {
	s := NewScheduler(time.Hour, func() {})

	// Stop before start must not panic.
	s.Stop()

	s.Start()
	s.Stop()
	s.Stop()

	if s.Running() {
		t.Error("expected scheduler to be stopped")
	}
}
