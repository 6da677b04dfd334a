// Package service holds the business logic between the HTTP handlers and
// the repositories and external clients.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pyrodev/zenodoro/internal/model"
	"github.com/pyrodev/zenodoro/internal/repository"
	"github.com/pyrodev/zenodoro/internal/timer"
)

// TimerService runs one countdown engine per signed-in user, drives it with
// a per-engine scheduler, and reports completed focus sessions to the
// profile store.
//
// OWNERSHIP:
// The engine owns the transient countdown; the repository owns cumulative
// counters. The only write path from timer to profile is
// AddCompletedSession, invoked here when a focus countdown finishes. Nothing
// else mutates the counters, which keeps a single writer per field-group.
type TimerService struct {
	repo         repository.ProfileRepository
	logger       *slog.Logger
	tickInterval time.Duration

	mu     sync.Mutex
	timers map[string]*userTimer
}

// userTimer pairs an engine with its scheduler. engine access is serialized
// on mu because ticks arrive from the scheduler goroutine while API calls
// arrive from request goroutines.
type userTimer struct {
	mu        sync.Mutex
	engine    *timer.Engine
	sched     *timer.Scheduler
	completed []timer.Mode // modes finished since the last drain
}

// NewTimerService creates the registry. tickInterval is one second in
// production; tests shorten it.
func NewTimerService(repo repository.ProfileRepository, logger *slog.Logger, tickInterval time.Duration) *TimerService {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &TimerService{
		repo:         repo,
		logger:       logger,
		tickInterval: tickInterval,
		timers:       make(map[string]*userTimer),
	}
}

// timerFor returns the user's timer, creating it on first use. Creation
// verifies the profile exists so an engine is never driven for an unknown
// user.
func (s *TimerService) timerFor(ctx context.Context, userID string) (*userTimer, error) {
	s.mu.Lock()
	ut, ok := s.timers[userID]
	s.mu.Unlock()
	if ok {
		return ut, nil
	}

	if _, err := s.repo.GetProfile(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/timer: loading profile for %s: %w", userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ut, ok = s.timers[userID]; ok {
		return ut, nil
	}

	ut = &userTimer{engine: timer.NewEngine(timer.DefaultConfig())}
	ut.engine.OnComplete(func(finished timer.Mode) {
		// Runs inside Tick, under ut.mu; drained after the tick returns.
		ut.completed = append(ut.completed, finished)
	})
	ut.sched = timer.NewScheduler(s.tickInterval, func() { s.tick(userID, ut) })
	s.timers[userID] = ut
	return ut, nil
}

// tick advances one engine by a second and handles anything that finished.
func (s *TimerService) tick(userID string, ut *userTimer) {
	ut.mu.Lock()
	cfg := ut.engine.State().Config // pre-transition durations
	ut.engine.Tick()
	done := ut.completed
	ut.completed = nil
	running := ut.engine.State().Running
	ut.mu.Unlock()

	for _, mode := range done {
		s.reportCompletion(userID, mode, cfg)
	}
	if !running {
		ut.sched.Stop()
	}
}

// reportCompletion persists a finished countdown. Only focus sessions move
// the cumulative counters; breaks are recorded as history.
func (s *TimerService) reportCompletion(userID string, mode timer.Mode, cfg timer.Config) {
	minutes := cfg.Duration(mode) / 60
	if minutes == 0 {
		minutes = 1
	}

	sessionType := model.SessionShortBreak
	switch mode {
	case timer.ModeFocus:
		sessionType = model.SessionPomodoro
	case timer.ModeLongBreak:
		sessionType = model.SessionLongBreak
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	profile, err := s.repo.AddCompletedSession(ctx, userID, sessionType, minutes)
	if err != nil {
		s.logger.Error("recording completed session failed",
			slog.String("userID", userID),
			slog.String("mode", string(mode)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("session completed",
		slog.String("userID", userID),
		slog.String("mode", string(mode)),
		slog.Int("minutes", minutes),
		slog.Int("sessionsCompleted", profile.SessionsCompleted),
	)
}

// State returns the user's current timer state, creating the timer on first
// call.
func (s *TimerService) State(ctx context.Context, userID string) (timer.State, error) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	ut.mu.Lock()
	defer ut.mu.Unlock()
	return ut.engine.State(), nil
}

// Start begins (or resumes) the countdown.
func (s *TimerService) Start(ctx context.Context, userID string) (timer.State, error) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	ut.mu.Lock()
	ut.engine.Start()
	st := ut.engine.State()
	ut.mu.Unlock()

	if st.Running {
		ut.sched.Start()
	}
	return st, nil
}

// Pause stops the countdown and its scheduler.
func (s *TimerService) Pause(ctx context.Context, userID string) (timer.State, error) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	ut.mu.Lock()
	ut.engine.Pause()
	st := ut.engine.State()
	ut.mu.Unlock()

	ut.sched.Stop()
	return st, nil
}

// Reset restores the full duration for the current mode.
func (s *TimerService) Reset(ctx context.Context, userID string) (timer.State, error) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	ut.mu.Lock()
	ut.engine.Reset()
	st := ut.engine.State()
	ut.mu.Unlock()

	ut.sched.Stop()
	return st, nil
}

// SwitchMode jumps to the given mode, stopped, with its full duration.
func (s *TimerService) SwitchMode(ctx context.Context, userID string, mode timer.Mode) (timer.State, error) {
	if !mode.Valid() {
		return timer.State{}, fmt.Errorf("service/timer: unknown mode %q", mode)
	}
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	ut.mu.Lock()
	ut.engine.SwitchMode(mode)
	st := ut.engine.State()
	ut.mu.Unlock()

	ut.sched.Stop()
	return st, nil
}

// Configure installs new durations; the engine defers the change while a
// countdown is running.
func (s *TimerService) Configure(ctx context.Context, userID string, cfg timer.Config) (timer.State, error) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return timer.State{}, err
	}
	ut.mu.Lock()
	defer ut.mu.Unlock()
	if err := ut.engine.SetConfig(cfg); err != nil {
		return timer.State{}, err
	}
	return ut.engine.State(), nil
}

// Shutdown stops every scheduler. Called during graceful server shutdown so
// no tick goroutines outlive the process teardown.
func (s *TimerService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ut := range s.timers {
		ut.sched.Stop()
	}
}
