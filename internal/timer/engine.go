// Package timer implements the focus/break countdown state machine.
//
// The engine is pure arithmetic over local state: no I/O, no goroutines, no
// clocks. Time enters only through Tick(), which an external Scheduler calls
// once per second. That split keeps the state machine fully deterministic
// and trivially testable: a test drives 1500 Ticks and asserts the
// transition, no sleeping involved.
package timer

import "errors"

var (
	errInvalidDuration = errors.New("timer: durations must be positive")
	errInvalidInterval = errors.New("timer: long break interval must be positive")
)

// Mode is one of the three timer phases.
type Mode string

const (
	ModeFocus      Mode = "focus"
	ModeShortBreak Mode = "short_break"
	ModeLongBreak  Mode = "long_break"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeFocus, ModeShortBreak, ModeLongBreak:
		return true
	}
	return false
}

// Config holds the per-mode durations and sequencing options.
type Config struct {
	PomodoroSeconds   int  `json:"pomodoroSeconds"`
	ShortBreakSeconds int  `json:"shortBreakSeconds"`
	LongBreakSeconds  int  `json:"longBreakSeconds"`
	LongBreakInterval int  `json:"longBreakInterval"` // long break after every Nth pomodoro
	AutoStartNext     bool `json:"autoStartNext"`     // keep running across mode transitions
}

// DefaultConfig is the classic 25/5/15 pomodoro split with a long break
// every fourth focus session.
func DefaultConfig() Config {
	return Config{
		PomodoroSeconds:   25 * 60,
		ShortBreakSeconds: 5 * 60,
		LongBreakSeconds:  15 * 60,
		LongBreakInterval: 4,
		AutoStartNext:     false,
	}
}

// Duration returns the configured duration in seconds for the given mode.
func (c Config) Duration(m Mode) int {
	switch m {
	case ModeShortBreak:
		return c.ShortBreakSeconds
	case ModeLongBreak:
		return c.LongBreakSeconds
	default:
		return c.PomodoroSeconds
	}
}

func (c Config) validate() error {
	if c.PomodoroSeconds <= 0 || c.ShortBreakSeconds <= 0 || c.LongBreakSeconds <= 0 {
		return errInvalidDuration
	}
	if c.LongBreakInterval <= 0 {
		return errInvalidInterval
	}
	return nil
}

// State is a read-only snapshot of the engine, safe to marshal to clients.
type State struct {
	Mode              Mode   `json:"mode"`
	Remaining         int    `json:"remaining"`
	Running           bool   `json:"running"`
	SessionsCompleted int    `json:"sessionsCompleted"`
	Config            Config `json:"config"`
}

// Engine is the countdown state machine. It is not safe for concurrent use;
// owners serialize access (see service.TimerService).
//
// Invariants:
//   - remaining is always within [0, configured duration for the mode]
//   - running is false whenever remaining is 0
//   - mode changes only when remaining hits 0 or on explicit SwitchMode
type Engine struct {
	cfg       Config
	pending   *Config // config change deferred while running
	mode      Mode
	remaining int
	running   bool
	sessions  int // focus sessions completed this run

	onComplete func(finished Mode)
}

// NewEngine creates an engine in focus mode with the full focus duration
// remaining. A zero-value field in cfg falls back to the default config.
func NewEngine(cfg Config) *Engine {
	if cfg.validate() != nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:       cfg,
		mode:      ModeFocus,
		remaining: cfg.PomodoroSeconds,
	}
}

// OnComplete registers the callback invoked whenever a mode finishes its
// countdown. The callback receives the mode that just completed and runs
// synchronously inside Tick.
func (e *Engine) OnComplete(fn func(finished Mode)) {
	e.onComplete = fn
}

// Start begins the countdown. No-op when nothing remains to count.
func (e *Engine) Start() {
	if e.remaining == 0 {
		return
	}
	e.running = true
}

// Pause stops the countdown without touching remaining time.
func (e *Engine) Pause() {
	e.running = false
}

// Reset stops the countdown and restores the full configured duration for
// the current mode. The mode itself does not change, and a deferred config
// change stays deferred: reset is not a mode switch.
func (e *Engine) Reset() {
	e.running = false
	e.remaining = e.cfg.Duration(e.mode)
}

// SwitchMode stops the countdown and moves to the given mode with its full
// duration. Manual override is always permitted, from any state. A config
// change deferred while running applies here.
func (e *Engine) SwitchMode(m Mode) {
	if !m.Valid() {
		return
	}
	e.applyPending()
	e.running = false
	e.mode = m
	e.remaining = e.cfg.Duration(m)
}

// SetConfig installs new durations and sequencing options.
//
// Policy (see DESIGN.md): while stopped, the change takes effect immediately
// and remaining is re-based to the new duration for the active mode. While
// running, the change is deferred until the next mode switch so an
// in-progress countdown is never corrupted.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if e.running {
		c := cfg
		e.pending = &c
		return nil
	}
	e.cfg = cfg
	e.pending = nil
	e.remaining = cfg.Duration(e.mode)
	return nil
}

// Tick advances the countdown by one second. A no-op while paused or
// already at zero. When the countdown reaches zero it applies the
// transition rule and notifies the OnComplete callback with the mode that
// just finished.
func (e *Engine) Tick() {
	if !e.running || e.remaining == 0 {
		return
	}
	e.remaining--
	if e.remaining > 0 {
		return
	}

	finished := e.mode
	e.advance()
	if e.onComplete != nil {
		e.onComplete(finished)
	}
}

// advance applies the transition rule after a countdown hits zero:
// focus → short break, or long break after every LongBreakInterval-th focus
// session; any break → focus.
func (e *Engine) advance() {
	e.applyPending()

	var next Mode
	if e.mode == ModeFocus {
		e.sessions++
		if e.sessions%e.cfg.LongBreakInterval == 0 {
			next = ModeLongBreak
		} else {
			next = ModeShortBreak
		}
	} else {
		next = ModeFocus
	}

	e.mode = next
	e.remaining = e.cfg.Duration(next)
	e.running = e.cfg.AutoStartNext
}

func (e *Engine) applyPending() {
	if e.pending != nil {
		e.cfg = *e.pending
		e.pending = nil
	}
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	return State{
		Mode:              e.mode,
		Remaining:         e.remaining,
		Running:           e.running,
		SessionsCompleted: e.sessions,
		Config:            e.cfg,
	}
}

// ProgressPercent reports how far the current countdown has advanced,
// 0 right after a switch or reset, approaching 100 as remaining reaches 0.
func (e *Engine) ProgressPercent() float64 {
	total := e.cfg.Duration(e.mode)
	if total <= 0 {
		return 0
	}
	return float64(total-e.remaining) / float64(total) * 100
}

// CyclesCompleted reports how many full focus/break cycles have finished.
func (e *Engine) CyclesCompleted() int {
	return e.sessions / e.cfg.LongBreakInterval
}
