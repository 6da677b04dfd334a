package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/auth"
	"github.com/pyrodev/zenodoro/internal/service"
	"github.com/pyrodev/zenodoro/internal/timer"
)

// TimerHandler exposes the per-user countdown over HTTP. Every route is
// behind RequireAuth; the engine lives server-side so the countdown keeps
// running across tab reloads.
type TimerHandler struct {
	timers *service.TimerService
	logger *slog.Logger
}

// NewTimerHandler creates a TimerHandler.
func NewTimerHandler(timers *service.TimerService, logger *slog.Logger) *TimerHandler {
	return &TimerHandler{timers: timers, logger: logger}
}

// writeState sends a timer state plus its derived progress.
func writeState(w http.ResponseWriter, st timer.State) {
	total := st.Config.Duration(st.Mode)
	progress := 0.0
	if total > 0 {
		progress = float64(total-st.Remaining) / float64(total) * 100
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":              st.Mode,
		"remaining":         st.Remaining,
		"running":           st.Running,
		"sessionsCompleted": st.SessionsCompleted,
		"config":            st.Config,
		"progressPercent":   progress,
		"cyclesCompleted":   st.SessionsCompleted / st.Config.LongBreakInterval,
	})
}

func (h *TimerHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// HandleState returns the current timer state.
// HTTP: GET /api/timer
func (h *TimerHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	st, err := h.timers.State(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeState(w, st)
}

// HandleStart starts or resumes the countdown.
// HTTP: POST /api/timer/start
func (h *TimerHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	st, err := h.timers.Start(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeState(w, st)
}

// HandlePause pauses the countdown.
// HTTP: POST /api/timer/pause
func (h *TimerHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	st, err := h.timers.Pause(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeState(w, st)
}

// HandleReset restores the full duration for the current mode.
// HTTP: POST /api/timer/reset
func (h *TimerHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	st, err := h.timers.Reset(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeState(w, st)
}

// HandleSwitchMode jumps to the requested mode.
// HTTP: POST /api/timer/mode with body {"mode":"focus"}
func (h *TimerHandler) HandleSwitchMode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Mode timer.Mode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if !req.Mode.Valid() {
		writeError(w, apperror.ValidationFailed("mode", "mode must be focus, short_break or long_break"))
		return
	}

	st, err := h.timers.SwitchMode(r.Context(), userID, req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeState(w, st)
}

// HandleConfigure installs new durations. The engine defers the change
// while a countdown is running; the response reflects the active config.
// HTTP: PUT /api/timer/config
func (h *TimerHandler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var cfg timer.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	st, err := h.timers.Configure(r.Context(), userID, cfg)
	if err != nil {
		writeError(w, apperror.ValidationFailed("config", err.Error()))
		return
	}
	writeState(w, st)
}
