package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/auth"
	"github.com/pyrodev/zenodoro/internal/model"
	"github.com/pyrodev/zenodoro/internal/repository"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// StatsHandler serves the leaderboard and client-reported session
// completions.
type StatsHandler struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(profiles repository.ProfileRepository, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{profiles: profiles, logger: logger}
}

// HandleLeaderboard returns the top profiles by completed sessions.
//
// HTTP: GET /api/leaderboard?limit=N
// Auth: none — the leaderboard is public and only exposes the public
// projection of each profile.
func (h *StatsHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	entries, err := h.profiles.GetLeaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard query failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// completeSessionRequest is the body for client-reported completions (the
// browser timer variant; the server-driven timer reports directly).
type completeSessionRequest struct {
	SessionType model.SessionType `json:"sessionType"`
	Minutes     int               `json:"minutes"`
}

// HandleCompleteSession records a finished countdown for the signed-in user
// and returns the updated profile.
//
// HTTP: POST /api/sessions
// Auth: Required
func (h *StatsHandler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	profile, err := h.profiles.AddCompletedSession(r.Context(), userID, req.SessionType, req.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
