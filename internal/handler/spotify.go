package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/service"
	"github.com/pyrodev/zenodoro/internal/spotify"
)

// SpotifyHandler exposes the playlist aggregation endpoint and the playback
// controls. These routes authenticate with the SPOTIFY access token in the
// Authorization header (the frontend holds it), not the app session cookie:
// the upstream API is the real authority on whether the token is good.
type SpotifyHandler struct {
	playlists *service.PlaylistService
	client    *spotify.Client
	logger    *slog.Logger
}

// NewSpotifyHandler creates a SpotifyHandler.
func NewSpotifyHandler(playlists *service.PlaylistService, client *spotify.Client, logger *slog.Logger) *SpotifyHandler {
	return &SpotifyHandler{playlists: playlists, client: client, logger: logger}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// Returns "" when the header is missing or empty.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// HandlePlaylists returns the caller's playlists, each augmented with its
// tracks in the normalized shape.
//
// HTTP: POST /api/spotify/playlists
//
// Responses: 401 without an Authorization header or when the upstream
// rejects the token, 403 when the granted scope is insufficient, 500 on any
// other upstream failure. A single playlist failing to load its tracks is
// degraded to an empty track list, not an error.
func (h *SpotifyHandler) HandlePlaylists(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No authorization header"})
		return
	}

	playlists, err := h.playlists.Aggregate(r.Context(), token)
	if err != nil {
		h.logger.Error("playlist aggregation failed", slog.String("error", err.Error()))
		switch {
		case errors.Is(err, apperror.ErrUpstreamAuth):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		case errors.Is(err, apperror.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Insufficient permissions"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch Spotify playlists"})
		}
		return
	}

	writeJSON(w, http.StatusOK, playlists)
}

// HandleNowPlaying returns the current playback state, or 204 when nothing
// is playing.
//
// HTTP: GET /api/spotify/player
func (h *SpotifyHandler) HandleNowPlaying(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No authorization header"})
		return
	}

	np, err := h.client.CurrentlyPlaying(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if np == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

// playerRequest is the body for playback commands that need parameters.
type playerRequest struct {
	TrackURI string `json:"trackUri"`
	DeviceID string `json:"deviceId"`
	Volume   *int   `json:"volume"`
}

// HandlePlayerCommand executes one playback control against the upstream
// player.
//
// HTTP: POST /api/spotify/player/{command}
// Commands: play, pause, next, previous, volume
func (h *SpotifyHandler) HandlePlayerCommand(command string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No authorization header"})
			return
		}

		var req playerRequest
		if r.Body != nil {
			// Commands without parameters legitimately send no body.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		var err error
		switch command {
		case "play":
			if req.TrackURI != "" {
				err = h.client.Play(r.Context(), token, req.TrackURI, req.DeviceID)
			} else {
				err = h.client.Resume(r.Context(), token)
			}
		case "pause":
			err = h.client.PausePlayback(r.Context(), token)
		case "next":
			err = h.client.Next(r.Context(), token)
		case "previous":
			err = h.client.Previous(r.Context(), token)
		case "volume":
			if req.Volume == nil {
				writeError(w, apperror.ValidationFailed("volume", "volume is required"))
				return
			}
			err = h.client.SetVolume(r.Context(), token, *req.Volume)
		default:
			writeError(w, apperror.ValidationFailed("command", "unknown player command"))
			return
		}

		if err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
