package repository

import (
	"context"

	"github.com/pyrodev/zenodoro/internal/model"
)

// ProfileRepository is the data-access contract for user profiles and their
// completed-session history. This mirrors the operations exposed by the
// hosted relational store; everything above this interface is storage
// agnostic.
type ProfileRepository interface {
	// GetProfile returns the profile for the given user ID, or an error
	// wrapping apperror.ErrNotFound if no row exists.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)

	// UpsertProfile inserts the profile on first sight of the user ID and
	// updates identity and token fields on subsequent calls. It never
	// resets cumulative counters. The stored row is written back into
	// profile.
	UpsertProfile(ctx context.Context, profile *model.Profile) error

	// UpdateTokens replaces the cached Spotify credential pair. An empty
	// refresh token keeps the previously stored one.
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string) error

	// GetLeaderboard returns up to limit profiles ordered by sessions
	// completed, descending.
	GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)

	// AddCompletedSession records one finished countdown. Completed
	// pomodoros also update the profile's cumulative counters, streak,
	// level and badge; breaks are recorded as history only. Returns the
	// profile after the update.
	AddCompletedSession(ctx context.Context, userID string, sessionType model.SessionType, minutes int) (*model.Profile, error)
}
