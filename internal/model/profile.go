// Package model defines the data structures used throughout the application.
package model

import "time"

// SessionType identifies which timer phase a completed session belongs to.
// The values match the session_type column in the focus_sessions table.
type SessionType string

const (
	SessionPomodoro   SessionType = "pomodoro"
	SessionShortBreak SessionType = "short_break"
	SessionLongBreak  SessionType = "long_break"
)

// Valid reports whether t is one of the three known session types.
func (t SessionType) Valid() bool {
	switch t {
	case SessionPomodoro, SessionShortBreak, SessionLongBreak:
		return true
	}
	return false
}

// Profile is the persisted per-user record of cumulative progress plus the
// linked Spotify account metadata.
//
// WHY ID string (not int64)?
// The primary key is the identity provider's subject ID — an opaque string
// issued at first sign-in. It is immutable and unique; we never generate it
// ourselves, which keeps the app row and the identity session trivially
// joinable.
//
// Token fields are empty strings until a Spotify link succeeds. Empty string
// (not *string) is the zero value everywhere in this codebase — simpler to
// work with and safe to marshal.
type Profile struct {
	ID                  string      `json:"id"                 db:"id"`
	SpotifyID           string      `json:"spotifyId"          db:"spotify_id"`
	DisplayName         string      `json:"displayName"        db:"display_name"`
	Email               string      `json:"email"              db:"email"`
	AvatarURL           string      `json:"avatarUrl"          db:"avatar_url"`
	Country             string      `json:"country"            db:"country"`
	SpotifyAccessToken  string      `json:"-"                  db:"spotify_access_token"`
	SpotifyRefreshToken string      `json:"-"                  db:"spotify_refresh_token"`
	TotalFocusMinutes   int         `json:"totalFocusTime"     db:"total_focus_time"`
	SessionsCompleted   int         `json:"sessionsCompleted"  db:"sessions_completed"`
	CurrentStreak       int         `json:"currentStreak"      db:"current_streak"`
	LongestStreak       int         `json:"longestStreak"      db:"longest_streak"`
	LastSessionDay      string      `json:"-"                  db:"last_session_day"` // YYYY-MM-DD of last completed pomodoro
	Level               int         `json:"level"              db:"level"`
	Badge               string      `json:"badge"              db:"badge"`
	CreatedAt           time.Time   `json:"createdAt"          db:"created_at"`
	UpdatedAt           time.Time   `json:"updatedAt"          db:"updated_at"`
}

// NewProfile returns a zeroed profile for a first-time user. Level and badge
// are derived, never stored independently of sessions completed.
func NewProfile(id string) *Profile {
	return &Profile{
		ID:    id,
		Level: CalculateLevel(0),
		Badge: BadgeForLevel(CalculateLevel(0)),
	}
}

// HasSpotifyLink reports whether this profile carries a cached Spotify
// credential pair. The provider remains the source of truth — a cached token
// can still be rejected upstream.
func (p *Profile) HasSpotifyLink() bool {
	return p.SpotifyAccessToken != ""
}

// FocusSession is one completed countdown, recorded for history and stats.
type FocusSession struct {
	ID              string      `json:"id"              db:"id"`
	UserID          string      `json:"userId"          db:"user_id"`
	SessionType     SessionType `json:"sessionType"     db:"session_type"`
	DurationMinutes int         `json:"durationMinutes" db:"duration_minutes"`
	CompletedAt     time.Time   `json:"completedAt"     db:"completed_at"`
	CreatedAt       time.Time   `json:"createdAt"       db:"created_at"`
}

// LeaderboardEntry is the public projection of a profile shown on the
// leaderboard — no email, no tokens.
type LeaderboardEntry struct {
	ID                string `json:"id"                db:"id"`
	DisplayName       string `json:"displayName"       db:"display_name"`
	AvatarURL         string `json:"avatarUrl"         db:"avatar_url"`
	SessionsCompleted int    `json:"sessionsCompleted" db:"sessions_completed"`
	TotalFocusMinutes int    `json:"totalFocusTime"    db:"total_focus_time"`
	CurrentStreak     int    `json:"currentStreak"     db:"current_streak"`
	Level             int    `json:"level"             db:"level"`
	Badge             string `json:"badge"             db:"badge"`
}
