// Package session owns the reconciliation between the identity provider and
// the profile store: deciding whether a user is authenticated, loading or
// lazily creating their profile row, and caching the Spotify credential pair.
//
// The Store is the single writer of the in-memory profile; the timer layer
// reads counters from it at initialization and writes back only through the
// repository's AddCompletedSession, never by direct mutation.
package session

import (
	"context"
	"errors"

	"github.com/pyrodev/zenodoro/internal/auth"
	"github.com/pyrodev/zenodoro/internal/model"
	"github.com/pyrodev/zenodoro/internal/spotify"
)

// Event is a discrete auth-state change reported by the identity provider.
type Event string

const (
	EventSignedIn       Event = "signed_in"
	EventSignedOut      Event = "signed_out"
	EventTokenRefreshed Event = "token_refreshed"
	// EventInitialSession fires once on provider startup. It is ignored:
	// the explicit CheckStatus call at boot already covers it, and handling
	// both would reconcile twice.
	EventInitialSession Event = "initial_session"
)

// ProviderUser is the identity metadata carried by a provider session.
type ProviderUser struct {
	ID          string // identity subject, becomes the profile ID
	Email       string
	DisplayName string
	AvatarURL   string
	SpotifyID   string
}

// ProviderSession is a live session as reported by the identity provider,
// optionally carrying a fresh Spotify credential pair from an OAuth
// redirect.
type ProviderSession struct {
	User                 ProviderUser
	ProviderToken        string // Spotify access token, empty unless freshly linked
	ProviderRefreshToken string
}

// Source is the identity/session provider contract. GetSession returns
// (nil, nil) when there is no live session; that is a clean unauthenticated
// state, not an error.
type Source interface {
	GetSession(ctx context.Context) (*ProviderSession, error)
	SignOut(ctx context.Context) error
}

// ProfileFetcher is the slice of the Spotify client the reconciliation flow
// needs: fetching the linked account's profile after a redirect.
type ProfileFetcher interface {
	Me(ctx context.Context, token string) (*spotify.User, error)
}

// TokenRefresher exchanges a refresh token for a fresh credential pair.
// *auth.SpotifyProvider implements it.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// Snapshot is the externally visible auth state. Callers poll it or
// subscribe for changes; they never mutate it.
type Snapshot struct {
	User          *model.Profile
	Authenticated bool
	Loading       bool
	Err           string // last diagnostic, empty when healthy
}

// mergeProfile combines a provider session with a stored profile into the
// active user record. Named-field merge on purpose: a renamed upstream field
// fails here at compile time instead of silently producing an empty value.
//
// Identity fields prefer the fresh provider values when present, cumulative
// counters always come from the store, and the token pair prefers the
// session's (it is newer than anything cached).
func mergeProfile(sess *ProviderSession, stored *model.Profile) *model.Profile {
	merged := *stored
	merged.ID = sess.User.ID

	if sess.User.DisplayName != "" {
		merged.DisplayName = sess.User.DisplayName
	}
	if sess.User.Email != "" {
		merged.Email = sess.User.Email
	}
	if sess.User.AvatarURL != "" {
		merged.AvatarURL = sess.User.AvatarURL
	}
	if sess.User.SpotifyID != "" {
		merged.SpotifyID = sess.User.SpotifyID
	}
	if sess.ProviderToken != "" {
		merged.SpotifyAccessToken = sess.ProviderToken
	}
	if sess.ProviderRefreshToken != "" {
		merged.SpotifyRefreshToken = sess.ProviderRefreshToken
	}

	merged.Level = model.CalculateLevel(merged.SessionsCompleted)
	merged.Badge = model.BadgeForLevel(merged.Level)
	return &merged
}

var errNilSession = errors.New("session: provider session must not be nil")
