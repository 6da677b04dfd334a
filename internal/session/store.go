package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/auth"
	"github.com/pyrodev/zenodoro/internal/model"
	"github.com/pyrodev/zenodoro/internal/repository"
	"github.com/pyrodev/zenodoro/internal/retry"
)

// Retry bounds per operation class. All retries are capped; nothing in this
// package loops unbounded.
const (
	profileAttempts  = 3
	redirectAttempts = 5
	baseRetryDelay   = time.Second

	// settleDelay gives the identity provider a moment to finalize session
	// state after an OAuth redirect before we read it back.
	settleDelay = 500 * time.Millisecond
)

// Store reconciles identity-provider state with the profile store and
// exposes the result to the rest of the app.
//
// CONCURRENCY:
// All reconciliation flows (CheckStatus, HandleProviderRedirect, SignOut)
// serialize on opMu. Without that, a slow CheckStatus response could
// overwrite a just-completed redirect result, or vice versa; serializing
// makes the last flow to START the authoritative one. A separate in-flight
// flag additionally collapses duplicate redirect events: the second caller
// is dropped, not queued.
//
// Stale results: every apply carries the generation observed when the flow
// started. SignOut and Close bump the generation, so a flow that finishes
// after the user signed out cannot resurrect its state.
type Store struct {
	source   Source
	profiles repository.ProfileRepository
	fetcher  ProfileFetcher
	oauth    TokenRefresher
	sleep    func(context.Context, time.Duration)
	logger   *slog.Logger

	opMu             sync.Mutex
	redirectInFlight atomic.Bool

	mu            sync.Mutex
	gen           uint64
	user          *model.Profile
	authenticated bool
	loading       bool
	lastErr       string
	nextSubID     int
	subs          map[int]func(Snapshot)
}

// NewStore wires a reconciliation store. fetcher and oauth may not be nil;
// inject fakes in tests.
func NewStore(
	source Source,
	profiles repository.ProfileRepository,
	fetcher ProfileFetcher,
	oauth TokenRefresher,
	logger *slog.Logger,
) *Store {
	return &Store{
		source:   source,
		profiles: profiles,
		fetcher:  fetcher,
		oauth:    oauth,
		sleep:    sleepCtx,
		logger:   logger,
		loading:  true,
		subs:     make(map[int]func(Snapshot)),
	}
}

// SetSleep replaces the delay function. Tests use this to observe settle and
// backoff delays without waiting for them.
func (s *Store) SetSleep(fn func(context.Context, time.Duration)) {
	s.sleep = fn
}

// Snapshot returns the current auth state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		User:          s.user,
		Authenticated: s.authenticated,
		Loading:       s.loading,
		Err:           s.lastErr,
	}
}

// Subscribe registers fn to be called after every state change. The
// returned function unsubscribes. Callbacks run outside the store's locks.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// CheckStatus queries the identity provider for a live session and brings
// the local state in line with it: no session clears the state, a session
// loads the profile row, creating it lazily for first-time users. Data
// access failures are retried with backoff before surfacing as "profile
// unavailable"; the state always leaves loading, never wedged.
func (s *Store) CheckStatus(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	gen := s.currentGen()

	sess, err := s.source.GetSession(ctx)
	if err != nil {
		s.apply(gen, nil, false, "session check failed: "+err.Error())
		return apperror.NoSession()
	}
	if sess == nil || sess.User.ID == "" {
		s.apply(gen, nil, false, "")
		return nil
	}

	profile, err := s.loadOrCreateProfile(ctx, sess)
	if err != nil {
		s.logger.Error("profile load failed after retries",
			slog.String("userID", sess.User.ID),
			slog.String("error", err.Error()),
		)
		appErr := apperror.ProfileUnavailable(sess.User.ID, err)
		s.apply(gen, nil, false, appErr.Message)
		return appErr
	}

	s.apply(gen, mergeProfile(sess, profile), true, "")
	return nil
}

// loadOrCreateProfile loads the profile row, creating a zeroed default for
// first-time users. A missing row is the expected first-login path, not a
// retryable failure, so the lazy create happens inside the attempt.
func (s *Store) loadOrCreateProfile(ctx context.Context, sess *ProviderSession) (*model.Profile, error) {
	var profile *model.Profile
	err := retry.Do(ctx, s.policy(profileAttempts), func(ctx context.Context) error {
		p, err := s.profiles.GetProfile(ctx, sess.User.ID)
		if err == nil {
			profile = p
			return nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		fresh := model.NewProfile(sess.User.ID)
		fresh.DisplayName = sess.User.DisplayName
		fresh.Email = sess.User.Email
		fresh.AvatarURL = sess.User.AvatarURL
		fresh.SpotifyID = sess.User.SpotifyID
		if err := s.profiles.UpsertProfile(ctx, fresh); err != nil {
			return err
		}
		profile = fresh
		return nil
	})
	return profile, err
}

// HandleProviderRedirect reconciles a newly established session carrying a
// fresh Spotify credential pair. Steps: settle, enrich identity from the
// Spotify /me endpoint, upsert the profile with identity plus tokens, adopt
// the merged result. On persistent failure it degrades to any pre-existing
// profile for that user before giving up.
//
// Idempotent under re-invocation: a redirect arriving while one is already
// being processed is dropped, the first flow's result is authoritative.
func (s *Store) HandleProviderRedirect(ctx context.Context, sess *ProviderSession) error {
	if sess == nil || sess.User.ID == "" {
		return errNilSession
	}

	if !s.redirectInFlight.CompareAndSwap(false, true) {
		s.logger.Debug("duplicate redirect dropped", slog.String("userID", sess.User.ID))
		return nil
	}
	defer s.redirectInFlight.Store(false)

	s.opMu.Lock()
	defer s.opMu.Unlock()
	gen := s.currentGen()

	// The provider may still be finalizing session state right after the
	// redirect; reading it back too early races the write.
	s.sleep(ctx, settleDelay)

	identity := sess.User
	if sess.ProviderToken != "" {
		if su, err := s.fetcher.Me(ctx, sess.ProviderToken); err == nil {
			identity.SpotifyID = su.ID
			if su.DisplayName != "" {
				identity.DisplayName = su.DisplayName
			}
			if su.Email != "" {
				identity.Email = su.Email
			}
			if su.AvatarURL() != "" {
				identity.AvatarURL = su.AvatarURL()
			}
		} else {
			// Metadata enrichment is best-effort; the provider session
			// already carries enough identity to proceed.
			s.logger.Warn("spotify profile fetch failed",
				slog.String("userID", sess.User.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	profile := model.NewProfile(sess.User.ID)
	profile.SpotifyID = identity.SpotifyID
	profile.DisplayName = identity.DisplayName
	profile.Email = identity.Email
	profile.AvatarURL = identity.AvatarURL
	profile.SpotifyAccessToken = sess.ProviderToken
	profile.SpotifyRefreshToken = sess.ProviderRefreshToken

	err := retry.Do(ctx, s.policy(redirectAttempts), func(ctx context.Context) error {
		return s.profiles.UpsertProfile(ctx, profile)
	})
	if err != nil {
		// Degraded success: adopt whatever profile already exists.
		if existing, loadErr := s.profiles.GetProfile(ctx, sess.User.ID); loadErr == nil {
			s.logger.Warn("redirect upsert failed, adopting existing profile",
				slog.String("userID", sess.User.ID),
				slog.String("error", err.Error()),
			)
			s.apply(gen, mergeProfile(sess, existing), true, "")
			return nil
		}

		appErr := apperror.ProfileUnavailable(sess.User.ID, err)
		s.apply(gen, nil, false, appErr.Message)
		return appErr
	}

	enriched := *sess
	enriched.User = identity
	s.apply(gen, mergeProfile(&enriched, profile), true, "")
	return nil
}

// RefreshToken exchanges the cached refresh token for a new credential pair,
// persists it, and updates local state. Returns the new access token.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	if user == nil || user.SpotifyRefreshToken == "" {
		return "", apperror.TokenRefreshFailed("no refresh token cached")
	}

	var pair auth.TokenPair
	err := retry.Do(ctx, s.policy(redirectAttempts), func(ctx context.Context) error {
		p, err := s.oauth.Refresh(ctx, user.SpotifyRefreshToken)
		if err != nil {
			return err
		}
		pair = p
		return s.profiles.UpdateTokens(ctx, user.ID, p.AccessToken, p.RefreshToken)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrTokenRefresh) {
			return "", err
		}
		return "", apperror.TokenRefreshFailed(err.Error())
	}

	s.mergeTokens(pair.AccessToken, pair.RefreshToken)
	return pair.AccessToken, nil
}

// GetValidToken returns the cached Spotify access token, or false when none
// is linked. Expiry is not checked here: the caller reacts to an upstream
// 401 by calling RefreshToken. (Known gap, kept deliberately: the provider
// tolerates a stale token long enough for the 401-then-refresh path.)
func (s *Store) GetValidToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.SpotifyAccessToken == "" {
		return "", false
	}
	return s.user.SpotifyAccessToken, true
}

// SignOut delegates to the identity provider, then clears local state
// unconditionally. A failed provider call is logged and returned, but the
// user is signed out locally regardless: sign-out must never appear to hang.
func (s *Store) SignOut(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.source.SignOut(ctx)
	if err != nil {
		s.logger.Warn("provider sign-out failed, clearing local state anyway",
			slog.String("error", err.Error()),
		)
	}
	s.clear()
	return err
}

// HandleAuthEvent routes a provider event to the right flow:
// signed_in with a Spotify token → redirect reconciliation; signed_in
// without → status check; signed_out → clear; token_refreshed → merge the
// pair locally without a profile reload; initial_session → ignored.
func (s *Store) HandleAuthEvent(ctx context.Context, event Event, sess *ProviderSession) error {
	switch event {
	case EventSignedIn:
		if sess != nil && sess.ProviderToken != "" {
			return s.HandleProviderRedirect(ctx, sess)
		}
		return s.CheckStatus(ctx)
	case EventSignedOut:
		s.clear()
		return nil
	case EventTokenRefreshed:
		if sess != nil && sess.ProviderToken != "" {
			s.mergeTokens(sess.ProviderToken, sess.ProviderRefreshToken)
		}
		return nil
	case EventInitialSession:
		return nil
	default:
		s.logger.Debug("unknown auth event ignored", slog.String("event", string(event)))
		return nil
	}
}

// Close invalidates in-flight flows so their results are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

// --- internal state management ---

func (s *Store) currentGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// apply installs a reconciliation result unless the state generation moved
// while the flow was running (sign-out, close).
func (s *Store) apply(gen uint64, user *model.Profile, authenticated bool, diag string) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.user = user
	s.authenticated = authenticated
	s.loading = false
	s.lastErr = diag
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

func (s *Store) clear() {
	s.mu.Lock()
	s.gen++
	s.user = nil
	s.authenticated = false
	s.loading = false
	s.lastErr = ""
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

func (s *Store) mergeTokens(access, refresh string) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	u := *s.user
	u.SpotifyAccessToken = access
	if refresh != "" {
		u.SpotifyRefreshToken = refresh
	}
	s.user = &u
	snap, subs := s.snapshotLocked(), s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// policy builds the retry policy for n attempts: linear backoff from a one
// second base, permission and validation failures short-circuit (they never
// resolve on retry; the caller's fallback path handles them).
func (s *Store) policy(attempts int) retry.Policy {
	return retry.Policy{
		Attempts:  attempts,
		BaseDelay: baseRetryDelay,
		Backoff:   retry.Linear,
		Retryable: func(err error) bool {
			return !errors.Is(err, apperror.ErrForbidden) &&
				!errors.Is(err, apperror.ErrValidation)
		},
		Sleep: s.sleep,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
