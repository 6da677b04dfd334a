package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pyrodev/zenodoro/internal/repository"
)

// Manager keeps one reconciliation Store per signed-in user. HTTP handlers
// identify the user from the validated session cookie and go through the
// manager; the Store itself stays transport-agnostic.
type Manager struct {
	profiles repository.ProfileRepository
	fetcher  ProfileFetcher
	oauth    TokenRefresher
	logger   *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager creates an empty manager.
func NewManager(
	profiles repository.ProfileRepository,
	fetcher ProfileFetcher,
	oauth TokenRefresher,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		profiles: profiles,
		fetcher:  fetcher,
		oauth:    oauth,
		logger:   logger,
		stores:   make(map[string]*Store),
	}
}

// cookieSource adapts the validated session cookie to the Store's identity
// provider contract. By the time a store exists for a user, the JWT has
// already been validated, so GetSession reports a live session for that
// subject. The JWT is stateless, so there is nothing upstream to revoke on
// sign-out; the handler clears the cookie.
type cookieSource struct {
	userID string
}

func (c cookieSource) GetSession(ctx context.Context) (*ProviderSession, error) {
	return &ProviderSession{User: ProviderUser{ID: c.userID}}, nil
}

func (c cookieSource) SignOut(ctx context.Context) error {
	return nil
}

func (m *Manager) storeFor(userID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stores[userID]; ok {
		return st
	}
	st := NewStore(cookieSource{userID: userID}, m.profiles, m.fetcher, m.oauth, m.logger)
	m.stores[userID] = st
	return st
}

// HandleRedirect runs the redirect reconciliation for the session's user and
// returns the resulting snapshot.
func (m *Manager) HandleRedirect(ctx context.Context, sess *ProviderSession) (Snapshot, error) {
	if sess == nil || sess.User.ID == "" {
		return Snapshot{}, errNilSession
	}
	st := m.storeFor(sess.User.ID)
	err := st.HandleProviderRedirect(ctx, sess)
	return st.Snapshot(), err
}

// Status reconciles and returns the current auth state for the user.
func (m *Manager) Status(ctx context.Context, userID string) (Snapshot, error) {
	st := m.storeFor(userID)
	err := st.CheckStatus(ctx)
	return st.Snapshot(), err
}

// RefreshToken rotates the user's Spotify credential pair and returns the
// new access token.
func (m *Manager) RefreshToken(ctx context.Context, userID string) (string, error) {
	st := m.storeFor(userID)
	if snap := st.Snapshot(); snap.User == nil {
		if err := st.CheckStatus(ctx); err != nil {
			return "", err
		}
	}
	return st.RefreshToken(ctx)
}

// SignOut clears the user's reconciled state and drops their store.
func (m *Manager) SignOut(ctx context.Context, userID string) error {
	m.mu.Lock()
	st, ok := m.stores[userID]
	delete(m.stores, userID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	err := st.SignOut(ctx)
	st.Close()
	return err
}
