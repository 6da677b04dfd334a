package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/auth"
	"github.com/pyrodev/zenodoro/internal/model"
	"github.com/pyrodev/zenodoro/internal/session"
	"github.com/pyrodev/zenodoro/internal/spotify"
)

// AuthHandler manages the Spotify OAuth login flow and session management.
//
//   - HandleSpotifyLogin    → redirect the browser to Spotify's consent page
//   - HandleSpotifyCallback → receive the code, reconcile the profile, issue JWT
//   - HandleLogout          → clear reconciled state and the JWT cookie
//   - HandleMe              → return the reconciled profile snapshot
//   - HandleRefreshToken    → rotate the cached Spotify credential pair
type AuthHandler struct {
	provider *auth.SpotifyProvider
	tokens   *auth.TokenService
	sessions *session.Manager
	spotify  *spotify.Client
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	provider *auth.SpotifyProvider,
	tokens *auth.TokenService,
	sessions *session.Manager,
	spotifyClient *spotify.Client,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		tokens:   tokens,
		sessions: sessions,
		spotify:  spotifyClient,
		logger:   logger,
	}
}

// HandleSpotifyLogin redirects the user to Spotify's authorization page.
//
// HTTP: GET /auth/spotify/login
//
// A random state value is stored in a short-lived HttpOnly cookie and
// verified on callback, so a CSRF attacker cannot complete a flow for their
// own account in the victim's browser.
func (h *AuthHandler) HandleSpotifyLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleSpotifyCallback completes the OAuth login flow.
//
// HTTP: GET /auth/spotify/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Spotify token pair
//  3. Resolve the Spotify account (the identity subject)
//  4. Run the redirect reconciliation (profile upsert with retries)
//  5. Issue the JWT session cookie and redirect into the app
//
// Failures redirect back to the login view with a query-encoded reason
// rather than rendering an error page.
func (h *AuthHandler) HandleSpotifyCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Redirect(w, r, "/auth/login?error=invalid_state", http.StatusSeeOther)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Redirect(w, r, "/auth/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// User denied the consent screen
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/auth/login?error=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for the token pair ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/auth/login?error=missing_code", http.StatusSeeOther)
		return
	}

	pair, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/login?error=auth_failed", http.StatusSeeOther)
		return
	}

	// --- Step 3: Resolve the account behind the token ---
	su, err := h.spotify.Me(r.Context(), pair.AccessToken)
	if err != nil {
		h.logger.Error("auth callback: profile fetch failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/login?error=auth_failed", http.StatusSeeOther)
		return
	}

	// --- Step 4: Reconcile ---
	sess := &session.ProviderSession{
		User: session.ProviderUser{
			ID:          su.ID,
			Email:       su.Email,
			DisplayName: su.DisplayName,
			AvatarURL:   su.AvatarURL(),
			SpotifyID:   su.ID,
		},
		ProviderToken:        pair.AccessToken,
		ProviderRefreshToken: pair.RefreshToken,
	}

	snap, err := h.sessions.HandleRedirect(r.Context(), sess)
	if err != nil || !snap.Authenticated {
		h.logger.Error("auth callback: reconciliation failed",
			slog.String("userID", su.ID),
			slog.Any("error", err),
		)
		http.Redirect(w, r, "/auth/login?error=auth_failed", http.StatusSeeOther)
		return
	}

	h.logger.Info("user authenticated via Spotify",
		slog.String("userID", snap.User.ID),
		slog.String("displayName", snap.User.DisplayName),
	)

	// --- Step 5: Issue the session cookie ---
	tokenStr, err := h.tokens.Generate(snap.User.ID)
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Redirect(w, r, "/auth/login?error=auth_failed", http.StatusSeeOther)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the reconciled state and the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Sign-out always completes locally: even if clearing the server-side state
// fails, the cookie is deleted and the response is a success.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		if err := h.sessions.SignOut(r.Context(), userID); err != nil {
			h.logger.Warn("sign-out cleanup failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the reconciled profile for the signed-in user.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	snap, err := h.sessions.Status(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !snap.Authenticated || snap.User == nil {
		writeError(w, apperror.NoSession())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":          snap.User,
		"authenticated": snap.Authenticated,
		"spotifyLinked": snap.User.HasSpotifyLink(),
		"nextLevelPct":  model.NextLevelProgress(snap.User.SessionsCompleted),
	})
}

// HandleRefreshToken rotates the cached Spotify credential pair and returns
// the fresh access token.
//
// HTTP: POST /api/spotify/refresh
// Auth: Required
func (h *AuthHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	accessToken, err := h.sessions.RefreshToken(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}
