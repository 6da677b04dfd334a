package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"

	"github.com/pyrodev/zenodoro/internal/apperror"
)

// Scopes requested at link time. Playlist read for the playlist picker,
// playback scopes for the in-app controls, streaming for the web player.
var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"streaming",
}

// TokenPair is the external credential pair issued by Spotify: a short-lived
// access token plus the refresh token used to rotate it. RefreshToken may be
// empty — Spotify omits it on refresh-grant responses when the old one stays
// valid.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SpotifyProvider wraps golang.org/x/oauth2 for the Spotify Authorization
// Code flow plus the refresh-token grant.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. We redirect the user to Spotify's authorization endpoint with our
//    ClientID and the requested scopes.
// 2. The user approves (or denies) on Spotify.
// 3. Spotify redirects back to CallbackURL with a short-lived "code".
// 4. We exchange the code for an access/refresh token pair server-to-server,
//    using the ClientSecret. Tokens never touch the browser.
type SpotifyProvider struct {
	config *oauth2.Config
}

// NewSpotifyProvider creates a SpotifyProvider with the given app
// credentials. callbackURL must exactly match a redirect URI registered in
// the Spotify developer dashboard.
func NewSpotifyProvider(clientID, clientSecret, callbackURL string) *SpotifyProvider {
	return &SpotifyProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       spotifyScopes,
			Endpoint:     spotifyauth.Endpoint,
		},
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is a random value stored in a cookie before the redirect and checked
// on callback, which keeps a CSRF attacker from completing a flow for their
// own account in the victim's browser.
func (p *SpotifyProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the authorization code for a token pair.
func (p *SpotifyProvider) Exchange(ctx context.Context, code string) (TokenPair, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if tok.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("auth: Spotify returned an empty access token")
	}
	return TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a fresh pair via the refresh-token
// grant. When Spotify omits the refresh token from the response, the old one
// is carried forward so callers always get a complete pair back.
func (p *SpotifyProvider) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, apperror.TokenRefreshFailed("no refresh token cached")
	}

	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenPair{}, apperror.TokenRefreshFailed(fmt.Sprintf("token exchange rejected: %v", err))
	}

	pair := TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}
