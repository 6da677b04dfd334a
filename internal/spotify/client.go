// Package spotify is a thin client for the parts of the Spotify Web API this
// app consumes: the user profile, playlists and their tracks, and playback
// control. It does not hold tokens; every call takes the bearer token to use,
// so the session layer stays the single owner of credentials.
//
// ERROR MAPPING:
// Spotify signals an expired or invalid token with 401 and an insufficient
// granted scope with 403. Those are mapped to apperror.ErrUpstreamAuth and
// apperror.ErrForbidden respectively so callers can react (trigger a token
// refresh, or tell the user to re-link with more scopes). Everything else
// non-2xx becomes apperror.ErrUpstream.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pyrodev/zenodoro/internal/apperror"
)

// DefaultAPIBase is Spotify's Web API root.
const DefaultAPIBase = "https://api.spotify.com/v1"

// Client calls the Spotify Web API. BaseURL is overridable for tests.
type Client struct {
	BaseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a Client with a 10 second request timeout.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		BaseURL: DefaultAPIBase,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Image is an artwork rendition. Spotify returns several sizes per object.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// User is the portion of the /me response we care about. Spotify returns a
// larger object; we only unmarshal the fields we need.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Country     string  `json:"country"`
	Product     string  `json:"product"`
	Images      []Image `json:"images"`
}

// AvatarURL returns the first profile image, or "" if the user has none.
func (u *User) AvatarURL() string {
	if len(u.Images) == 0 {
		return ""
	}
	return u.Images[0].URL
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track is the normalized track shape served to the frontend:
// {id, name, artists, album:{id,name,images}, duration_ms}.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
}

// TrackItem wraps a track the way Spotify nests playlist entries.
type TrackItem struct {
	Track Track `json:"track"`
}

// TrackPage mirrors the playlist "tracks" object. Items starts empty and is
// filled in by the playlist aggregation service.
type TrackPage struct {
	Total int         `json:"total"`
	Items []TrackItem `json:"items"`
}

// Playlist is one entry from /me/playlists, later augmented with its tracks.
type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Images      []Image   `json:"images"`
	Tracks      TrackPage `json:"tracks"`
	URI         string    `json:"uri"`
}

// NowPlaying is the currently-playing snapshot, nil-able at the call site
// when nothing is playing.
type NowPlaying struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMS int    `json:"progress_ms"`
	Track      *Track `json:"track,omitempty"`
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.getJSON(ctx, token, "/me", &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, apperror.Upstream("spotify: /me returned a user without an id")
	}
	return &u, nil
}

// Playlists fetches up to limit of the user's playlists. Spotify caps the
// page size at 50.
func (c *Client) Playlists(ctx context.Context, token string, limit int) ([]Playlist, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var page struct {
		Items []Playlist `json:"items"`
	}
	path := fmt.Sprintf("/me/playlists?limit=%d&offset=0", limit)
	if err := c.getJSON(ctx, token, path, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// PlaylistTracks fetches a playlist's tracks in the normalized shape.
// Entries with a missing or id-less track (removed episodes, local files)
// are dropped rather than surfaced as nulls.
func (c *Client) PlaylistTracks(ctx context.Context, token, playlistID string) ([]TrackItem, error) {
	fields := url.QueryEscape("items(track(id,name,artists,album(id,name,images),duration_ms))")
	path := fmt.Sprintf("/playlists/%s/tracks?limit=100&offset=0&fields=%s", url.PathEscape(playlistID), fields)

	var page struct {
		Items []TrackItem `json:"items"`
	}
	if err := c.getJSON(ctx, token, path, &page); err != nil {
		return nil, err
	}

	items := page.Items[:0]
	for _, it := range page.Items {
		if it.Track.ID == "" {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// CurrentlyPlaying returns the current playback state, or nil if nothing is
// playing (Spotify answers 204 in that case).
func (c *Client) CurrentlyPlaying(ctx context.Context, token string) (*NowPlaying, error) {
	resp, err := c.do(ctx, token, http.MethodGet, "/me/player/currently-playing", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Upstream(fmt.Sprintf("spotify: reading playback state: %v", err))
	}

	// The playback object nests the track under "item" with a lot of noise
	// around it. gjson lets us pull just the fields we serve without
	// modelling the whole response.
	np := &NowPlaying{
		IsPlaying:  gjson.GetBytes(body, "is_playing").Bool(),
		ProgressMS: int(gjson.GetBytes(body, "progress_ms").Int()),
	}
	if item := gjson.GetBytes(body, "item"); item.Exists() && item.Get("id").String() != "" {
		t := Track{
			ID:         item.Get("id").String(),
			Name:       item.Get("name").String(),
			DurationMS: int(item.Get("duration_ms").Int()),
			Album: Album{
				ID:   item.Get("album.id").String(),
				Name: item.Get("album.name").String(),
			},
		}
		item.Get("artists").ForEach(func(_, a gjson.Result) bool {
			t.Artists = append(t.Artists, Artist{ID: a.Get("id").String(), Name: a.Get("name").String()})
			return true
		})
		item.Get("album.images").ForEach(func(_, img gjson.Result) bool {
			t.Album.Images = append(t.Album.Images, Image{
				URL:    img.Get("url").String(),
				Height: int(img.Get("height").Int()),
				Width:  int(img.Get("width").Int()),
			})
			return true
		})
		np.Track = &t
	}
	return np, nil
}

// Play starts playback of the given track URI, optionally on a specific
// device.
func (c *Client) Play(ctx context.Context, token, trackURI, deviceID string) error {
	body := map[string]any{"uris": []string{trackURI}}
	if deviceID != "" {
		body["device_id"] = deviceID
	}
	return c.command(ctx, token, http.MethodPut, "/me/player/play", body)
}

// Resume resumes the current playback.
func (c *Client) Resume(ctx context.Context, token string) error {
	return c.command(ctx, token, http.MethodPut, "/me/player/play", nil)
}

// PausePlayback pauses the current playback.
func (c *Client) PausePlayback(ctx context.Context, token string) error {
	return c.command(ctx, token, http.MethodPut, "/me/player/pause", nil)
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context, token string) error {
	return c.command(ctx, token, http.MethodPost, "/me/player/next", nil)
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context, token string) error {
	return c.command(ctx, token, http.MethodPost, "/me/player/previous", nil)
}

// SetVolume sets the playback volume, 0–100.
func (c *Client) SetVolume(ctx context.Context, token string, percent int) error {
	if percent < 0 || percent > 100 {
		return apperror.ValidationFailed("volume", "volume must be between 0 and 100")
	}
	path := fmt.Sprintf("/me/player/volume?volume_percent=%d", percent)
	return c.command(ctx, token, http.MethodPut, path, nil)
}

// command runs a playback-control request. Spotify answers these with 204
// (or occasionally 200) and no useful body.
func (c *Client) command(ctx context.Context, token, method, path string, body any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("spotify: encoding %s body: %w", path, err)
		}
		payload = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, token, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.apiError(resp)
	}
	return nil
}

// getJSON runs a GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, token, path string, out any) error {
	resp, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Upstream(fmt.Sprintf("spotify: decoding %s response: %v", path, err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("spotify: building request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Upstream(fmt.Sprintf("spotify: calling %s: %v", path, err))
	}
	return resp, nil
}

// apiError turns a non-2xx Spotify response into a typed error. Spotify error
// bodies are {"error":{"status":N,"message":"..."}} but not reliably so;
// gjson tolerates whatever actually comes back.
func (c *Client) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperror.UpstreamAuth("spotify: " + msg)
	case http.StatusForbidden:
		return apperror.Forbidden("spotify: " + msg)
	default:
		c.logger.Warn("spotify API error",
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg),
		)
		return apperror.Upstream(fmt.Sprintf("spotify: status %d: %s", resp.StatusCode, msg))
	}
}
