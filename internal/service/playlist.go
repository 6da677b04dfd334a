package service

import (
	"context"
	"log/slog"

	"github.com/pyrodev/zenodoro/internal/spotify"
)

// PlaylistCatalog is the slice of the Spotify client the aggregation needs.
type PlaylistCatalog interface {
	Playlists(ctx context.Context, token string, limit int) ([]spotify.Playlist, error)
	PlaylistTracks(ctx context.Context, token, playlistID string) ([]spotify.TrackItem, error)
}

// PlaylistService assembles the playlist picker payload: the caller's
// playlists, each augmented with its tracks in the normalized shape.
type PlaylistService struct {
	catalog PlaylistCatalog
	logger  *slog.Logger
}

// NewPlaylistService creates a PlaylistService.
func NewPlaylistService(catalog PlaylistCatalog, logger *slog.Logger) *PlaylistService {
	return &PlaylistService{catalog: catalog, logger: logger}
}

// Aggregate fetches the playlists for the given access token and fills in
// each playlist's tracks.
//
// A failure fetching ONE playlist's tracks degrades that playlist to an
// empty track list instead of failing the whole request: one broken
// playlist must never poison the picker. A failure fetching the playlist
// list itself is fatal and propagates (including the 401/403 taxonomy from
// the client).
func (s *PlaylistService) Aggregate(ctx context.Context, token string) ([]spotify.Playlist, error) {
	playlists, err := s.catalog.Playlists(ctx, token, 20)
	if err != nil {
		return nil, err
	}

	for i := range playlists {
		items, err := s.catalog.PlaylistTracks(ctx, token, playlists[i].ID)
		if err != nil {
			s.logger.Warn("playlist tracks fetch failed, degrading to empty",
				slog.String("playlistID", playlists[i].ID),
				slog.String("error", err.Error()),
			)
			playlists[i].Tracks.Items = []spotify.TrackItem{}
			continue
		}
		if items == nil {
			items = []spotify.TrackItem{}
		}
		playlists[i].Tracks.Items = items
	}

	if playlists == nil {
		playlists = []spotify.Playlist{}
	}
	return playlists, nil
}
