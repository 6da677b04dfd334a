package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/spotify"
)

type fakeCatalog struct {
	playlists    []spotify.Playlist
	playlistsErr error
	tracks       map[string][]spotify.TrackItem
	trackErrs    map[string]error
}

func (f *fakeCatalog) Playlists(context.Context, string, int) ([]spotify.Playlist, error) {
	return f.playlists, f.playlistsErr
}

func (f *fakeCatalog) PlaylistTracks(_ context.Context, _ string, playlistID string) ([]spotify.TrackItem, error) {
	if err := f.trackErrs[playlistID]; err != nil {
		return nil, err
	}
	return f.tracks[playlistID], nil
}

func newTestPlaylistService(catalog *fakeCatalog) *PlaylistService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewPlaylistService(catalog, logger)
}

func TestAggregate_FillsTracks(t *testing.T) {
	catalog := &fakeCatalog{
		playlists: []spotify.Playlist{{ID: "p1", Name: "Focus"}, {ID: "p2", Name: "Deep"}},
		tracks: map[string][]spotify.TrackItem{
			"p1": {{Track: spotify.Track{ID: "t1", Name: "Song"}}},
			"p2": {},
		},
	}
	svc := newTestPlaylistService(catalog)

	got, err := svc.Aggregate(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d playlists, want 2", len(got))
	}
	if len(got[0].Tracks.Items) != 1 || got[0].Tracks.Items[0].Track.ID != "t1" {
		t.Errorf("p1 tracks = %+v, want one track t1", got[0].Tracks.Items)
	}
	if got[1].Tracks.Items == nil {
		t.Error("p2 tracks must be an empty slice, not nil")
	}
}

func TestAggregate_DegradesBrokenPlaylistToEmpty(t *testing.T) {
	catalog := &fakeCatalog{
		playlists: []spotify.Playlist{{ID: "p1"}, {ID: "p2"}},
		tracks: map[string][]spotify.TrackItem{
			"p1": {{Track: spotify.Track{ID: "t1"}}},
		},
		trackErrs: map[string]error{
			"p2": apperror.Upstream("boom"),
		},
	}
	svc := newTestPlaylistService(catalog)

	got, err := svc.Aggregate(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Aggregate() error = %v, want degraded success", err)
	}
	if len(got[0].Tracks.Items) != 1 {
		t.Errorf("p1 tracks = %d, want 1", len(got[0].Tracks.Items))
	}
	if got[1].Tracks.Items == nil || len(got[1].Tracks.Items) != 0 {
		t.Errorf("p2 tracks = %+v, want empty slice", got[1].Tracks.Items)
	}
}

func TestAggregate_ListFailureIsFatal(t *testing.T) {
	catalog := &fakeCatalog{playlistsErr: apperror.UpstreamAuth("expired")}
	svc := newTestPlaylistService(catalog)

	_, err := svc.Aggregate(context.Background(), "tok-1")
	if !errors.Is(err, apperror.ErrUpstreamAuth) {
		t.Errorf("Aggregate() error = %v, want upstream auth error", err)
	}
}

func TestAggregate_NoPlaylists(t *testing.T) {
	svc := newTestPlaylistService(&fakeCatalog{})

	got, err := svc.Aggregate(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if got == nil {
		t.Error("expected an empty slice, not nil")
	}
}
