package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestProfile creates a profile and fails the test if it errors.
func createTestProfile(t *testing.T, db *DB, id, name string) *model.Profile {
	t.Helper()
	p := model.NewProfile(id)
	p.SpotifyID = id
	p.DisplayName = name
	p.Email = name + "@example.com"
	if err := db.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// =========================================================================
// GET / UPSERT TESTS
// =========================================================================

func TestGetProfile_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProfile(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProfile() error = %v, want not found", err)
	}
}

func TestUpsertProfile_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	p := model.NewProfile("abc")
	p.SpotifyID = "abc"
	p.DisplayName = "Marco"
	p.Email = "marco@example.com"
	p.SpotifyAccessToken = "access-1"
	p.SpotifyRefreshToken = "refresh-1"
	p.SessionsCompleted = 7
	p.TotalFocusMinutes = 175

	if err := db.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	got, err := db.GetProfile(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.DisplayName != "Marco" {
		t.Errorf("DisplayName = %q, want %q", got.DisplayName, "Marco")
	}
	if got.SessionsCompleted != 7 {
		t.Errorf("SessionsCompleted = %d, want 7", got.SessionsCompleted)
	}
	if got.TotalFocusMinutes != 175 {
		t.Errorf("TotalFocusMinutes = %d, want 175", got.TotalFocusMinutes)
	}
	if got.SpotifyAccessToken != "access-1" {
		t.Errorf("SpotifyAccessToken = %q, want %q", got.SpotifyAccessToken, "access-1")
	}
	if got.Badge != model.BadgeBeginner {
		t.Errorf("Badge = %q, want %q", got.Badge, model.BadgeBeginner)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be persisted")
	}
}

func TestUpsertProfile_EmptyID(t *testing.T) {
	db := newTestDB(t)

	err := db.UpsertProfile(context.Background(), model.NewProfile(""))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpsertProfile() error = %v, want validation error", err)
	}
}

func TestUpsertProfile_PreservesCounters(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")

	// Simulate accumulated progress.
	if _, err := db.AddCompletedSession(context.Background(), "abc", model.SessionPomodoro, 25); err != nil {
		t.Fatalf("AddCompletedSession() error = %v", err)
	}

	// A re-link carries fresh identity but zeroed counters. The counters
	// must survive the upsert.
	relink := model.NewProfile("abc")
	relink.DisplayName = "Marco Renamed"
	relink.SpotifyAccessToken = "access-2"
	if err := db.UpsertProfile(context.Background(), relink); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	got, err := db.GetProfile(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.SessionsCompleted != 1 {
		t.Errorf("SessionsCompleted = %d, want 1: upsert must not reset counters", got.SessionsCompleted)
	}
	if got.TotalFocusMinutes != 25 {
		t.Errorf("TotalFocusMinutes = %d, want 25", got.TotalFocusMinutes)
	}
	if got.DisplayName != "Marco Renamed" {
		t.Errorf("DisplayName = %q, want refreshed identity", got.DisplayName)
	}
	if got.SpotifyAccessToken != "access-2" {
		t.Errorf("SpotifyAccessToken = %q, want %q", got.SpotifyAccessToken, "access-2")
	}

	// The caller's struct carries the stored counters back.
	if relink.SessionsCompleted != 1 {
		t.Errorf("caller SessionsCompleted = %d, want 1", relink.SessionsCompleted)
	}
}

func TestUpsertProfile_EmptyTokensKeepStored(t *testing.T) {
	db := newTestDB(t)
	p := createTestProfile(t, db, "abc", "Marco")
	p.SpotifyAccessToken = "access-1"
	p.SpotifyRefreshToken = "refresh-1"
	if err := db.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	bare := model.NewProfile("abc")
	bare.DisplayName = "Marco"
	if err := db.UpsertProfile(context.Background(), bare); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	got, _ := db.GetProfile(context.Background(), "abc")
	if got.SpotifyAccessToken != "access-1" {
		t.Errorf("SpotifyAccessToken = %q, want stored token kept", got.SpotifyAccessToken)
	}
	if got.SpotifyRefreshToken != "refresh-1" {
		t.Errorf("SpotifyRefreshToken = %q, want stored token kept", got.SpotifyRefreshToken)
	}
}

// =========================================================================
// TOKEN TESTS
// =========================================================================

func TestUpdateTokens(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")

	if err := db.UpdateTokens(context.Background(), "abc", "access-2", "refresh-2"); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	got, _ := db.GetProfile(context.Background(), "abc")
	if got.SpotifyAccessToken != "access-2" {
		t.Errorf("SpotifyAccessToken = %q, want %q", got.SpotifyAccessToken, "access-2")
	}
	if got.SpotifyRefreshToken != "refresh-2" {
		t.Errorf("SpotifyRefreshToken = %q, want %q", got.SpotifyRefreshToken, "refresh-2")
	}
}

func TestUpdateTokens_EmptyRefreshKeepsStored(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")
	if err := db.UpdateTokens(context.Background(), "abc", "access-1", "refresh-1"); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	// Spotify's refresh grant often omits the refresh token when unchanged.
	if err := db.UpdateTokens(context.Background(), "abc", "access-2", ""); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}

	got, _ := db.GetProfile(context.Background(), "abc")
	if got.SpotifyAccessToken != "access-2" {
		t.Errorf("SpotifyAccessToken = %q, want %q", got.SpotifyAccessToken, "access-2")
	}
	if got.SpotifyRefreshToken != "refresh-1" {
		t.Errorf("SpotifyRefreshToken = %q, want previous refresh token", got.SpotifyRefreshToken)
	}
}

func TestUpdateTokens_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateTokens(context.Background(), "nobody", "a", "r")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateTokens() error = %v, want not found", err)
	}
}

// =========================================================================
// LEADERBOARD TESTS
// =========================================================================

func TestGetLeaderboard_Ordering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestProfile(t, db, "low", "Low")
	createTestProfile(t, db, "high", "High")
	createTestProfile(t, db, "mid", "Mid")

	for i := 0; i < 3; i++ {
		if _, err := db.AddCompletedSession(ctx, "high", model.SessionPomodoro, 25); err != nil {
			t.Fatalf("AddCompletedSession() error = %v", err)
		}
	}
	if _, err := db.AddCompletedSession(ctx, "mid", model.SessionPomodoro, 25); err != nil {
		t.Fatalf("AddCompletedSession() error = %v", err)
	}

	entries, err := db.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].ID != "high" || entries[1].ID != "mid" || entries[2].ID != "low" {
		t.Errorf("order = [%s %s %s], want [high mid low]",
			entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestGetLeaderboard_Limit(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		createTestProfile(t, db, id, id)
	}

	entries, err := db.GetLeaderboard(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetLeaderboard() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

// =========================================================================
// COMPLETED SESSION TESTS
// =========================================================================

func TestAddCompletedSession_Pomodoro(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")

	p, err := db.AddCompletedSession(context.Background(), "abc", model.SessionPomodoro, 25)
	if err != nil {
		t.Fatalf("AddCompletedSession() error = %v", err)
	}

	if p.SessionsCompleted != 1 {
		t.Errorf("SessionsCompleted = %d, want 1", p.SessionsCompleted)
	}
	if p.TotalFocusMinutes != 25 {
		t.Errorf("TotalFocusMinutes = %d, want 25", p.TotalFocusMinutes)
	}
	if p.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", p.CurrentStreak)
	}
	if p.LongestStreak != 1 {
		t.Errorf("LongestStreak = %d, want 1", p.LongestStreak)
	}
	if p.LastSessionDay != time.Now().Format("2006-01-02") {
		t.Errorf("LastSessionDay = %q, want today", p.LastSessionDay)
	}
}

func TestAddCompletedSession_BreakDoesNotCount(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")

	p, err := db.AddCompletedSession(context.Background(), "abc", model.SessionShortBreak, 5)
	if err != nil {
		t.Fatalf("AddCompletedSession() error = %v", err)
	}
	if p.SessionsCompleted != 0 {
		t.Errorf("SessionsCompleted = %d, want 0: breaks are history only", p.SessionsCompleted)
	}
	if p.TotalFocusMinutes != 0 {
		t.Errorf("TotalFocusMinutes = %d, want 0", p.TotalFocusMinutes)
	}
}

func TestAddCompletedSession_SameDayKeepsStreak(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")
	ctx := context.Background()

	if _, err := db.AddCompletedSession(ctx, "abc", model.SessionPomodoro, 25); err != nil {
		t.Fatalf("AddCompletedSession() error = %v", err)
	}
	p, err := db.AddCompletedSession(ctx, "abc", model.SessionPomodoro, 25)
	if err != nil {
		t.Fatalf("AddCompletedSession() error = %v", err)
	}

	if p.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1: repeats within a day do not extend it", p.CurrentStreak)
	}
	if p.SessionsCompleted != 2 {
		t.Errorf("SessionsCompleted = %d, want 2", p.SessionsCompleted)
	}
}

func TestAddCompletedSession_LevelsUp(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")
	ctx := context.Background()

	var p *model.Profile
	var err error
	for i := 0; i < 10; i++ {
		p, err = db.AddCompletedSession(ctx, "abc", model.SessionPomodoro, 25)
		if err != nil {
			t.Fatalf("AddCompletedSession() error = %v", err)
		}
	}

	if p.Level != 2 {
		t.Errorf("Level = %d, want 2 after 10 sessions", p.Level)
	}
}

func TestAddCompletedSession_Validation(t *testing.T) {
	db := newTestDB(t)
	createTestProfile(t, db, "abc", "Marco")
	ctx := context.Background()

	if _, err := db.AddCompletedSession(ctx, "abc", model.SessionType("nap"), 25); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("unknown type error = %v, want validation error", err)
	}
	if _, err := db.AddCompletedSession(ctx, "abc", model.SessionPomodoro, 0); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("zero minutes error = %v, want validation error", err)
	}
	if _, err := db.AddCompletedSession(ctx, "nobody", model.SessionPomodoro, 25); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown user error = %v, want not found", err)
	}
}

func TestStreakRules(t *testing.T) {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	tests := []struct {
		name       string
		lastDay    string
		current    int
		wantStreak int
	}{
		{"first ever session", "", 0, 1},
		{"continued from yesterday", yesterday, 3, 4},
		{"gap resets", "2020-01-01", 9, 1},
		{"same day unchanged", now.Format("2006-01-02"), 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.NewProfile("abc")
			p.LastSessionDay = tt.lastDay
			p.CurrentStreak = tt.current
			applyCompletedPomodoro(p, 25, now)
			if p.CurrentStreak != tt.wantStreak {
				t.Errorf("CurrentStreak = %d, want %d", p.CurrentStreak, tt.wantStreak)
			}
		})
	}
}
