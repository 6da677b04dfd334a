package model

import "testing"

// =========================================================================
// LEVEL TESTS
// =========================================================================

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		name     string
		sessions int
		want     int
	}{
		{"zero sessions", 0, 1},
		{"nine sessions still level one", 9, 1},
		{"ten sessions levels up", 10, 2},
		{"nineteen sessions", 19, 2},
		{"hundred sessions", 100, 11},
		{"capped at max level", 5000, 100},
		{"negative treated as zero", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateLevel(tt.sessions); got != tt.want {
				t.Errorf("CalculateLevel(%d) = %d, want %d", tt.sessions, got, tt.want)
			}
		})
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0)
	for sessions := 1; sessions <= 1100; sessions++ {
		level := CalculateLevel(sessions)
		if level < prev {
			t.Fatalf("level dropped from %d to %d at %d sessions", prev, level, sessions)
		}
		prev = level
	}
}

func TestNextLevelProgress(t *testing.T) {
	tests := []struct {
		sessions int
		want     float64
	}{
		{0, 0},
		{5, 50},
		{9, 90},
		{10, 0},
		{17, 70},
	}

	for _, tt := range tests {
		if got := NextLevelProgress(tt.sessions); got != tt.want {
			t.Errorf("NextLevelProgress(%d) = %v, want %v", tt.sessions, got, tt.want)
		}
	}
}

// =========================================================================
// BADGE TESTS
// =========================================================================

func TestBadgeForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{1, BadgeBeginner},
		{4, BadgeBeginner},
		{5, BadgeFocused},
		{9, BadgeFocused},
		{10, BadgeProductive},
		{20, BadgeMaster},
		{30, BadgeLegend},
		{49, BadgeLegend},
		{50, BadgeChampion},
		{100, BadgeChampion},
	}

	for _, tt := range tests {
		if got := BadgeForLevel(tt.level); got != tt.want {
			t.Errorf("BadgeForLevel(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

// =========================================================================
// FORMATTING TESTS
// =========================================================================

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{60, "01:00"},
		{1500, "25:00"},
		{-5, "00:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h"},
		{125, "2h 5m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.minutes); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestNewProfile(t *testing.T) {
	p := NewProfile("spotify:abc")

	if p.ID != "spotify:abc" {
		t.Errorf("ID = %q, want %q", p.ID, "spotify:abc")
	}
	if p.Level != 1 {
		t.Errorf("Level = %d, want 1", p.Level)
	}
	if p.Badge != BadgeBeginner {
		t.Errorf("Badge = %q, want %q", p.Badge, BadgeBeginner)
	}
	if p.HasSpotifyLink() {
		t.Error("expected no Spotify link on a fresh profile")
	}
}

func TestSessionType_Valid(t *testing.T) {
	for _, st := range []SessionType{SessionPomodoro, SessionShortBreak, SessionLongBreak} {
		if !st.Valid() {
			t.Errorf("expected %q to be valid", st)
		}
	}
	if SessionType("nap").Valid() {
		t.Error("expected unknown session type to be invalid")
	}
}
