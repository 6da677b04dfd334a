package model

import "fmt"

// Levelling: one level per ten completed pomodoros, capped at 100.
const (
	SessionsPerLevel = 10
	MaxLevel         = 100
)

// Badge tiers, lowest to highest. Badges only ever move up as the level does.
const (
	BadgeBeginner   = "🌱"
	BadgeFocused    = "🎯"
	BadgeProductive = "⚡"
	BadgeMaster     = "🔥"
	BadgeLegend     = "💎"
	BadgeChampion   = "👑"
)

// CalculateLevel derives the level from the number of completed pomodoros.
// Monotonic step function: 0–9 sessions → level 1, 10–19 → level 2, and so on
// up to MaxLevel.
func CalculateLevel(sessions int) int {
	if sessions < 0 {
		sessions = 0
	}
	level := sessions/SessionsPerLevel + 1
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}

// NextLevelProgress returns how far (0–100) the user is into the current
// level.
func NextLevelProgress(sessions int) float64 {
	if sessions < 0 {
		sessions = 0
	}
	return float64(sessions%SessionsPerLevel) / SessionsPerLevel * 100
}

// BadgeForLevel maps a level to its badge tier.
func BadgeForLevel(level int) string {
	switch {
	case level >= 50:
		return BadgeChampion
	case level >= 30:
		return BadgeLegend
	case level >= 20:
		return BadgeMaster
	case level >= 10:
		return BadgeProductive
	case level >= 5:
		return BadgeFocused
	default:
		return BadgeBeginner
	}
}

// FormatClock renders seconds as MM:SS for timer displays.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatDuration renders minutes as a compact "2h 5m" style string.
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
