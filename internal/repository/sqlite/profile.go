package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/pyrodev/zenodoro/internal/apperror"
	"github.com/pyrodev/zenodoro/internal/model"
	"github.com/pyrodev/zenodoro/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `id, spotify_id, display_name, email, avatar_url, country,
	spotify_access_token, spotify_refresh_token,
	total_focus_time, sessions_completed, current_streak, longest_streak,
	last_session_day, level, badge, created_at, updated_at`

// GetProfile retrieves a profile by the identity-provider subject ID.
// Returns apperror.ErrNotFound if no row exists: first-time users are
// expected to hit this path, the reconciliation flow then creates the row.
func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = ?`, userID,
	)
	p, err := scanProfile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}
	return p, nil
}

// UpsertProfile inserts or updates a profile keyed on the identity subject.
//
// The update path only touches identity and token fields. Cumulative
// counters (focus time, sessions, streaks, level, badge) belong to
// AddCompletedSession; a re-link or repeated redirect must never zero them.
func (db *DB) UpsertProfile(ctx context.Context, profile *model.Profile) error {
	if profile.ID == "" {
		return apperror.ValidationFailed("id", "profile id must not be empty")
	}

	existing, err := db.GetProfile(ctx, profile.ID)
	if err != nil && !isNotFound(err) {
		return err
	}

	now := time.Now()
	if existing == nil {
		profile.CreatedAt = now
		profile.UpdatedAt = now
		profile.Level = model.CalculateLevel(profile.SessionsCompleted)
		profile.Badge = model.BadgeForLevel(profile.Level)

		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (id, spotify_id, display_name, email, avatar_url, country,
				spotify_access_token, spotify_refresh_token,
				total_focus_time, sessions_completed, current_streak, longest_streak,
				last_session_day, level, badge, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			profile.ID, profile.SpotifyID, profile.DisplayName, profile.Email,
			profile.AvatarURL, profile.Country,
			profile.SpotifyAccessToken, profile.SpotifyRefreshToken,
			profile.TotalFocusMinutes, profile.SessionsCompleted,
			profile.CurrentStreak, profile.LongestStreak, profile.LastSessionDay,
			profile.Level, profile.Badge, profile.CreatedAt, profile.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting profile %s: %w", profile.ID, err)
		}
		return nil
	}

	// Existing row: refresh identity fields, keep tokens unless the caller
	// brought new ones, and carry the stored counters back to the caller.
	access := profile.SpotifyAccessToken
	refresh := profile.SpotifyRefreshToken
	if access == "" {
		access = existing.SpotifyAccessToken
	}
	if refresh == "" {
		refresh = existing.SpotifyRefreshToken
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET spotify_id = ?, display_name = ?, email = ?,
			avatar_url = ?, country = ?,
			spotify_access_token = ?, spotify_refresh_token = ?, updated_at = ?
		 WHERE id = ?`,
		profile.SpotifyID, profile.DisplayName, profile.Email,
		profile.AvatarURL, profile.Country,
		access, refresh, now, profile.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ID, err)
	}

	profile.SpotifyAccessToken = access
	profile.SpotifyRefreshToken = refresh
	profile.TotalFocusMinutes = existing.TotalFocusMinutes
	profile.SessionsCompleted = existing.SessionsCompleted
	profile.CurrentStreak = existing.CurrentStreak
	profile.LongestStreak = existing.LongestStreak
	profile.LastSessionDay = existing.LastSessionDay
	profile.Level = existing.Level
	profile.Badge = existing.Badge
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = now
	return nil
}

// UpdateTokens replaces the cached Spotify credential pair. An empty refresh
// token keeps the stored one, matching Spotify's refresh-grant behaviour of
// omitting the refresh token when it is unchanged.
func (db *DB) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string) error {
	var res sql.Result
	var err error
	if refreshToken == "" {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE users SET spotify_access_token = ?, updated_at = ? WHERE id = ?`,
			accessToken, time.Now(), userID,
		)
	} else {
		res, err = db.conn.ExecContext(ctx,
			`UPDATE users SET spotify_access_token = ?, spotify_refresh_token = ?, updated_at = ?
			 WHERE id = ?`,
			accessToken, refreshToken, time.Now(), userID,
		)
	}
	if err != nil {
		return fmt.Errorf("sqlite: updating tokens for %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("profile", userID)
	}
	return nil
}

// GetLeaderboard returns the top profiles by completed sessions.
func (db *DB) GetLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, display_name, avatar_url, sessions_completed, total_focus_time,
			current_streak, level, badge
		 FROM users
		 ORDER BY sessions_completed DESC, total_focus_time DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(
			&e.ID, &e.DisplayName, &e.AvatarURL, &e.SessionsCompleted,
			&e.TotalFocusMinutes, &e.CurrentStreak, &e.Level, &e.Badge,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddCompletedSession records one finished countdown and, for pomodoros,
// rolls the cumulative counters forward inside a single transaction so a
// crash can't record the session without the stats (or vice versa).
func (db *DB) AddCompletedSession(ctx context.Context, userID string, sessionType model.SessionType, minutes int) (*model.Profile, error) {
	if !sessionType.Valid() {
		return nil, apperror.ValidationFailed("sessionType", fmt.Sprintf("unknown session type %q", sessionType))
	}
	if minutes <= 0 {
		return nil, apperror.ValidationFailed("minutes", "duration must be positive")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = ?`, userID,
	)
	p, err := scanProfile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: loading profile %s: %w", userID, err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO focus_sessions (id, user_id, session_type, duration_minutes, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		xid.New().String(), userID, string(sessionType), minutes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting focus session: %w", err)
	}

	if sessionType == model.SessionPomodoro {
		applyCompletedPomodoro(p, minutes, now)
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET total_focus_time = ?, sessions_completed = ?,
				current_streak = ?, longest_streak = ?, last_session_day = ?,
				level = ?, badge = ?, updated_at = ?
			 WHERE id = ?`,
			p.TotalFocusMinutes, p.SessionsCompleted,
			p.CurrentStreak, p.LongestStreak, p.LastSessionDay,
			p.Level, p.Badge, now, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: updating counters for %s: %w", userID, err)
		}
		p.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing session for %s: %w", userID, err)
	}
	return p, nil
}

// applyCompletedPomodoro advances the cumulative counters for one completed
// focus session. Streak rules: first pomodoro of a new day extends the streak
// when the previous one was yesterday, restarts it otherwise; repeats within
// the same day leave it alone.
func applyCompletedPomodoro(p *model.Profile, minutes int, now time.Time) {
	p.TotalFocusMinutes += minutes
	p.SessionsCompleted++

	day := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	switch p.LastSessionDay {
	case day:
		// already counted today
	case yesterday:
		p.CurrentStreak++
	default:
		p.CurrentStreak = 1
	}
	p.LastSessionDay = day
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}

	p.Level = model.CalculateLevel(p.SessionsCompleted)
	p.Badge = model.BadgeForLevel(p.Level)
}

// scanProfile reads one profile row from either a *sql.Row or *sql.Rows.
func scanProfile(row interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.ID, &p.SpotifyID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.Country,
		&p.SpotifyAccessToken, &p.SpotifyRefreshToken,
		&p.TotalFocusMinutes, &p.SessionsCompleted, &p.CurrentStreak, &p.LongestStreak,
		&p.LastSessionDay, &p.Level, &p.Badge, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
