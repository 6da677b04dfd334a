// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// The hosted deployment talks to a managed relational store; this package is
// the same contract over an embedded file, which keeps local development and
// tests free of infrastructure. modernc.org/sqlite is a pure Go translation
// of SQLite, so no C toolchain is needed and cross-compilation stays simple.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath (":memory:" for tests) and runs
// migrations.
//
// sql.Open only creates the pool manager; Ping forces an immediate
// connection so a bad path or permissions problem surfaces here rather than
// on the first query.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight, which matters for
	// a web server where leaderboard reads and session writes overlap.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite for backwards compatibility.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Wherever New() is called,
// immediately defer Close().
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every start; column additions go through addColumnIfNotExists so
// existing databases pick them up too.
func (db *DB) migrate() error {
	// users: one row per identity-provider subject. The primary key IS the
	// subject ID, so no separate internal ID is generated for profiles.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                    TEXT PRIMARY KEY,
			spotify_id            TEXT NOT NULL DEFAULT '',
			display_name          TEXT NOT NULL DEFAULT '',
			email                 TEXT NOT NULL DEFAULT '',
			avatar_url            TEXT NOT NULL DEFAULT '',
			spotify_access_token  TEXT NOT NULL DEFAULT '',
			spotify_refresh_token TEXT NOT NULL DEFAULT '',
			total_focus_time      INTEGER NOT NULL DEFAULT 0,
			sessions_completed    INTEGER NOT NULL DEFAULT 0,
			current_streak        INTEGER NOT NULL DEFAULT 0,
			longest_streak        INTEGER NOT NULL DEFAULT 0,
			last_session_day      TEXT NOT NULL DEFAULT '',
			level                 INTEGER NOT NULL DEFAULT 1,
			badge                 TEXT NOT NULL DEFAULT '🌱',
			created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_sessions_completed
			ON users(sessions_completed DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS focus_sessions (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			session_type     TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			completed_at     DATETIME NOT NULL,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_focus_sessions_user_id
			ON focus_sessions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating focus_sessions table: %w", err)
	}

	// country landed after the first release; existing databases pick it up
	// here.
	if err := db.addColumnIfNotExists("users", "country", `TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("adding users.country: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already
// exist, making ALTER TABLE migrations idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
