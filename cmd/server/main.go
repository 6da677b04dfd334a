// Package main is the entry point for the zenodoro server.
//
// main stays minimal: read configuration from the environment, build the
// logger, and hand everything to internal/server which owns the actual
// wiring.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pyrodev/zenodoro/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// DB_PATH overrides for production deployments, e.g.
	// DB_PATH=/var/lib/zenodoro/prod.db
	dbPath := "data/zenodoro.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET must be a long random string. Use:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET not set")
		os.Exit(1)
	}

	spotifyClientID := os.Getenv("SPOTIFY_CLIENT_ID")
	spotifyClientSecret := os.Getenv("SPOTIFY_CLIENT_SECRET")
	if spotifyClientID == "" || spotifyClientSecret == "" {
		logger.Warn("Spotify credentials not set — OAuth login will fail until configured")
	}
	spotifyCallbackURL := os.Getenv("SPOTIFY_CALLBACK_URL")
	if spotifyCallbackURL == "" {
		spotifyCallbackURL = fmt.Sprintf("http://localhost:%d/auth/spotify/callback", port)
	}

	cfg := server.Config{
		Port:                port,
		DBPath:              dbPath,
		JWTSecret:           jwtSecret,
		SpotifyClientID:     spotifyClientID,
		SpotifyClientSecret: spotifyClientSecret,
		SpotifyCallbackURL:  spotifyCallbackURL,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
