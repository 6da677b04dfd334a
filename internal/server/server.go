// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: the entire dependency graph is
// assembled in New/setupRoutes rather than scattered across the codebase.
//
//	main.go → server.New:
//	  sqlite.DB → session.Manager ┬→ AuthHandler
//	            → TimerService    ┴→ TimerHandler
//	  spotify.Client → PlaylistService → SpotifyHandler
//
// Keeping the wiring out of main.go keeps main minimal and the server
// constructible from tests.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pyrodev/zenodoro/internal/auth"
	"github.com/pyrodev/zenodoro/internal/handler"
	"github.com/pyrodev/zenodoro/internal/middleware"
	sqliteRepo "github.com/pyrodev/zenodoro/internal/repository/sqlite"
	"github.com/pyrodev/zenodoro/internal/service"
	"github.com/pyrodev/zenodoro/internal/session"
	"github.com/pyrodev/zenodoro/internal/spotify"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port                int
	DBPath              string
	JWTSecret           string
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyCallbackURL  string
}

// Server owns the router and the resources that need explicit teardown: the
// database connection and the timer schedulers.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	timers *service.TimerService
}

// New assembles the full dependency graph and registers all routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("server: JWT secret is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the services and handlers, and
// maps them onto the router.
func (s *Server) setupRoutes() error {
	// Global middleware, in order: request ID for tracing, real client IP
	// behind proxies, panic recovery, then our structured request log.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	provider := auth.NewSpotifyProvider(
		s.config.SpotifyClientID,
		s.config.SpotifyClientSecret,
		s.config.SpotifyCallbackURL,
	)
	spotifyClient := spotify.NewClient(s.logger)

	sessions := session.NewManager(s.db, spotifyClient, provider, s.logger)
	s.timers = service.NewTimerService(s.db, s.logger, time.Second)
	playlists := service.NewPlaylistService(spotifyClient, s.logger)

	authHandler := handler.NewAuthHandler(provider, tokens, sessions, spotifyClient, s.logger)
	spotifyHandler := handler.NewSpotifyHandler(playlists, spotifyClient, s.logger)
	timerHandler := handler.NewTimerHandler(s.timers, s.logger)
	statsHandler := handler.NewStatsHandler(s.db, s.logger)

	// OAuth flow
	s.router.Get("/auth/spotify/login", authHandler.HandleSpotifyLogin)
	s.router.Get("/auth/spotify/callback", authHandler.HandleSpotifyCallback)
	s.router.With(auth.OptionalAuth(tokens)).Post("/auth/logout", authHandler.HandleLogout)

	s.router.Route("/api", func(r chi.Router) {
		// Spotify proxy routes authenticate with the upstream bearer
		// token, not the session cookie.
		r.Post("/spotify/playlists", spotifyHandler.HandlePlaylists)
		r.Get("/spotify/player", spotifyHandler.HandleNowPlaying)
		r.Post("/spotify/player/play", spotifyHandler.HandlePlayerCommand("play"))
		r.Post("/spotify/player/pause", spotifyHandler.HandlePlayerCommand("pause"))
		r.Post("/spotify/player/next", spotifyHandler.HandlePlayerCommand("next"))
		r.Post("/spotify/player/previous", spotifyHandler.HandlePlayerCommand("previous"))
		r.Post("/spotify/player/volume", spotifyHandler.HandlePlayerCommand("volume"))

		r.Get("/leaderboard", statsHandler.HandleLeaderboard)

		// Session-cookie protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Post("/spotify/refresh", authHandler.HandleRefreshToken)
			r.Post("/sessions", statsHandler.HandleCompleteSession)

			r.Get("/timer", timerHandler.HandleState)
			r.Post("/timer/start", timerHandler.HandleStart)
			r.Post("/timer/pause", timerHandler.HandlePause)
			r.Post("/timer/reset", timerHandler.HandleReset)
			r.Post("/timer/mode", timerHandler.HandleSwitchMode)
			r.Put("/timer/config", timerHandler.HandleConfigure)
		})
	})

	return nil
}

// Start runs the HTTP server and handles graceful shutdown:
// 1. Stop accepting new connections
// 2. Wait for in-flight requests (30s timeout)
// 3. Stop the timer schedulers, then close the database
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.timers.Shutdown()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
