// Package server wires dependencies into handlers and routes, and runs the
// HTTP server.
//
// This is the composition root: the store, services and handlers are
// assembled here.
//
//	cmd/server opens:  sqlstore.DB, auth.RedisRevoker (optional)
//	Server.New builds: TokenService → AuthService → AuthHandler
//	                   TaskService  → TaskHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/taskboard/internal/auth"
	"github.com/sakif/taskboard/internal/config"
	"github.com/sakif/taskboard/internal/handler"
	"github.com/sakif/taskboard/internal/middleware"
	"github.com/sakif/taskboard/internal/repository/sqlstore"
	"github.com/sakif/taskboard/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database pool and the revoker it is given. Both are
// closed when Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db      *sqlstore.DB
	revoker *auth.RedisRevoker
}

// New assembles the server. db may be sqlstore.Disconnected(); revoker may
// be nil, which turns session revocation off.
func New(cfg *config.Config, db *sqlstore.DB, revoker *auth.RedisRevoker, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		revoker: revoker,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /health                → liveness
//	GET  /health/ready          → readiness (database, redis)
//	GET  /metrics               → Prometheus
//	GET  /auth/github/login     → start GitHub sign-in   (when configured)
//	GET  /auth/github/callback  → finish GitHub sign-in  (when configured)
//	GET  /api/auth.me           → current user or null
//	POST /api/auth.logout       → end the session
//	GET  /api/tasks.list        → caller's tasks
//	GET  /api/tasks.get?id=N    → one task or null
//	POST /api/tasks.create
//	POST /api/tasks.update
//	POST /api/tasks.delete
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: unique id per request, picked up by the logger
// 2. RealIP: client IP from proxy headers
// 3. Recoverer: a panic becomes a 500 instead of a crash
// 4. Logger: one line per request
// 5. Identify (/api only): session cookie → caller in context
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Sessions ===
	// Without a JWT secret every cookie is rejected and sign-in is off, but
	// the API still answers (anonymous callers get 401 from each procedure).
	var tokens *auth.TokenService
	if s.config.Session.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.Session.JWTSecret, s.config.Session.TTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set, sessions are disabled")
	}

	// A nil *RedisRevoker must not end up inside the interface, so the
	// variable stays an untyped nil unless Redis is configured.
	var revoker auth.Revoker
	health := map[string]handler.Pinger{"database": s.db}
	if s.revoker != nil {
		revoker = s.revoker
		health["redis"] = s.revoker
	}

	// === Services and handlers ===
	authService := service.NewAuthService(s.db, tokens, revoker, s.config.OwnerOpenID, s.logger)
	taskService := service.NewTaskService(s.db, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHub.Enabled() && tokens != nil {
		github = auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(authService, github, s.config.Session.CookieSecure, s.logger)
	taskHandler := handler.NewTaskHandler(taskService, s.logger)
	healthHandler := handler.NewHealthHandler(health)

	// === Operational routes ===
	s.router.Get("/health", healthHandler.Liveness)
	s.router.Get("/health/ready", healthHandler.Readiness)
	s.router.Handle("/metrics", promhttp.Handler())

	// === Sign-in ===
	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub sign-in not configured, /auth/github routes disabled")
	}

	// === Procedures ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Identify(authService, s.logger))

		r.Get("/auth.me", authHandler.HandleMe)
		r.Post("/auth.logout", authHandler.HandleLogout)

		r.Get("/tasks.list", taskHandler.HandleList)
		r.Get("/tasks.get", taskHandler.HandleGet)
		r.Post("/tasks.create", taskHandler.HandleCreate)
		r.Post("/tasks.update", taskHandler.HandleUpdate)
		r.Post("/tasks.delete", taskHandler.HandleDelete)
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections
// 2. Wait up to 30s for in-flight requests
// 3. Close Redis and the database pool (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.closeDependencies()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.Bool("database", s.db.Connected()),
			slog.Bool("revocation", s.revoker != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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

func (s *Server) closeDependencies() {
	if s.revoker != nil {
		if err := s.revoker.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
