// Package main is the entry point for the taskboard server.
//
// main stays minimal:
//  1. Read configuration from the environment
//  2. Create dependencies (logger, database pool, session revoker)
//  3. Start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/taskboard/internal/auth"
	"github.com/sakif/taskboard/internal/config"
	"github.com/sakif/taskboard/internal/repository/sqlstore"
	"github.com/sakif/taskboard/internal/server"
)

func main() {
	ctx := context.Background()

	// === 1. CONFIGURATION ===
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// Level comes from LOG_LEVEL; config.Load has already rejected bad values.
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// === 3. DATABASE ===
	// No DATABASE_URL: run disconnected. Reads come back empty and writes
	// answer 503 until a database is configured.
	db := sqlstore.Disconnected()
	if cfg.DatabaseURL != "" {
		if path := sqlstore.SQLitePath(cfg.DatabaseURL); path != "" {
			// os.MkdirAll is `mkdir -p`: creates data/ on first run.
			dir := filepath.Dir(path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Error("failed to create database directory",
					slog.String("dir", dir),
					slog.String("error", err.Error()),
				)
				os.Exit(1)
			}
		}

		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err = sqlstore.Open(openCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Error("failed to open database", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, running without a database")
	}

	// === 4. REDIS (optional) ===
	// Redis only backs logout revocation, so an unreachable Redis is a
	// warning, not a reason to refuse to start.
	var revoker *auth.RedisRevoker
	if cfg.Redis.Addr != "" {
		revoker, err = auth.DialRedisRevoker(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unavailable, logout will not revoke sessions",
				slog.String("addr", cfg.Redis.Addr),
				slog.String("error", err.Error()),
			)
			revoker = nil
		}
	}

	// === 5. SERVER ===
	srv, err := server.New(cfg, db, revoker, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		db.Close()
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
