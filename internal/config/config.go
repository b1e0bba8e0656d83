// Package config loads the server configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// DatabaseURL selects the store. Empty runs without a database: reads
	// come back empty and writes fail with "database not available".
	DatabaseURL string `env:"DATABASE_URL"`

	// OwnerOpenID is the account promoted to admin on sign-in.
	OwnerOpenID string `env:"OWNER_OPEN_ID"`

	Session SessionConfig
	GitHub  GitHubConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	JWTSecret    string        `env:"JWT_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL,   default=24h"`
	CookieSecure bool          `env:"COOKIE_SECURE, default=false"`
}

type GitHubConfig struct {
	ClientID     string `env:"GITHUB_CLIENT_ID"`
	ClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	CallbackURL  string `env:"GITHUB_CALLBACK_URL, default=http://localhost:8080/auth/github/callback"`
}

// Enabled reports whether GitHub sign-in has credentials.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	if cfg.Session.TTL <= 0 {
		return nil, fmt.Errorf("config: SESSION_TTL must be positive, got %s", cfg.Session.TTL)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
	}
}
