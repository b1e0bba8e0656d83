package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Session.CookieSecure)
	assert.False(t, cfg.GitHub.Enabled())
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_FromEnvironment(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"PORT":                 "9090",
		"DATABASE_URL":         "postgres://localhost/tasks",
		"OWNER_OPEN_ID":        "github:1",
		"JWT_SECRET":           "0123456789abcdef0123",
		"SESSION_TTL":          "2h",
		"COOKIE_SECURE":        "true",
		"GITHUB_CLIENT_ID":     "id",
		"GITHUB_CLIENT_SECRET": "secret",
		"REDIS_ADDR":           "localhost:6379",
		"REDIS_DB":             "3",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/tasks", cfg.DatabaseURL)
	assert.Equal(t, "github:1", cfg.OwnerOpenID)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Session.CookieSecure)
	assert.True(t, cfg.GitHub.Enabled())
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad duration":  {"SESSION_TTL": "soon"},
		"zero duration": {"SESSION_TTL": "0s"},
		"bad level":     {"LOG_LEVEL": "loud"},
		"bad redis db":  {"REDIS_DB": "two"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := load(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}
