package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	require.NoError(t, Reload(""))
	cfg := Get()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 16, cfg.Cache.Shards)
	assert.Equal(t, 100, cfg.Concurrency.MaxConcurrentQueries)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  request_timeout: 5s
storage:
  driver: sqlite
  seed_on_start: true
sqlite:
  path: /tmp/cities.db
rate_limit:
  requests_per_second: 2.5
  burst: 5
`)

	require.NoError(t, Reload(path))
	cfg := Get()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.True(t, cfg.Storage.SeedOnStart)
	assert.Equal(t, "/tmp/cities.db", cfg.SQLite.Path)
	assert.InDelta(t, 2.5, cfg.RateLimit.RequestsPerSecond, 0.0001)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("APP_SERVER_PORT", "7070")
	t.Setenv("APP_STORAGE_DRIVER", "mongo")
	t.Setenv("APP_MONGO_DATABASE", "atlas")

	require.NoError(t, Reload(path))
	cfg := Get()

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "atlas", cfg.Mongo.Database)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "storage:\n  driver: postgres\n"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad log level", "log:\n  level: verbose\n"},
		{"zero burst", "rate_limit:\n  burst: 0\n"},
		{"selected driver section", "storage:\n  driver: reindexer\nreindexer:\n  dsn: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadIgnoresUnselectedDriverSections(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\nreindexer:\n  dsn: \"\"\n")
	assert.NoError(t, Reload(path))
}

func TestLoadMissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestReloadKeepsPreviousOnFailure(t *testing.T) {
	require.NoError(t, Reload(writeConfig(t, "server:\n  port: 9191\n")))

	err := Reload(writeConfig(t, "storage:\n  driver: postgres\n"))
	require.Error(t, err)
	assert.Equal(t, 9191, Get().Server.Port)
}
