package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: ":9090"
storage:
  backend: Postgres
  postgres_dsn: postgres://localhost/taskcal
cache:
  backend: none
  ttl: 30m
recurrence:
  open_ended_horizon_months: 6
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := loadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "taskcal", cfg.Storage.MongoDatabase)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, recurrence.DefaultCacheConfig.MaxEntries, cfg.Cache.MaxEntries)
	assert.Equal(t, 12, cfg.Recurrence.StandardHorizonMonths)
	assert.Equal(t, 6, cfg.Recurrence.OpenEndedHorizonMonths)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Cache.Backend = CacheRedis
	cfg.Cache.RedisURL = "redis://localhost:6379/0"
	cfg.Cache.TTL = 90 * time.Second
	require.NoError(t, Save(path, cfg))

	got, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	assert.Error(t, Save("", cfg))
	assert.Error(t, Save(path, nil))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvListen:         ":7070",
		EnvLogLevel:       "DEBUG",
		EnvStorageBackend: "mongo",
		EnvMongoURI:       "mongodb://localhost:27017",
		EnvRedisURL:       "redis://cache:6379",
		EnvPostgresDSN:    "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.Storage.PostgresDSN = "postgres://kept"
	cfg.ApplyEnv(lookup)

	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BackendMongo, cfg.Storage.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoURI)
	assert.Equal(t, "redis://cache:6379", cfg.Cache.RedisURL)
	assert.Equal(t, "postgres://kept", cfg.Storage.PostgresDSN, "empty variables do not override")

	untouched := DefaultConfig()
	untouched.ApplyEnv(noEnv)
	assert.Equal(t, DefaultConfig(), untouched)
}

func TestLoad_AppliesEnv(t *testing.T) {
	t.Setenv(EnvListen, ":6060")
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Listen)

	// The override is not persisted
	onDisk, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, onDisk.Listen)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TASKCAL_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TASKCAL_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("TASKCAL_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }, true},
		{"mongo without uri", func(c *Config) { c.Storage.Backend = BackendMongo }, true},
		{"mongo with uri", func(c *Config) {
			c.Storage.Backend = BackendMongo
			c.Storage.MongoURI = "mongodb://localhost"
		}, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "sqlite" }, true},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheRedis }, true},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	ec := cfg.EngineConfig()
	assert.True(t, ec.CacheEnabled)
	assert.Equal(t, recurrence.Span{Months: 12}, ec.StandardHorizon)
	assert.Equal(t, recurrence.Span{Months: 24}, ec.OpenEndedHorizon)

	cfg.Cache.Backend = CacheRedis
	assert.False(t, cfg.EngineConfig().CacheEnabled)

	// A 12-month horizon expands like the one-year default
	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	rule := recurrence.StandardRule{Pattern: recurrence.Weekly}
	engine := recurrence.NewEngineWithConfig(DefaultConfig().EngineConfig())
	t.Cleanup(func() { _ = engine.Close() })
	assert.Equal(t, recurrence.Expand(anchor, rule), engine.Expand(anchor, rule))
}
