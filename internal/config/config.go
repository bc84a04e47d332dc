package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Environment overrides
const (
	EnvListen         = "TASKCAL_LISTEN"
	EnvLogLevel       = "TASKCAL_LOG_LEVEL"
	EnvStorageBackend = "TASKCAL_STORAGE_BACKEND"
	EnvPostgresDSN    = "TASKCAL_POSTGRES_DSN"
	EnvMongoURI       = "TASKCAL_MONGO_URI"
	EnvRedisURL       = "TASKCAL_REDIS_URL"
)

// StorageConfig selects where tasks and event instances live.
type StorageConfig struct {
	// Backend is one of "memory" (default), "postgres" or "mongo". The mongo
	// backend only holds event instances; tasks stay in memory.
	Backend       string `yaml:"backend" json:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`
	MongoURI      string `yaml:"mongo_uri,omitempty" json:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database,omitempty" json:"mongo_database,omitempty"`
}

// CacheConfig configures the expansion cache.
type CacheConfig struct {
	// Backend is one of "memory" (default), "redis" or "none".
	Backend         string        `yaml:"backend" json:"backend"`
	TTL             time.Duration `yaml:"ttl" json:"ttl"`
	MaxEntries      int           `yaml:"max_entries" json:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	RedisURL        string        `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
}

// RecurrenceConfig sets the expansion horizons in months.
type RecurrenceConfig struct {
	StandardHorizonMonths  int `yaml:"standard_horizon_months" json:"standard_horizon_months"`
	OpenEndedHorizonMonths int `yaml:"open_ended_horizon_months" json:"open_ended_horizon_months"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel   string           `yaml:"log_level" json:"log_level"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Recurrence RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Backend:       BackendMemory,
			MongoDatabase: "taskcal",
		},
		Cache: CacheConfig{
			Backend:         CacheMemory,
			TTL:             recurrence.DefaultCacheConfig.TTL,
			MaxEntries:      recurrence.DefaultCacheConfig.MaxEntries,
			CleanupInterval: recurrence.DefaultCacheConfig.CleanupInterval,
		},
		Recurrence: RecurrenceConfig{
			StandardHorizonMonths:  12,
			OpenEndedHorizonMonths: 24,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Storage.MongoDatabase == "" {
		c.Storage.MongoDatabase = def.Storage.MongoDatabase
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = def.Cache.Backend
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = def.Cache.CleanupInterval
	}

	if c.Recurrence.StandardHorizonMonths <= 0 {
		c.Recurrence.StandardHorizonMonths = def.Recurrence.StandardHorizonMonths
	}
	if c.Recurrence.OpenEndedHorizonMonths <= 0 {
		c.Recurrence.OpenEndedHorizonMonths = def.Recurrence.OpenEndedHorizonMonths
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongo_uri is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a log level name onto a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// EngineConfig converts the recurrence and cache sections into an engine
// configuration. The in-process cache is enabled only for the memory cache
// backend.
func (c *Config) EngineConfig() recurrence.EngineConfig {
	return recurrence.EngineConfig{
		CacheEnabled: c.Cache.Backend == CacheMemory,
		CacheConfig: recurrence.CacheConfig{
			TTL:             c.Cache.TTL,
			MaxEntries:      c.Cache.MaxEntries,
			CleanupInterval: c.Cache.CleanupInterval,
		},
		StandardHorizon:  recurrence.Span{Months: c.Recurrence.StandardHorizonMonths},
		OpenEndedHorizon: recurrence.Span{Months: c.Recurrence.OpenEndedHorizonMonths},
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from TASKCAL_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvListen, &c.Listen)
	set(EnvLogLevel, &c.LogLevel)
	set(EnvStorageBackend, &c.Storage.Backend)
	set(EnvPostgresDSN, &c.Storage.PostgresDSN)
	set(EnvMongoURI, &c.Storage.MongoURI)
	set(EnvRedisURL, &c.Cache.RedisURL)
	c.Normalize()
}

// Load loads configuration from the given YAML path and applies the
// environment overrides.
//
// Behavior:
//   - If the file does not exist, write a default config with 0600 perms
//     and use it.
//   - If the file exists, read YAML and normalize defaults.
//
// Environment overrides are applied after either case and are never
// written back to the file.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".taskcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
