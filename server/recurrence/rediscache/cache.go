// Package rediscache shares expansion results between engine instances
// through Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix  = "taskcal:expansion:"
	DefaultTTL     = 15 * time.Minute
	DefaultTimeout = 2 * time.Second
)

// Config holds the cache settings. Zero fields take the defaults.
type Config struct {
	// Prefix namespaces the keys. Engines with different horizons must use
	// different prefixes.
	Prefix  string
	TTL     time.Duration
	Timeout time.Duration // per Redis round trip
	Logger  *slog.Logger
}

// Cache implements recurrence.ExpansionCache on a Redis client. Redis errors
// are logged and reported as cache misses.
type Cache struct {
	client *redis.Client
	config Config
	owned  bool
}

var _ recurrence.ExpansionCache = (*Cache)(nil)

// New wraps client. Close leaves the client open.
func New(client *redis.Client, config Config) *Cache {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Cache{client: client, config: config}
}

// Dial parses redisURL, checks the connection and returns a cache that owns
// the client.
func Dial(ctx context.Context, redisURL string, config Config) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := New(client, config)
	c.owned = true
	return c, nil
}

// HorizonPrefix derives a key prefix from an engine's horizons.
func HorizonPrefix(cfg recurrence.EngineConfig) string {
	return fmt.Sprintf("%s%d.%d.%d-%d.%d.%d:", DefaultPrefix,
		cfg.StandardHorizon.Years, cfg.StandardHorizon.Months, cfg.StandardHorizon.Days,
		cfg.OpenEndedHorizon.Years, cfg.OpenEndedHorizon.Months, cfg.OpenEndedHorizon.Days)
}

func (c *Cache) key(anchor time.Time, rule recurrence.Rule) string {
	return c.config.Prefix + recurrence.CacheKey(anchor, rule)
}

func (c *Cache) Get(anchor time.Time, rule recurrence.Rule) ([]recurrence.OccurrenceDate, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(anchor, rule)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.config.Logger.Warn("expansion cache read failed", "error", err)
		return nil, false
	}

	var occurrences []recurrence.OccurrenceDate
	if err := json.Unmarshal(data, &occurrences); err != nil {
		c.config.Logger.Warn("discarding corrupt expansion cache entry", "error", err)
		return nil, false
	}
	if occurrences == nil {
		occurrences = []recurrence.OccurrenceDate{}
	}
	return occurrences, true
}

func (c *Cache) Set(anchor time.Time, rule recurrence.Rule, occurrences []recurrence.OccurrenceDate) {
	data, err := json.Marshal(occurrences)
	if err != nil {
		c.config.Logger.Warn("failed to marshal expansion", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(anchor, rule), data, c.config.TTL).Err(); err != nil {
		c.config.Logger.Warn("expansion cache write failed", "error", err)
	}
}

// Close closes the client when the cache created it.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}
