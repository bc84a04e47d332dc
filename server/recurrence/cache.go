package recurrence

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ExpansionCache stores expansion results keyed by anchor date and rule.
// Implementations must return results the caller is free to modify.
type ExpansionCache interface {
	Get(anchor time.Time, rule Rule) ([]OccurrenceDate, bool)
	Set(anchor time.Time, rule Rule, occurrences []OccurrenceDate)
	Close() error
}

// CacheKey returns the hex sha256 key identifying an expansion of rule from
// anchor. Equivalent custom rules (e.g. interval 0 and 1) share a key.
func CacheKey(anchor time.Time, rule Rule) string {
	hasher := sha256.New()
	hasher.Write([]byte(DateOf(anchor).Format(DateLayout)))
	// RuleSpec only holds plain fields, Marshal cannot fail.
	spec, _ := json.Marshal(SpecFromRule(rule))
	hasher.Write(spec)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// CacheEntry represents a cached expansion
type CacheEntry struct {
	Occurrences []OccurrenceDate
	ExpiresAt   time.Time
	AccessedAt  time.Time
}

// RecurrenceCache is an in-process ExpansionCache with TTL expiry and
// least-recently-used eviction.
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before cleanup
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache creates a new recurrence cache with the given configuration.
// Zero fields fall back to DefaultCacheConfig.
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// Get retrieves a copy of a cached expansion if it exists and hasn't expired
func (c *RecurrenceCache) Get(anchor time.Time, rule Rule) ([]OccurrenceDate, bool) {
	key := CacheKey(anchor, rule)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	entry.AccessedAt = now
	return slices.Clone(entry.Occurrences), true
}

// Set stores a copy of occurrences in the cache
func (c *RecurrenceCache) Set(anchor time.Time, rule Rule, occurrences []OccurrenceDate) {
	key := CacheKey(anchor, rule)
	now := time.Now()

	entry := &CacheEntry{
		Occurrences: slices.Clone(occurrences),
		ExpiresAt:   now.Add(c.ttl),
		AccessedAt:  now,
	}
	if entry.Occurrences == nil {
		entry.Occurrences = []OccurrenceDate{}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// while the cache is over its limit. Callers hold the write lock.
func (c *RecurrenceCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	keyAccessList := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	slices.SortFunc(keyAccessList, func(a, b keyAccess) int {
		return a.accessedAt.Compare(b.accessedAt)
	})

	entriesToRemove := len(c.entries) - c.maxEntries
	for i := 0; i < entriesToRemove; i++ {
		delete(c.entries, keyAccessList[i].key)
	}
}

func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call
// more than once.
func (c *RecurrenceCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
		c.mutex.Lock()
		c.entries = make(map[string]*CacheEntry)
		c.mutex.Unlock()
	})
	return nil
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
	}
}

// CacheStats provides information about cache contents
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
