package recurrence

import (
	"time"
)

// Span is a calendar offset applied with time.Time.AddDate.
type Span struct {
	Years, Months, Days int
}

// After returns t moved forward by the span.
func (s Span) After(t time.Time) time.Time {
	return t.AddDate(s.Years, s.Months, s.Days)
}

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// StandardHorizon bounds standard rules, measured from the anchor date.
	StandardHorizon Span
	// OpenEndedHorizon bounds custom rules that end Never or AfterOccurrences.
	OpenEndedHorizon Span
}

// DefaultEngineConfig expands standard rules one year ahead and open-ended
// custom rules two years ahead, without caching.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled:     false,
	StandardHorizon:  Span{Years: 1},
	OpenEndedHorizon: Span{Years: 2},
}

// CachedEngineConfig is DefaultEngineConfig with the in-process cache turned on.
var CachedEngineConfig = EngineConfig{
	CacheEnabled:     true,
	CacheConfig:      DefaultCacheConfig,
	StandardHorizon:  Span{Years: 1},
	OpenEndedHorizon: Span{Years: 2},
}

// LowMemoryConfig keeps a small, short-lived cache
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},
	StandardHorizon:  Span{Years: 1},
	OpenEndedHorizon: Span{Years: 2},
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration.
// Zero horizons fall back to the defaults.
func NewEngineWithConfig(config EngineConfig, opts ...EngineOption) *Engine {
	if config.StandardHorizon == (Span{}) {
		config.StandardHorizon = DefaultEngineConfig.StandardHorizon
	}
	if config.OpenEndedHorizon == (Span{}) {
		config.OpenEndedHorizon = DefaultEngineConfig.OpenEndedHorizon
	}

	e := &Engine{config: config}
	if config.CacheEnabled {
		e.cache = NewRecurrenceCache(config.CacheConfig)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
