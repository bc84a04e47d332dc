package recurrence

import (
	"log/slog"
	"time"
)

// Engine expands recurrence rules into concrete calendar dates
type Engine struct {
	cache  ExpansionCache
	config EngineConfig
	logger *slog.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithCache replaces the engine's expansion cache, e.g. with a shared Redis
// cache. A nil cache disables caching.
func WithCache(c ExpansionCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the logger used for expansion diagnostics.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a recurrence engine with DefaultEngineConfig
func NewEngine(opts ...EngineOption) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

var defaultEngine = NewEngine()

// Expand expands rule from anchor using DefaultEngineConfig.
func Expand(anchor time.Time, rule Rule) []OccurrenceDate {
	return defaultEngine.Expand(anchor, rule)
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Close releases the engine's cache, if it holds one.
func (e *Engine) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

// Expand returns the ordered, finite series of dates that rule produces from
// anchor. A nil rule yields the anchor alone. Both anchor and any end date are
// treated as naive calendar dates (midnight UTC). The result is never shared
// with the cache, so callers may modify it.
func (e *Engine) Expand(anchor time.Time, rule Rule) []OccurrenceDate {
	anchor = DateOf(anchor)
	if rule == nil {
		return []OccurrenceDate{{Date: anchor, Index: 0}}
	}

	if e.cache != nil {
		if occ, ok := e.cache.Get(anchor, rule); ok {
			return occ
		}
	}

	var out []OccurrenceDate
	switch r := rule.(type) {
	case StandardRule:
		out = e.expandStandard(anchor, r)
	case CustomRule:
		out = e.expandCustom(anchor, r.Normalize())
	}
	if out == nil {
		out = []OccurrenceDate{}
	}

	e.log().Debug("expanded recurrence",
		"anchor", anchor.Format(DateLayout),
		"label", rule.Label(),
		"occurrences", len(out))

	if e.cache != nil {
		e.cache.Set(anchor, rule, out)
	}
	return out
}

func (e *Engine) expandStandard(anchor time.Time, r StandardRule) []OccurrenceDate {
	if !knownFrequency(r.Pattern) {
		e.log().Warn("unknown standard pattern, treating as single occurrence", "pattern", r.Pattern)
		return []OccurrenceDate{{Date: anchor, Index: 0}}
	}

	horizon := e.config.StandardHorizon.After(anchor)
	var out []OccurrenceDate
	for cur := anchor; !cur.After(horizon); cur = step(cur, r.Pattern, 1) {
		out = append(out, OccurrenceDate{Date: cur, Index: len(out)})
	}
	return out
}

func (e *Engine) expandCustom(anchor time.Time, r CustomRule) []OccurrenceDate {
	if !knownFrequency(r.Frequency) {
		e.log().Warn("unknown custom frequency, treating as single occurrence", "frequency", r.Frequency)
		return []OccurrenceDate{{Date: anchor, Index: 0}}
	}

	limit := 0
	var horizon time.Time
	switch end := r.End.(type) {
	case OnDate:
		horizon = DateOf(end.Date)
	case AfterOccurrences:
		if end.Count <= 0 {
			return nil
		}
		limit = end.Count
		horizon = e.config.OpenEndedHorizon.After(anchor)
	default:
		horizon = e.config.OpenEndedHorizon.After(anchor)
	}

	var out []OccurrenceDate
	for cur := anchor; !cur.After(horizon); {
		if r.emits(cur) {
			out = append(out, OccurrenceDate{Date: cur, Index: len(out)})
			if limit > 0 && len(out) >= limit {
				break
			}
		}

		next := r.advance(cur)
		// Month days far outside 1..31 can normalize backwards.
		if !next.After(cur) {
			e.log().Warn("recurrence stopped advancing", "date", cur.Format(DateLayout), "month_day", r.MonthDay)
			break
		}
		cur = next
	}
	return out
}

// emits is the filter step applied before a date is emitted.
func (r CustomRule) emits(d time.Time) bool {
	switch {
	case r.Frequency == Weekly && len(r.Weekdays) > 0:
		return r.hasWeekday(d.Weekday())
	case r.Frequency == Monthly:
		return d.Day() == r.MonthDay
	default:
		return true
	}
}

// advance moves d to the next candidate date. Weekly rules with a weekday set
// step one day at a time and ignore Interval. Monthly rules add Interval
// months and then set the day to MonthDay, letting time.Date roll a missing
// day over into the following month.
func (r CustomRule) advance(d time.Time) time.Time {
	switch r.Frequency {
	case Weekly:
		if len(r.Weekdays) > 0 {
			return d.AddDate(0, 0, 1)
		}
		return d.AddDate(0, 0, 7*r.Interval)
	case Monthly:
		next := d.AddDate(0, r.Interval, 0)
		return time.Date(next.Year(), next.Month(), r.MonthDay, 0, 0, 0, 0, time.UTC)
	default:
		return step(d, r.Frequency, r.Interval)
	}
}

func step(d time.Time, f Frequency, n int) time.Time {
	switch f {
	case Daily:
		return d.AddDate(0, 0, n)
	case Weekly:
		return d.AddDate(0, 0, 7*n)
	case Monthly:
		return d.AddDate(0, n, 0)
	default:
		return d.AddDate(n, 0, 0)
	}
}

func knownFrequency(f Frequency) bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// DateOf truncates t to midnight UTC of its own calendar day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *Engine) log() *slog.Logger {
	if e.logger == nil {
		return slog.Default()
	}
	return e.logger
}
