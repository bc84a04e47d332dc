package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dates(occ []OccurrenceDate) []time.Time {
	out := make([]time.Time, len(occ))
	for i, o := range occ {
		out[i] = o.Date
	}
	return out
}

func TestExpand_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		anchor   time.Time
		rule     Rule
		expected []time.Time
	}{
		{
			name:     "Non-recurring yields the anchor",
			anchor:   date(2024, 5, 17),
			rule:     nil,
			expected: []time.Time{date(2024, 5, 17)},
		},
		{
			name:   "Biweekly without weekday set stops after three",
			anchor: date(2024, 1, 1),
			rule:   NewCustomRule(Weekly, 2, nil, 0, AfterOccurrences{Count: 3}),
			expected: []time.Time{
				date(2024, 1, 1), date(2024, 1, 15), date(2024, 1, 29),
			},
		},
		{
			name:   "Every third day until an end date",
			anchor: date(2024, 6, 10),
			rule:   NewCustomRule(Daily, 3, nil, 0, OnDate{Date: date(2024, 6, 20)}),
			expected: []time.Time{
				date(2024, 6, 10), date(2024, 6, 13), date(2024, 6, 16), date(2024, 6, 19),
			},
		},
		{
			name:   "Month day 31 rolls past short months",
			anchor: date(2024, 1, 31),
			rule:   NewCustomRule(Monthly, 1, nil, 31, AfterOccurrences{Count: 3}),
			expected: []time.Time{
				date(2024, 1, 31), date(2024, 3, 31), date(2024, 5, 31),
			},
		},
		{
			name:   "Monthly anchor before month day starts next month",
			anchor: date(2024, 1, 10),
			rule:   NewCustomRule(Monthly, 1, nil, 15, AfterOccurrences{Count: 2}),
			expected: []time.Time{
				date(2024, 2, 15), date(2024, 3, 15),
			},
		},
		{
			name:   "Weekday set ignores interval",
			anchor: date(2024, 1, 1),
			rule:   NewCustomRule(Weekly, 5, []time.Weekday{time.Monday}, 0, OnDate{Date: date(2024, 1, 31)}),
			expected: []time.Time{
				date(2024, 1, 1), date(2024, 1, 8), date(2024, 1, 15), date(2024, 1, 22), date(2024, 1, 29),
			},
		},
		{
			name:   "Weekday set skips anchor when it does not match",
			anchor: date(2024, 1, 2), // Tuesday
			rule:   NewCustomRule(Weekly, 1, []time.Weekday{time.Friday}, 0, AfterOccurrences{Count: 2}),
			expected: []time.Time{
				date(2024, 1, 5), date(2024, 1, 12),
			},
		},
		{
			name:   "Count beyond open-ended horizon is capped by the horizon",
			anchor: date(2024, 5, 5),
			rule:   NewCustomRule(Yearly, 2, nil, 0, AfterOccurrences{Count: 3}),
			expected: []time.Time{
				date(2024, 5, 5), date(2026, 5, 5),
			},
		},
		{
			name:   "Non-positive interval is treated as one",
			anchor: date(2024, 2, 28),
			rule:   CustomRule{Frequency: Daily, Interval: -4, End: AfterOccurrences{Count: 3}},
			expected: []time.Time{
				date(2024, 2, 28), date(2024, 2, 29), date(2024, 3, 1),
			},
		},
		{
			name:   "Standard yearly from a leap day",
			anchor: date(2024, 2, 29),
			rule:   StandardRule{Pattern: Yearly},
			expected: []time.Time{
				date(2024, 2, 29), date(2025, 3, 1),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.anchor, tt.rule)
			assert.Equal(t, tt.expected, dates(got))
			for i, o := range got {
				assert.Equal(t, i, o.Index)
			}
		})
	}
}

func TestExpand_StandardWeekly(t *testing.T) {
	got := Expand(date(2024, 3, 1), StandardRule{Pattern: Weekly})

	require.Len(t, got, 53)
	assert.Equal(t, []time.Time{date(2024, 3, 1), date(2024, 3, 8), date(2024, 3, 15)}, dates(got[:3]))
	assert.Equal(t, date(2025, 2, 28), got[len(got)-1].Date)
}

func TestExpand_StandardDailyHorizon(t *testing.T) {
	anchor := date(2024, 1, 1)
	got := Expand(anchor, StandardRule{Pattern: Daily})

	require.Len(t, got, 367)
	last := got[len(got)-1].Date
	assert.False(t, last.After(anchor.AddDate(1, 0, 0)))
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 24*time.Hour, got[i].Date.Sub(got[i-1].Date))
	}
}

func TestExpand_StandardMonthlyDrift(t *testing.T) {
	got := Expand(date(2024, 1, 31), StandardRule{Pattern: Monthly})

	require.Len(t, got, 12)
	assert.Equal(t, []time.Time{date(2024, 1, 31), date(2024, 3, 2), date(2024, 4, 2)}, dates(got[:3]))
	assert.Equal(t, date(2025, 1, 2), got[11].Date)
}

func TestExpand_AfterOccurrencesCount(t *testing.T) {
	for _, n := range []int{1, 5, 30, 365} {
		got := Expand(date(2024, 7, 1), NewCustomRule(Daily, 1, nil, 0, AfterOccurrences{Count: n}))
		assert.Len(t, got, n)
	}
}

func TestExpand_WeekdayFilter(t *testing.T) {
	end := date(2024, 1, 31)
	set := []time.Weekday{time.Monday, time.Wednesday}
	got := Expand(date(2024, 1, 1), NewCustomRule(Weekly, 1, set, 0, OnDate{Date: end}))

	require.Len(t, got, 10)
	for _, o := range got {
		assert.Contains(t, set, o.Date.Weekday())
		assert.False(t, o.Date.After(end))
	}
}

func TestExpand_EmptyWeekdaySetMatchesPlainWeekly(t *testing.T) {
	anchor := date(2024, 3, 1)
	custom := Expand(anchor, NewCustomRule(Weekly, 1, []time.Weekday{}, 0, OnDate{Date: anchor.AddDate(1, 0, 0)}))
	standard := Expand(anchor, StandardRule{Pattern: Weekly})

	assert.Equal(t, standard, custom)
}

func TestExpand_NeverUsesTwoYearHorizon(t *testing.T) {
	anchor := date(2024, 1, 1)
	got := Expand(anchor, NewCustomRule(Daily, 1, nil, 0, Never{}))

	require.Len(t, got, 732)
	assert.Equal(t, date(2026, 1, 1), got[len(got)-1].Date)
}

func TestExpand_EmptyResults(t *testing.T) {
	anchor := date(2024, 6, 1)
	tests := []struct {
		name string
		rule Rule
	}{
		{"zero count", NewCustomRule(Daily, 1, nil, 0, AfterOccurrences{Count: 0})},
		{"negative count", NewCustomRule(Daily, 1, nil, 0, AfterOccurrences{Count: -2})},
		{"end before anchor", NewCustomRule(Daily, 1, nil, 0, OnDate{Date: date(2024, 5, 31)})},
		{"month day never reached", NewCustomRule(Monthly, 1, nil, -100, Never{})},
		{"month day zero", NewCustomRule(Monthly, 1, nil, 0, Never{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(anchor, tt.rule)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestExpand_TruncatesTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	anchor := time.Date(2024, 6, 10, 18, 45, 0, 0, loc)
	end := time.Date(2024, 6, 12, 1, 0, 0, 0, loc)

	got := Expand(anchor, NewCustomRule(Daily, 1, nil, 0, OnDate{Date: end}))
	assert.Equal(t, []time.Time{date(2024, 6, 10), date(2024, 6, 11), date(2024, 6, 12)}, dates(got))
}

func TestExpand_DoesNotMutateRule(t *testing.T) {
	rule := CustomRule{
		Frequency: Weekly,
		Weekdays:  []time.Weekday{time.Friday, time.Monday, time.Friday},
		End:       AfterOccurrences{Count: 4},
	}
	first := Expand(date(2024, 1, 1), rule)
	second := Expand(date(2024, 1, 1), rule)

	assert.Equal(t, []time.Weekday{time.Friday, time.Monday, time.Friday}, rule.Weekdays)
	assert.Equal(t, 0, rule.Interval)
	assert.Equal(t, first, second)
}

func TestExpand_UnknownFrequency(t *testing.T) {
	anchor := date(2024, 1, 1)
	assert.Equal(t, []time.Time{anchor}, dates(Expand(anchor, StandardRule{Pattern: "hourly"})))
	assert.Equal(t, []time.Time{anchor}, dates(Expand(anchor, CustomRule{Frequency: ""})))
}

func TestEngine_CustomHorizons(t *testing.T) {
	engine := NewEngineWithConfig(EngineConfig{
		StandardHorizon:  Span{Days: 10},
		OpenEndedHorizon: Span{Months: 1},
	})
	defer engine.Close()

	anchor := date(2024, 1, 1)
	assert.Len(t, engine.Expand(anchor, StandardRule{Pattern: Daily}), 11)
	assert.Len(t, engine.Expand(anchor, NewCustomRule(Daily, 1, nil, 0, Never{})), 32)
}

func TestEngine_CachedResultsAreCopies(t *testing.T) {
	engine := NewEngineWithConfig(CachedEngineConfig)
	defer engine.Close()

	anchor := date(2024, 1, 1)
	rule := NewCustomRule(Daily, 1, nil, 0, AfterOccurrences{Count: 3})

	first := engine.Expand(anchor, rule)
	first[0].Date = date(1999, 1, 1)

	second := engine.Expand(anchor, rule)
	assert.Equal(t, date(2024, 1, 1), second[0].Date)
	assert.Len(t, second, 3)
}

func TestNewCustomRule_Normalizes(t *testing.T) {
	rule := NewCustomRule(Weekly, 0, []time.Weekday{time.Saturday, time.Monday, time.Saturday, 9}, 45, nil)

	assert.Equal(t, 1, rule.Interval)
	assert.Equal(t, []time.Weekday{time.Monday, time.Saturday}, rule.Weekdays)
	assert.Equal(t, 45, rule.MonthDay)
	assert.Equal(t, Never{}, rule.End)
	assert.Equal(t, CustomLabel, rule.Label())
	assert.Equal(t, "weekly", StandardRule{Pattern: Weekly}.Label())
}

func TestNewCustomRule_OnlyInvalidWeekdays(t *testing.T) {
	anchor := date(2024, 1, 3)
	rule := NewCustomRule(Weekly, 2, []time.Weekday{-1, 7, 12}, 0, AfterOccurrences{Count: 3})
	assert.Empty(t, rule.Weekdays)

	// Nothing valid left: behaves like weekly without a weekday set
	plain := NewCustomRule(Weekly, 2, nil, 0, AfterOccurrences{Count: 3})
	assert.Equal(t, Expand(anchor, plain), Expand(anchor, rule))
	assert.Equal(t, []time.Time{date(2024, 1, 3), date(2024, 1, 17), date(2024, 1, 31)}, dates(Expand(anchor, rule)))

	// The serialized form refuses the same input
	_, err := (&RuleSpec{Kind: KindCustom, Frequency: Weekly, Weekdays: []int{7}}).Rule()
	assert.Error(t, err)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" Monthly ")
	require.NoError(t, err)
	assert.Equal(t, Monthly, f)

	_, err = ParseFrequency("fortnightly")
	assert.Error(t, err)
}
