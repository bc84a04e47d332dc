package recurrence

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestEngine_ExpandAgreesWithRRule(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name   string
		anchor time.Time
		rule   Rule
	}{
		{"standard daily", date(2024, 1, 1), StandardRule{Pattern: Daily}},
		{"standard weekly", date(2024, 3, 1), StandardRule{Pattern: Weekly}},
		{"standard yearly", date(2023, 7, 14), StandardRule{Pattern: Yearly}},
		{"custom daily count", date(2024, 6, 10), NewCustomRule(Daily, 3, nil, 0, AfterOccurrences{Count: 5})},
		{"custom weekly interval", date(2024, 1, 1), NewCustomRule(Weekly, 2, nil, 0, OnDate{Date: date(2024, 6, 1)})},
		{"custom weekday set", date(2024, 1, 1), NewCustomRule(Weekly, 1, []time.Weekday{time.Monday, time.Wednesday}, 0, OnDate{Date: date(2024, 3, 31)})},
		{"custom monthly mid-month", date(2024, 1, 15), NewCustomRule(Monthly, 1, nil, 15, Never{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, ok, err := engine.ROption(tt.anchor, tt.rule)
			require.NoError(t, err)
			require.True(t, ok)

			r, err := rrule.NewRRule(opt)
			require.NoError(t, err)

			assert.Equal(t, r.All(), dates(engine.Expand(tt.anchor, tt.rule)))
		})
	}
}

func TestEngine_RRuleString(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name     string
		anchor   time.Time
		rule     Rule
		expected string
	}{
		{
			name:     "No rule",
			anchor:   date(2024, 3, 1),
			rule:     nil,
			expected: "",
		},
		{
			name:     "Standard weekly is bounded by one year",
			anchor:   date(2024, 3, 1),
			rule:     StandardRule{Pattern: Weekly},
			expected: "FREQ=WEEKLY;INTERVAL=1;UNTIL=20250301T000000Z",
		},
		{
			name:     "Monthly with count",
			anchor:   date(2024, 1, 31),
			rule:     NewCustomRule(Monthly, 1, nil, 31, AfterOccurrences{Count: 3}),
			expected: "FREQ=MONTHLY;INTERVAL=1;COUNT=3;BYMONTHDAY=31",
		},
		{
			name:     "Weekday set drops interval",
			anchor:   date(2024, 1, 1),
			rule:     NewCustomRule(Weekly, 3, []time.Weekday{time.Wednesday, time.Monday}, 0, OnDate{Date: date(2024, 1, 31)}),
			expected: "FREQ=WEEKLY;INTERVAL=1;UNTIL=20240131T000000Z;BYDAY=MO,WE",
		},
		{
			name:     "Open-ended daily uses the synthetic horizon",
			anchor:   date(2024, 1, 1),
			rule:     NewCustomRule(Daily, 2, nil, 0, Never{}),
			expected: "FREQ=DAILY;INTERVAL=2;UNTIL=20260101T000000Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.RRuleString(tt.anchor, tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := engine.RRuleString(date(2024, 1, 1), StandardRule{Pattern: "hourly"})
	assert.Error(t, err)
}

func TestParseRRULE(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Rule
		dtstart  time.Time
		wantErr  bool
	}{
		{
			name:     "Weekly with weekdays and count",
			input:    "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4",
			expected: CustomRule{Frequency: Weekly, Interval: 1, Weekdays: []time.Weekday{time.Monday, time.Wednesday}, End: AfterOccurrences{Count: 4}},
		},
		{
			name:     "Monthly takes the day from DTSTART",
			input:    "DTSTART:20240115T000000Z\nRRULE:FREQ=MONTHLY;INTERVAL=2",
			expected: CustomRule{Frequency: Monthly, Interval: 2, MonthDay: 15, End: Never{}},
			dtstart:  date(2024, 1, 15),
		},
		{
			name:     "Until becomes an end date",
			input:    "RRULE:FREQ=DAILY;UNTIL=20240301T093000Z",
			expected: CustomRule{Frequency: Daily, Interval: 1, End: OnDate{Date: date(2024, 3, 1)}},
		},
		{
			name:     "Sunday maps to weekday zero",
			input:    "FREQ=WEEKLY;BYDAY=SU",
			expected: CustomRule{Frequency: Weekly, Interval: 1, Weekdays: []time.Weekday{time.Sunday}, End: Never{}},
		},
		{name: "Hourly is unsupported", input: "FREQ=HOURLY", wantErr: true},
		{name: "Set positions are unsupported", input: "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=1", wantErr: true},
		{name: "Ordinal weekdays are unsupported", input: "FREQ=WEEKLY;BYDAY=+1MO", wantErr: true},
		{name: "Monthly without day or start", input: "FREQ=MONTHLY", wantErr: true},
		{name: "Garbage", input: "not a rule", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, dtstart, err := ParseRRULE(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rule)
			assert.True(t, tt.dtstart.Equal(dtstart), "dtstart = %v", dtstart)
		})
	}
}

func TestRRuleRoundTrip(t *testing.T) {
	engine := NewEngine()
	anchor := date(2024, 1, 1)
	rule := NewCustomRule(Weekly, 1, []time.Weekday{time.Tuesday, time.Friday}, 0, AfterOccurrences{Count: 6})

	s, err := engine.RRuleString(anchor, rule)
	require.NoError(t, err)

	parsed, _, err := ParseRRULE(s)
	require.NoError(t, err)
	assert.Equal(t, rule, parsed)
	assert.Equal(t, Expand(anchor, rule), Expand(anchor, parsed))
}

func TestExtractRuleFromComponent(t *testing.T) {
	t.Run("VTODO without RRULE", func(t *testing.T) {
		todo := ical.NewComponent(ical.CompToDo)
		todo.Props.SetDateTime(ical.PropDue, time.Date(2024, 4, 2, 17, 0, 0, 0, time.UTC))

		rule, anchor, err := ExtractRuleFromComponent(todo)
		require.NoError(t, err)
		assert.Nil(t, rule)
		assert.Equal(t, date(2024, 4, 2), anchor)
	})

	t.Run("VEVENT with monthly RRULE", func(t *testing.T) {
		event := ical.NewComponent(ical.CompEvent)
		event.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = "FREQ=MONTHLY;COUNT=4"
		event.Props.Set(prop)

		rule, anchor, err := ExtractRuleFromComponent(event)
		require.NoError(t, err)
		assert.Equal(t, date(2024, 1, 20), anchor)
		assert.Equal(t, CustomRule{Frequency: Monthly, Interval: 1, MonthDay: 20, End: AfterOccurrences{Count: 4}}, rule)
	})

	t.Run("Missing anchor", func(t *testing.T) {
		comp := &ical.Component{Name: ical.CompEvent, Props: make(ical.Props)}

		_, _, err := ExtractRuleFromComponent(comp)
		assert.ErrorIs(t, err, ErrNoAnchor)
	})
}
