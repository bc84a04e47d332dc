package recurrence

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Frequency is the unit a rule advances by.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// CustomLabel is the pattern label carried by instances of a CustomRule.
const CustomLabel = "custom"

// ParseFrequency converts a frequency name (case-insensitive) into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Daily, Weekly, Monthly, Yearly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown recurrence frequency %q", s)
	}
}

// Rule describes how a task repeats. It is implemented by StandardRule and
// CustomRule only.
type Rule interface {
	// Label is the pattern name for standard rules and "custom" otherwise.
	Label() string
	isRule()
}

// StandardRule repeats every single unit of Pattern for one year.
type StandardRule struct {
	Pattern Frequency
}

func (r StandardRule) Label() string { return string(r.Pattern) }
func (StandardRule) isRule()         {}

// CustomRule is a rule with an interval, optional weekday or month-day
// refinement and an explicit end condition.
type CustomRule struct {
	Frequency Frequency
	// Interval is the number of Frequency units per step. Values below 1 are
	// treated as 1.
	Interval int
	// Weekdays restricts weekly rules to the listed days. Ignored for other
	// frequencies. Normalize drops values outside Sunday..Saturday; a set
	// left empty that way means plain weekly stepping. RuleSpec.Rule rejects
	// such values instead.
	Weekdays []time.Weekday
	// MonthDay is the day of month monthly rules land on. It is kept as given,
	// even when a month has no such day.
	MonthDay int
	End      EndCondition
}

func (CustomRule) Label() string { return CustomLabel }
func (CustomRule) isRule()       {}

// NewCustomRule builds a normalized CustomRule.
func NewCustomRule(freq Frequency, interval int, weekdays []time.Weekday, monthDay int, end EndCondition) CustomRule {
	return CustomRule{
		Frequency: freq,
		Interval:  interval,
		Weekdays:  weekdays,
		MonthDay:  monthDay,
		End:       end,
	}.Normalize()
}

// Normalize returns a copy of r with defaults applied: a non-positive
// interval becomes 1, a nil end becomes Never and the weekday set is sorted,
// de-duplicated and stripped of out-of-range days. The receiver is left untouched.
func (r CustomRule) Normalize() CustomRule {
	if r.Interval <= 0 {
		r.Interval = 1
	}
	if r.End == nil {
		r.End = Never{}
	}
	if len(r.Weekdays) > 0 {
		days := make([]time.Weekday, 0, len(r.Weekdays))
		for _, d := range r.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				continue
			}
			if !slices.Contains(days, d) {
				days = append(days, d)
			}
		}
		slices.Sort(days)
		r.Weekdays = days
	} else {
		r.Weekdays = nil
	}
	return r
}

// hasWeekday reports whether weekday filtering applies and d passes it.
func (r CustomRule) hasWeekday(d time.Weekday) bool {
	return slices.Contains(r.Weekdays, d)
}

// EndCondition terminates a CustomRule. It is implemented by Never, OnDate
// and AfterOccurrences.
type EndCondition interface {
	isEnd()
}

// Never repeats until the open-ended horizon.
type Never struct{}

// OnDate repeats up to and including Date.
type OnDate struct {
	Date time.Time
}

// AfterOccurrences stops once Count occurrences have been emitted.
type AfterOccurrences struct {
	Count int
}

func (Never) isEnd()            {}
func (OnDate) isEnd()           {}
func (AfterOccurrences) isEnd() {}

// OccurrenceDate is a single expanded calendar date and its position in the
// expansion.
type OccurrenceDate struct {
	Date  time.Time `json:"date"`
	Index int       `json:"index"`
}
