package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Rule kinds and end kinds as they appear in RuleSpec.
const (
	KindStandard = "standard"
	KindCustom   = "custom"

	EndNever = "never"
	EndOn    = "on_date"
	EndAfter = "after_occurrences"
)

// DateLayout is the wire format for naive calendar dates.
const DateLayout = "2006-01-02"

// RuleSpec is the flat, serialisable form of a Rule. Stores and the HTTP API
// persist rules in this shape.
type RuleSpec struct {
	Kind      string     `json:"kind" bson:"kind"`
	Pattern   Frequency  `json:"pattern,omitempty" bson:"pattern,omitempty"`
	Frequency Frequency  `json:"frequency,omitempty" bson:"frequency,omitempty"`
	Interval  int        `json:"interval,omitempty" bson:"interval,omitempty"`
	Weekdays  []int      `json:"weekdays,omitempty" bson:"weekdays,omitempty"`
	MonthDay  int        `json:"month_day,omitempty" bson:"month_day,omitempty"`
	EndKind   string     `json:"end_kind,omitempty" bson:"end_kind,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty" bson:"end_date,omitempty"`
	EndCount  int        `json:"end_count,omitempty" bson:"end_count,omitempty"`
}

// SpecFromRule flattens r. A nil rule yields a nil spec.
func SpecFromRule(r Rule) *RuleSpec {
	switch rule := r.(type) {
	case StandardRule:
		return &RuleSpec{Kind: KindStandard, Pattern: rule.Pattern}
	case CustomRule:
		rule = rule.Normalize()
		spec := &RuleSpec{
			Kind:      KindCustom,
			Frequency: rule.Frequency,
			Interval:  rule.Interval,
			MonthDay:  rule.MonthDay,
		}
		for _, d := range rule.Weekdays {
			spec.Weekdays = append(spec.Weekdays, int(d))
		}
		switch end := rule.End.(type) {
		case OnDate:
			d := end.Date
			spec.EndKind = EndOn
			spec.EndDate = &d
		case AfterOccurrences:
			spec.EndKind = EndAfter
			spec.EndCount = end.Count
		default:
			spec.EndKind = EndNever
		}
		return spec
	default:
		return nil
	}
}

// Rule rebuilds the Rule described by s. Frequencies are checked; numeric
// fields are normalized rather than rejected.
func (s *RuleSpec) Rule() (Rule, error) {
	if s == nil {
		return nil, nil
	}
	switch s.Kind {
	case KindStandard:
		p, err := ParseFrequency(string(s.Pattern))
		if err != nil {
			return nil, err
		}
		return StandardRule{Pattern: p}, nil
	case KindCustom:
		f, err := ParseFrequency(string(s.Frequency))
		if err != nil {
			return nil, err
		}
		end, err := s.end()
		if err != nil {
			return nil, err
		}
		var days []time.Weekday
		for _, d := range s.Weekdays {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("weekday index %d out of range 0..6", d)
			}
			days = append(days, time.Weekday(d))
		}
		return NewCustomRule(f, s.Interval, days, s.MonthDay, end), nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", s.Kind)
	}
}

func (s *RuleSpec) end() (EndCondition, error) {
	switch s.EndKind {
	case "", EndNever:
		return Never{}, nil
	case EndOn:
		if s.EndDate == nil {
			return nil, errors.New("end_date is required for on_date end condition")
		}
		return OnDate{Date: *s.EndDate}, nil
	case EndAfter:
		return AfterOccurrences{Count: s.EndCount}, nil
	default:
		return nil, fmt.Errorf("unknown end condition %q", s.EndKind)
	}
}
