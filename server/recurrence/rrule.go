package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// rrule-go numbers weekdays from Monday; time.Weekday from Sunday.
var rruleWeekdays = [7]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

var rruleFreqs = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

// ROption renders rule as an RFC 5545 recurrence anchored at anchor, bounded
// by the same horizons the engine uses. The RRULE is an interchange
// approximation: RFC 5545 skips months that lack BYMONTHDAY where Expand
// rolls over, and standard monthly steps in Expand drift after a short month.
// ok is false for a nil rule.
func (e *Engine) ROption(anchor time.Time, rule Rule) (opt rrule.ROption, ok bool, err error) {
	anchor = DateOf(anchor)
	switch r := rule.(type) {
	case nil:
		return opt, false, nil
	case StandardRule:
		freq, known := rruleFreqs[r.Pattern]
		if !known {
			return opt, false, fmt.Errorf("unknown standard pattern %q", r.Pattern)
		}
		return rrule.ROption{
			Freq:     freq,
			Dtstart:  anchor,
			Interval: 1,
			Until:    e.config.StandardHorizon.After(anchor),
		}, true, nil
	case CustomRule:
		r = r.Normalize()
		freq, known := rruleFreqs[r.Frequency]
		if !known {
			return opt, false, fmt.Errorf("unknown custom frequency %q", r.Frequency)
		}
		opt = rrule.ROption{Freq: freq, Dtstart: anchor, Interval: r.Interval}
		switch r.Frequency {
		case Weekly:
			if len(r.Weekdays) > 0 {
				// Weekday sets step daily and ignore the interval.
				opt.Interval = 1
				for _, d := range r.Weekdays {
					opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
				}
			}
		case Monthly:
			opt.Bymonthday = []int{r.MonthDay}
		}
		switch end := r.End.(type) {
		case OnDate:
			opt.Until = DateOf(end.Date)
		case AfterOccurrences:
			// COUNT and UNTIL are mutually exclusive in RFC 5545.
			opt.Count = end.Count
		default:
			opt.Until = e.config.OpenEndedHorizon.After(anchor)
		}
		return opt, true, nil
	default:
		return opt, false, fmt.Errorf("unsupported rule type %T", rule)
	}
}

// RRuleString returns the RRULE value (without the "RRULE:" prefix) for
// rule, or "" for a nil rule.
func (e *Engine) RRuleString(anchor time.Time, rule Rule) (string, error) {
	opt, ok, err := e.ROption(anchor, rule)
	if err != nil || !ok {
		return "", err
	}
	return opt.RRuleString(), nil
}

// ParseRRULE converts an RRULE value such as "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4"
// into a CustomRule. An optional DTSTART line is accepted and returned;
// otherwise the returned time is zero.
func ParseRRULE(s string) (Rule, time.Time, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse RRULE '%s': %w", s, err)
	}
	rule, err := RuleFromROption(*opt)
	if err != nil {
		return nil, time.Time{}, err
	}
	return rule, opt.Dtstart, nil
}

// RuleFromROption maps the subset of RFC 5545 the engine can express onto a
// CustomRule. Monthly rules without BYMONTHDAY land on the DTSTART day.
func RuleFromROption(opt rrule.ROption) (Rule, error) {
	var freq Frequency
	for f, rf := range rruleFreqs {
		if rf == opt.Freq {
			freq = f
		}
	}
	if freq == "" {
		return nil, fmt.Errorf("unsupported RRULE frequency %v", opt.Freq)
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Byyearday)+len(opt.Byweekno)+
		len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond)+len(opt.Byeaster) > 0 {
		return nil, errors.New("RRULE uses BY* parts that cannot be represented")
	}

	rule := CustomRule{Frequency: freq, Interval: opt.Interval}

	if len(opt.Byweekday) > 0 {
		if freq != Weekly {
			return nil, errors.New("BYDAY is only supported on weekly rules")
		}
		for _, wd := range opt.Byweekday {
			if wd.N() != 0 {
				return nil, fmt.Errorf("ordinal weekday %s is not supported", wd.String())
			}
			rule.Weekdays = append(rule.Weekdays, time.Weekday((wd.Day()+1)%7))
		}
	}

	switch {
	case len(opt.Bymonthday) > 1:
		return nil, errors.New("multiple BYMONTHDAY values are not supported")
	case len(opt.Bymonthday) == 1:
		if freq != Monthly {
			return nil, errors.New("BYMONTHDAY is only supported on monthly rules")
		}
		rule.MonthDay = opt.Bymonthday[0]
	case freq == Monthly:
		if opt.Dtstart.IsZero() {
			return nil, errors.New("monthly RRULE needs BYMONTHDAY or DTSTART")
		}
		rule.MonthDay = opt.Dtstart.Day()
	}

	switch {
	case opt.Count > 0:
		rule.End = AfterOccurrences{Count: opt.Count}
	case !opt.Until.IsZero():
		rule.End = OnDate{Date: DateOf(opt.Until)}
	default:
		rule.End = Never{}
	}

	return rule.Normalize(), nil
}
