package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// ErrNoAnchor is returned when a component carries neither DUE nor DTSTART.
var ErrNoAnchor = errors.New("component has no DUE or DTSTART")

// ExtractRuleFromComponent reads the anchor date and recurrence rule of an
// iCal VTODO or VEVENT. VTODOs anchor on DUE, falling back to DTSTART. The
// rule is nil when the component has no RRULE.
func ExtractRuleFromComponent(comp *ical.Component) (Rule, time.Time, error) {
	anchor, err := componentAnchor(comp)
	if err != nil {
		return nil, time.Time{}, err
	}

	rruleProp := comp.Props.Get(ical.PropRecurrenceRule)
	if rruleProp == nil || rruleProp.Value == "" {
		return nil, anchor, nil
	}

	opt, err := rrule.StrToROption(rruleProp.Value)
	if err != nil {
		return nil, anchor, fmt.Errorf("failed to parse RRULE '%s': %w", rruleProp.Value, err)
	}
	opt.Dtstart = anchor

	rule, err := RuleFromROption(*opt)
	if err != nil {
		return nil, anchor, err
	}
	return rule, anchor, nil
}

func componentAnchor(comp *ical.Component) (time.Time, error) {
	if comp.Name == ical.CompToDo {
		if due, err := comp.Props.DateTime(ical.PropDue, time.UTC); err == nil && !due.IsZero() {
			return DateOf(due), nil
		}
	}
	if start, err := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC); err == nil && !start.IsZero() {
		return DateOf(start), nil
	}
	return time.Time{}, ErrNoAnchor
}
