package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

const ProductID = "-//Taskcal//Go Task Calendar//EN"

// InstancesToICS renders event instances as a VCALENDAR of all-day VEVENTs.
// Each instance is a standalone event; recurrence has already been expanded.
// No instances yield a calendar with no components.
func InstancesToICS(events []EventInstance, stamp time.Time) (string, error) {
	if len(events) == 0 {
		// The encoder rejects calendars without children.
		return emptyCalendar(), nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, e := range events {
		cal.Children = append(cal.Children, InstanceToEvent(e, stamp).Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

func emptyCalendar() string {
	return strings.Join([]string{
		"BEGIN:" + ical.CompCalendar,
		ical.PropVersion + ":2.0",
		ical.PropProductID + ":" + ProductID,
		"END:" + ical.CompCalendar,
		"",
	}, "\r\n")
}

// InstanceToEvent converts one instance into an all-day VEVENT.
func InstanceToEvent(e EventInstance, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, e.ID)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetText(ical.PropSummary, e.Title)
	event.Props.SetDate(ical.PropDateTimeStart, e.InstanceDate)
	event.Props.SetDate(ical.PropDateTimeEnd, e.InstanceDate.AddDate(0, 0, 1))
	if e.Type != "" {
		event.Props.SetText(ical.PropCategories, string(e.Type))
	}
	event.Props.SetText(ical.PropRelatedTo, e.TaskID)
	return event
}

// ComponentToTask builds a task from a VTODO or VEVENT. The due date and
// recurrence come from the component's DUE/DTSTART and RRULE.
func ComponentToTask(comp *ical.Component) (*Task, error) {
	rule, anchor, err := recurrence.ExtractRuleFromComponent(comp)
	if err != nil {
		return nil, &Error{Type: ErrInvalidInput, Message: "unusable calendar component", Err: err}
	}

	task := &Task{
		DueDate:     anchor,
		IsRecurring: rule != nil,
		Type:        TaskTypeTask,
	}
	if rule != nil {
		task.Recurrence = mo.Some(rule)
	}
	if prop := comp.Props.Get(ical.PropUID); prop != nil {
		task.ID = prop.Value
	}
	if summary, err := comp.Props.Text(ical.PropSummary); err == nil {
		task.Title = summary
	}
	if categories, err := comp.Props.Text(ical.PropCategories); err == nil {
		if t := TaskType(strings.ToLower(categories)); t.Valid() {
			task.Type = t
		}
	}
	if comp.Name == ical.CompEvent {
		task.Type = TaskTypeMeeting
	}
	return task, nil
}

// ICSToTasks decodes a calendar and converts each VTODO and VEVENT in it.
func ICSToTasks(r io.Reader) ([]*Task, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, &Error{Type: ErrInvalidInput, Message: "failed to decode calendar", Err: err}
	}

	var tasks []*Task
	for _, child := range cal.Children {
		if child.Name != ical.CompToDo && child.Name != ical.CompEvent {
			continue
		}
		task, err := ComponentToTask(child)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return nil, &Error{Type: ErrInvalidInput, Message: "no tasks found in calendar"}
	}
	return tasks, nil
}
