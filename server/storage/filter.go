package storage

import (
	"cmp"
	"slices"
	"time"
)

// Filter selects event instances for a calendar view. Start and End are
// inclusive calendar dates; nil leaves that side open.
type Filter struct {
	Start  *time.Time
	End    *time.Time
	UserID string // only instances assigned to this user, if set
	// IncludeCompleted keeps completed instances in the result.
	IncludeCompleted bool
}

// Match reports whether e passes the filter.
func (f Filter) Match(e EventInstance) bool {
	if f.Start != nil && e.InstanceDate.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.InstanceDate.After(*f.End) {
		return false
	}
	if f.UserID != "" && !e.AssignedTo(f.UserID) {
		return false
	}
	if e.Completed && !f.IncludeCompleted {
		return false
	}
	return true
}

// Apply returns the events that match f, ordered by date, then task id, then
// index.
func (f Filter) Apply(events []EventInstance) []EventInstance {
	out := make([]EventInstance, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	SortInstances(out)
	return out
}

// SortInstances orders events by date, then task id, then index.
func SortInstances(events []EventInstance) {
	slices.SortFunc(events, func(a, b EventInstance) int {
		if c := a.InstanceDate.Compare(b.InstanceDate); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TaskID, b.TaskID); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}
