package storage

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/samber/mo"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
	ErrUnavailable   ErrorType = "unavailable"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is, or wraps, a *Error of type t.
func IsType(err error, t ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == t
}

// TaskType classifies a task. It is copied onto every event instance.
type TaskType string

const (
	TaskTypeTask     TaskType = "task"
	TaskTypeMeeting  TaskType = "meeting"
	TaskTypeReminder TaskType = "reminder"
	TaskTypePayment  TaskType = "payment"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeTask, TaskTypeMeeting, TaskTypeReminder, TaskTypePayment:
		return true
	}
	return false
}

// Task is a record owned by the task workflow. The engine only reads it.
type Task struct {
	ID    string
	Title string
	// DueDate anchors the recurrence and is the first occurrence.
	DueDate     time.Time
	IsRecurring bool
	// Recurrence is present iff IsRecurring is true.
	Recurrence      mo.Option[recurrence.Rule]
	AssignedUserIDs []string
	Type            TaskType
}

// Rule returns the task's recurrence rule, or nil when the task does not
// recur. A rule without the IsRecurring flag, or the flag without a rule,
// both count as non-recurring.
func (t Task) Rule() recurrence.Rule {
	if !t.IsRecurring {
		return nil
	}
	return t.Recurrence.OrElse(nil)
}

// EventInstance is one materialized calendar occurrence of a task.
type EventInstance struct {
	ID     string `json:"id" bson:"_id"`
	TaskID string `json:"task_id" bson:"task_id"`
	// Title, Type and AssignedUserIDs are snapshots of the task at
	// materialization time.
	Title                  string    `json:"title" bson:"title"`
	Type                   TaskType  `json:"type" bson:"type"`
	AssignedUserIDs        []string  `json:"assigned_user_ids" bson:"assigned_user_ids"`
	InstanceDate           time.Time `json:"instance_date" bson:"instance_date"`
	Index                  int       `json:"index" bson:"index"`
	AllDay                 bool      `json:"all_day" bson:"all_day"`
	Recurring              bool      `json:"recurring" bson:"recurring"`
	RecurrencePatternLabel string    `json:"recurrence_pattern_label,omitempty" bson:"recurrence_pattern_label,omitempty"`
	Completed              bool      `json:"completed" bson:"completed"`
}

// AssignedTo reports whether userID is among the instance's assignees.
func (e EventInstance) AssignedTo(userID string) bool {
	return slices.Contains(e.AssignedUserIDs, userID)
}
