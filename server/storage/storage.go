package storage

import (
	"context"
)

// EventStore holds materialized event instances. Implementations are not
// required to make a delete-then-insert sequence atomic; callers that need
// concurrent edits of one task to be safe must serialize them per task id.
// Please use the error types provided.
type EventStore interface {
	// InsertEvents stores all events. A failure may leave some of them
	// written.
	InsertEvents(ctx context.Context, events []EventInstance) error
	// DeleteEventsByTaskID removes every event of the task. Deleting a task
	// with no events is not an error.
	DeleteEventsByTaskID(ctx context.Context, taskID string) error
	// ListEventsByTaskID returns the task's events ordered by instance date.
	ListEventsByTaskID(ctx context.Context, taskID string) ([]EventInstance, error)
}

// TaskStore holds task records for the surrounding task workflow.
type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*Task, error)
	// PutTask creates or replaces a task.
	PutTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, taskID string) error
	ListTasks(ctx context.Context) ([]*Task, error)
}

// RangeLister is implemented by event stores that can answer calendar range
// queries.
type RangeLister interface {
	ListEventsInRange(ctx context.Context, filter Filter) ([]EventInstance, error)
}

// CompletionSetter is implemented by event stores that support toggling the
// completion flag of a single instance.
type CompletionSetter interface {
	SetCompleted(ctx context.Context, instanceID string, completed bool) error
}
