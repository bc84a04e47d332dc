// memory based implementation for testing purposes
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/cyp0633/taskcal/server/storage"
)

// Store implements storage.EventStore, storage.TaskStore,
// storage.RangeLister and storage.CompletionSetter using in-memory maps
type Store struct {
	mu     sync.RWMutex
	tasks  map[string]*storage.Task
	events map[string]storage.EventInstance // key: instance ID
}

var (
	_ storage.EventStore       = (*Store)(nil)
	_ storage.TaskStore        = (*Store)(nil)
	_ storage.RangeLister      = (*Store)(nil)
	_ storage.CompletionSetter = (*Store)(nil)
)

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		tasks:  make(map[string]*storage.Task),
		events: make(map[string]storage.EventInstance),
	}
}

func cloneEvent(e storage.EventInstance) storage.EventInstance {
	e.AssignedUserIDs = slices.Clone(e.AssignedUserIDs)
	return e
}

func cloneTask(t *storage.Task) *storage.Task {
	c := *t
	c.AssignedUserIDs = slices.Clone(t.AssignedUserIDs)
	return &c
}

// Event operations

// InsertEvents stores all events or none of them.
func (s *Store) InsertEvents(_ context.Context, events []storage.EventInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.ID == "" || e.TaskID == "" {
			return &storage.Error{
				Type:    storage.ErrInvalidInput,
				Message: "event instance requires an ID and a task ID",
			}
		}
		_, dup := seen[e.ID]
		if _, exists := s.events[e.ID]; exists || dup {
			return &storage.Error{
				Type:    storage.ErrAlreadyExists,
				Message: "event instance already exists: " + e.ID,
			}
		}
		seen[e.ID] = struct{}{}
	}

	for _, e := range events {
		s.events[e.ID] = cloneEvent(e)
	}
	return nil
}

func (s *Store) DeleteEventsByTaskID(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.events {
		if e.TaskID == taskID {
			delete(s.events, id)
		}
	}
	return nil
}

func (s *Store) ListEventsByTaskID(_ context.Context, taskID string) ([]storage.EventInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.EventInstance, 0)
	for _, e := range s.events {
		if e.TaskID == taskID {
			result = append(result, cloneEvent(e))
		}
	}
	storage.SortInstances(result)
	return result, nil
}

func (s *Store) ListEventsInRange(_ context.Context, filter storage.Filter) ([]storage.EventInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]storage.EventInstance, 0)
	for _, e := range s.events {
		if filter.Match(e) {
			result = append(result, cloneEvent(e))
		}
	}
	storage.SortInstances(result)
	return result, nil
}

func (s *Store) SetCompleted(_ context.Context, instanceID string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[instanceID]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event instance not found",
		}
	}
	e.Completed = completed
	s.events[instanceID] = e
	return nil
}

// Task operations

func (s *Store) GetTask(_ context.Context, taskID string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}
	return cloneTask(task), nil
}

func (s *Store) PutTask(_ context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "task requires an ID",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "task not found",
		}
	}
	delete(s.tasks, taskID)
	return nil
}

// ListTasks returns all tasks ordered by ID.
func (s *Store) ListTasks(_ context.Context) ([]*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		result = append(result, cloneTask(t))
	}
	slices.SortFunc(result, func(a, b *storage.Task) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return result, nil
}
