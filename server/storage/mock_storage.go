package storage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockEventStore implements EventStore, RangeLister and CompletionSetter for
// testing
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) InsertEvents(ctx context.Context, events []EventInstance) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockEventStore) DeleteEventsByTaskID(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockEventStore) ListEventsByTaskID(ctx context.Context, taskID string) ([]EventInstance, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EventInstance), args.Error(1)
}

func (m *MockEventStore) ListEventsInRange(ctx context.Context, filter Filter) ([]EventInstance, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]EventInstance), args.Error(1)
}

func (m *MockEventStore) SetCompleted(ctx context.Context, instanceID string, completed bool) error {
	args := m.Called(ctx, instanceID, completed)
	return args.Error(0)
}

// MockTaskStore implements TaskStore for testing
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Task), args.Error(1)
}

func (m *MockTaskStore) PutTask(ctx context.Context, task *Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskStore) DeleteTask(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockTaskStore) ListTasks(ctx context.Context) ([]*Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Task), args.Error(1)
}

// --- Helper methods for creating test data ---

// NewMockTask creates a non-recurring test Task due at midnight UTC of the
// given date
func NewMockTask(id, title string, due time.Time, users ...string) *Task {
	return &Task{
		ID:              id,
		Title:           title,
		DueDate:         time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC),
		AssignedUserIDs: users,
		Type:            TaskTypeTask,
	}
}

// NewMockInstance creates a test EventInstance
func NewMockInstance(id, taskID string, date time.Time, index int, users ...string) EventInstance {
	return EventInstance{
		ID:              id,
		TaskID:          taskID,
		Title:           "Instance " + id,
		Type:            TaskTypeTask,
		AssignedUserIDs: users,
		InstanceDate:    date,
		Index:           index,
		AllDay:          true,
	}
}
