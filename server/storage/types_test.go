package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Type: ErrUnavailable, Message: "insert events", Err: cause}

	assert.Equal(t, "unavailable: insert events: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "not_found: task t1", (&Error{Type: ErrNotFound, Message: "task t1"}).Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, IsType(wrapped, ErrUnavailable))
	assert.False(t, IsType(wrapped, ErrNotFound))
	assert.False(t, IsType(cause, ErrUnavailable))
	assert.False(t, IsType(nil, ErrUnavailable))
}

func TestTaskType_Valid(t *testing.T) {
	for _, tt := range []TaskType{TaskTypeTask, TaskTypeMeeting, TaskTypeReminder, TaskTypePayment} {
		assert.True(t, tt.Valid(), tt)
	}
	assert.False(t, TaskType("chore").Valid())
	assert.False(t, TaskType("").Valid())
}

func TestTask_Rule(t *testing.T) {
	weekly := recurrence.StandardRule{Pattern: recurrence.Weekly}

	tests := []struct {
		name string
		task Task
		want recurrence.Rule
	}{
		{"recurring with rule", Task{IsRecurring: true, Recurrence: mo.Some[recurrence.Rule](weekly)}, weekly},
		{"not recurring", Task{}, nil},
		{"flag without rule", Task{IsRecurring: true}, nil},
		{"rule without flag", Task{Recurrence: mo.Some[recurrence.Rule](weekly)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Rule())
		})
	}
}

func TestEventInstance_AssignedTo(t *testing.T) {
	e := NewMockInstance("e1", "t1", day(2024, 1, 1), 0, "alice", "bob")
	assert.True(t, e.AssignedTo("alice"))
	assert.False(t, e.AssignedTo("carol"))
	assert.False(t, EventInstance{}.AssignedTo(""))
}
