// Package materialize turns tasks into stored event instances and keeps the
// event store in step with task edits.
//
// Store errors are returned to the caller unchanged. Nothing is retried or
// rolled back: a failed insert after a successful delete in Rematerialize
// leaves the task with no instances until the caller tries again. Concurrent
// edits of one task must be serialized by the caller.
package materialize

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/cyp0633/taskcal/server/storage"
	"github.com/google/uuid"
)

// Materializer writes a task's event instances to an event store.
type Materializer struct {
	events storage.EventStore
	engine *recurrence.Engine
	logger *slog.Logger
	newID  func() string
}

// Option customizes a Materializer.
type Option func(*Materializer)

// WithEngine sets the expansion engine. The default engine uses the
// standard horizons and no cache.
func WithEngine(e *recurrence.Engine) Option {
	return func(m *Materializer) { m.engine = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Materializer) { m.logger = l }
}

// WithIDGenerator replaces the instance id generator.
func WithIDGenerator(f func() string) Option {
	return func(m *Materializer) { m.newID = f }
}

// New creates a Materializer on events.
func New(events storage.EventStore, opts ...Option) *Materializer {
	m := &Materializer{
		events: events,
		engine: recurrence.NewEngine(),
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the expansion engine in use.
func (m *Materializer) Engine() *recurrence.Engine {
	return m.engine
}

// BuildInstances generates the instances for task without touching the
// store. A recurring task yields one instance per expanded occurrence, which
// may be none; any other task yields a single instance on its due date.
func (m *Materializer) BuildInstances(task *storage.Task) []storage.EventInstance {
	rule := task.Rule()
	occurrences := m.engine.Expand(task.DueDate, rule)

	label := ""
	if rule != nil {
		label = rule.Label()
	}

	instances := make([]storage.EventInstance, 0, len(occurrences))
	for _, occ := range occurrences {
		instances = append(instances, storage.EventInstance{
			ID:                     m.newID(),
			TaskID:                 task.ID,
			Title:                  task.Title,
			Type:                   task.Type,
			AssignedUserIDs:        slices.Clone(task.AssignedUserIDs),
			InstanceDate:           occ.Date,
			Index:                  occ.Index,
			AllDay:                 true,
			Recurring:              rule != nil,
			RecurrencePatternLabel: label,
			Completed:              false,
		})
	}
	return instances
}

// MaterializeNew inserts the instances of a task the store does not know
// yet. It fails with ErrAlreadyExists if the store lists instances for the
// task id.
func (m *Materializer) MaterializeNew(ctx context.Context, task *storage.Task) (instances []storage.EventInstance, err error) {
	defer func() { track(opMaterializeNew, err) }()

	existing, err := m.events.ListEventsByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "task already has event instances: " + task.ID,
		}
	}

	instances = m.BuildInstances(task)
	if err := m.insert(ctx, instances); err != nil {
		m.logger.Error("failed to insert event instances",
			"error", err,
			"task_id", task.ID,
			"count", len(instances))
		return nil, err
	}

	m.logger.Info("materialized task",
		"task_id", task.ID,
		"recurring", task.Rule() != nil,
		"instances", len(instances))
	return instances, nil
}

// Rematerialize replaces every instance of task with a freshly generated
// set. Completion state of the old instances is discarded.
func (m *Materializer) Rematerialize(ctx context.Context, task *storage.Task) (instances []storage.EventInstance, err error) {
	defer func() { track(opRematerialize, err) }()

	existing, err := m.events.ListEventsByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if err := m.events.DeleteEventsByTaskID(ctx, task.ID); err != nil {
		m.logger.Error("failed to delete event instances",
			"error", err,
			"task_id", task.ID)
		return nil, err
	}

	instances = m.BuildInstances(task)
	if err := m.insert(ctx, instances); err != nil {
		m.logger.Error("insert failed after delete, task has no event instances",
			"error", err,
			"task_id", task.ID,
			"deleted", len(existing),
			"count", len(instances))
		return nil, err
	}

	m.logger.Info("rematerialized task",
		"task_id", task.ID,
		"replaced", len(existing),
		"instances", len(instances))
	return instances, nil
}

// RemoveAll deletes every instance of the task.
func (m *Materializer) RemoveAll(ctx context.Context, taskID string) (err error) {
	defer func() { track(opRemoveAll, err) }()

	if err := m.events.DeleteEventsByTaskID(ctx, taskID); err != nil {
		m.logger.Error("failed to remove event instances",
			"error", err,
			"task_id", taskID)
		return err
	}
	m.logger.Info("removed task instances", "task_id", taskID)
	return nil
}

func (m *Materializer) insert(ctx context.Context, instances []storage.EventInstance) error {
	ExpansionOccurrences.Observe(float64(len(instances)))
	if len(instances) == 0 {
		return nil
	}
	if err := m.events.InsertEvents(ctx, instances); err != nil {
		return err
	}
	InstancesWrittenTotal.Add(float64(len(instances)))
	return nil
}
