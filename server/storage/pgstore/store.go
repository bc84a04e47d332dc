// Package pgstore is a PostgreSQL-backed implementation of the task and
// event instance stores.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cyp0633/taskcal/server/recurrence"
	"github.com/cyp0633/taskcal/server/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/mo"
)

const uniqueViolation = "23505"

// Store implements storage.EventStore, storage.TaskStore,
// storage.RangeLister and storage.CompletionSetter on top of a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.EventStore       = (*Store)(nil)
	_ storage.TaskStore        = (*Store)(nil)
	_ storage.RangeLister      = (*Store)(nil)
	_ storage.CompletionSetter = (*Store)(nil)
)

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for dsn, checks it and creates the tables.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, wrapErr("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapErr("ping", err)
	}
	s := New(pool)
	if err := s.EnsureTables(ctx); err != nil {
		pool.Close()
		return nil, wrapErr("ensure tables", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureTables creates the tasks and event_instances tables if they don't
// exist.
func (s *Store) EnsureTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                TEXT PRIMARY KEY,
			title             TEXT NOT NULL DEFAULT '',
			due_date          DATE NOT NULL,
			is_recurring      BOOLEAN NOT NULL DEFAULT FALSE,
			recurrence        JSONB,
			assigned_user_ids TEXT[] NOT NULL DEFAULT '{}',
			type              TEXT NOT NULL DEFAULT 'task'
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_instances (
			id                       TEXT PRIMARY KEY,
			task_id                  TEXT NOT NULL,
			title                    TEXT NOT NULL DEFAULT '',
			type                     TEXT NOT NULL DEFAULT 'task',
			assigned_user_ids        TEXT[] NOT NULL DEFAULT '{}',
			instance_date            DATE NOT NULL,
			idx                      INTEGER NOT NULL,
			all_day                  BOOLEAN NOT NULL DEFAULT TRUE,
			recurring                BOOLEAN NOT NULL DEFAULT FALSE,
			recurrence_pattern_label TEXT NOT NULL DEFAULT '',
			completed                BOOLEAN NOT NULL DEFAULT FALSE
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_event_instances_task ON event_instances(task_id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_event_instances_date ON event_instances(instance_date, task_id, idx)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_event_instances_users ON event_instances USING GIN(assigned_user_ids)`)
	return err
}

// wrapErr maps driver errors onto storage error types.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return &storage.Error{Type: storage.ErrNotFound, Message: op, Err: err}
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: op, Err: err}
	}
	return &storage.Error{Type: storage.ErrUnavailable, Message: op, Err: err}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Event operations

const eventColumns = `id, task_id, title, type, assigned_user_ids, instance_date, idx, all_day, recurring, recurrence_pattern_label, completed`

// InsertEvents writes all events in one transaction.
func (s *Store) InsertEvents(ctx context.Context, events []storage.EventInstance) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO event_instances (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.ID, e.TaskID, e.Title, string(e.Type), nonNil(e.AssignedUserIDs), e.InstanceDate,
			e.Index, e.AllDay, e.Recurring, e.RecurrencePatternLabel, e.Completed)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrapErr("insert events", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapErr("commit events", err)
	}
	return nil
}

func (s *Store) DeleteEventsByTaskID(ctx context.Context, taskID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM event_instances WHERE task_id = $1`, taskID)
	return wrapErr("delete events", err)
}

func (s *Store) ListEventsByTaskID(ctx context.Context, taskID string) ([]storage.EventInstance, error) {
	return s.scanEvents(ctx, `
		SELECT `+eventColumns+` FROM event_instances
		WHERE task_id = $1 ORDER BY instance_date, idx`, taskID)
}

func (s *Store) ListEventsInRange(ctx context.Context, filter storage.Filter) ([]storage.EventInstance, error) {
	query, args := rangeQuery(filter)
	return s.scanEvents(ctx, query, args...)
}

// rangeQuery builds the SELECT for a filter.
func rangeQuery(filter storage.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Start != nil {
		add("instance_date >= $%d", *filter.Start)
	}
	if filter.End != nil {
		add("instance_date <= $%d", *filter.End)
	}
	if filter.UserID != "" {
		add("$%d = ANY(assigned_user_ids)", filter.UserID)
	}
	if !filter.IncludeCompleted {
		where = append(where, "NOT completed")
	}

	query := `SELECT ` + eventColumns + ` FROM event_instances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY instance_date, task_id, idx`
	return query, args
}

func (s *Store) SetCompleted(ctx context.Context, instanceID string, completed bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE event_instances SET completed = $2 WHERE id = $1`, instanceID, completed)
	if err != nil {
		return wrapErr("set completed", err)
	}
	if tag.RowsAffected() == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "event instance not found"}
	}
	return nil
}

func (s *Store) scanEvents(ctx context.Context, query string, args ...any) ([]storage.EventInstance, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query events", err)
	}
	defer rows.Close()

	result := make([]storage.EventInstance, 0)
	for rows.Next() {
		var (
			e        storage.EventInstance
			taskType string
		)
		err := rows.Scan(&e.ID, &e.TaskID, &e.Title, &taskType, &e.AssignedUserIDs, &e.InstanceDate,
			&e.Index, &e.AllDay, &e.Recurring, &e.RecurrencePatternLabel, &e.Completed)
		if err != nil {
			return nil, wrapErr("scan event", err)
		}
		e.Type = storage.TaskType(taskType)
		e.InstanceDate = recurrence.DateOf(e.InstanceDate)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate events", err)
	}
	return result, nil
}

// Task operations

const taskColumns = `id, title, due_date, is_recurring, recurrence, assigned_user_ids, type`

// encodeRule returns the JSONB value for a task's rule, nil when it has none.
func encodeRule(task *storage.Task) ([]byte, error) {
	spec := recurrence.SpecFromRule(task.Rule())
	if spec == nil {
		return nil, nil
	}
	return json.Marshal(spec)
}

// decodeRule is the inverse of encodeRule.
func decodeRule(data []byte) (mo.Option[recurrence.Rule], error) {
	if len(data) == 0 {
		return mo.None[recurrence.Rule](), nil
	}
	var spec recurrence.RuleSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return mo.None[recurrence.Rule](), err
	}
	rule, err := spec.Rule()
	if err != nil || rule == nil {
		return mo.None[recurrence.Rule](), err
	}
	return mo.Some(rule), nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*storage.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	task, err := scanTask(row)
	if err != nil {
		return nil, wrapErr("get task "+taskID, err)
	}
	return task, nil
}

func (s *Store) PutTask(ctx context.Context, task *storage.Task) error {
	if task == nil || task.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "task requires an ID"}
	}
	ruleJSON, err := encodeRule(task)
	if err != nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "encode recurrence", Err: err}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			due_date = EXCLUDED.due_date,
			is_recurring = EXCLUDED.is_recurring,
			recurrence = EXCLUDED.recurrence,
			assigned_user_ids = EXCLUDED.assigned_user_ids,
			type = EXCLUDED.type`,
		task.ID, task.Title, recurrence.DateOf(task.DueDate), task.IsRecurring, ruleJSON,
		nonNil(task.AssignedUserIDs), string(task.Type))
	return wrapErr("put task", err)
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return wrapErr("delete task", err)
	}
	if tag.RowsAffected() == 0 {
		return &storage.Error{Type: storage.ErrNotFound, Message: "task not found"}
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context) ([]*storage.Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list tasks", err)
	}
	defer rows.Close()

	result := make([]*storage.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, wrapErr("scan task", err)
		}
		result = append(result, task)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate tasks", err)
	}
	return result, nil
}

func scanTask(row pgx.Row) (*storage.Task, error) {
	var (
		task     storage.Task
		ruleJSON []byte
		taskType string
	)
	if err := row.Scan(&task.ID, &task.Title, &task.DueDate, &task.IsRecurring, &ruleJSON,
		&task.AssignedUserIDs, &taskType); err != nil {
		return nil, err
	}
	rule, err := decodeRule(ruleJSON)
	if err != nil {
		return nil, fmt.Errorf("decode recurrence of task %s: %w", task.ID, err)
	}
	task.Recurrence = rule
	task.Type = storage.TaskType(taskType)
	task.DueDate = recurrence.DateOf(task.DueDate)
	return &task, nil
}
