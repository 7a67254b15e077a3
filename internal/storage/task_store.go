package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const taskColumns = `id, owner_id, goal_id, title, done, due_date, completed_at, created_at, updated_at`

// TaskStore handles task persistence
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a new task store
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

// Create stores a new task
func (s *TaskStore) Create(ctx context.Context, t *core.Task) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.OwnerID, nullableString(t.GoalID), t.Title, t.Done,
		nullableTime(t.DueDate), nullableTime(t.CompletedAt),
		t.CreatedAt, t.UpdatedAt,
	)
	return unavailable("create task", err)
}

// GetByID returns an owner's task
func (s *TaskStore) GetByID(ctx context.Context, ownerID, id string) (*core.Task, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundOr(err, "task", id, "get task")
	}
	return t, nil
}

// ListByOwner returns an owner's tasks
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Task, error) {
	return s.list(ctx, `WHERE owner_id = ?`, ownerID)
}

// ListByGoal returns the tasks attached to a goal
func (s *TaskStore) ListByGoal(ctx context.Context, ownerID, goalID string) ([]*core.Task, error) {
	return s.list(ctx, `WHERE owner_id = ? AND goal_id = ?`, ownerID, goalID)
}

func (s *TaskStore) list(ctx context.Context, where string, args ...interface{}) ([]*core.Task, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, unavailable("list tasks", err)
	}
	defer rows.Close()

	var tasks []*core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, unavailable("scan task", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, unavailable("list tasks", rows.Err())
}

// Update writes back a task's mutable fields
func (s *TaskStore) Update(ctx context.Context, t *core.Task) error {
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE tasks SET
		    goal_id = ?, title = ?, done = ?, due_date = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		nullableString(t.GoalID), t.Title, t.Done,
		nullableTime(t.DueDate), nullableTime(t.CompletedAt), t.UpdatedAt,
		t.ID, t.OwnerID,
	)
	if err != nil {
		return unavailable("update task", err)
	}
	return requireAffected(res, "task", t.ID, "update task")
}

// DeleteByOwner removes every task of an owner
func (s *TaskStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "tasks", ownerID)
}

func scanTask(row scanner) (*core.Task, error) {
	t := &core.Task{}
	var goalID sql.NullString
	var dueDate, completedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.OwnerID, &goalID, &t.Title, &t.Done,
		&dueDate, &completedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.GoalID = goalID.String
	t.DueDate = timePtr(dueDate)
	t.CompletedAt = timePtr(completedAt)
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
