package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const goalColumns = `id, owner_id, title, description, category, progress, status, target_date, completed_at, created_at, updated_at`

// GoalStore handles goal persistence
type GoalStore struct {
	db *DB
}

// NewGoalStore creates a new goal store
func NewGoalStore(db *DB) *GoalStore {
	return &GoalStore{db: db}
}

// Create stores a new goal
func (s *GoalStore) Create(ctx context.Context, g *core.Goal) error {
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	if g.Status == "" {
		g.Status = core.GoalActive
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.ID, g.OwnerID, g.Title, g.Description, g.Category, g.Progress, g.Status,
		nullableTime(g.TargetDate), nullableTime(g.CompletedAt),
		g.CreatedAt, g.UpdatedAt,
	)
	return unavailable("create goal", err)
}

// GetByID returns an owner's goal
func (s *GoalStore) GetByID(ctx context.Context, ownerID, id string) (*core.Goal, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	g, err := scanGoal(row)
	if err != nil {
		return nil, notFoundOr(err, "goal", id, "get goal")
	}
	return g, nil
}

// ListByOwner returns an owner's goals, optionally filtered by status
func (s *GoalStore) ListByOwner(ctx context.Context, ownerID string, status core.GoalStatus) ([]*core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = ?`
	args := []interface{}{ownerID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list goals", err)
	}
	defer rows.Close()

	var goals []*core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, unavailable("scan goal", err)
		}
		goals = append(goals, g)
	}
	return goals, unavailable("list goals", rows.Err())
}

// Update writes back a goal's mutable fields
func (s *GoalStore) Update(ctx context.Context, g *core.Goal) error {
	g.UpdatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE goals SET
		    title = ?, description = ?, category = ?, progress = ?, status = ?,
		    target_date = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		g.Title, g.Description, g.Category, g.Progress, g.Status,
		nullableTime(g.TargetDate), nullableTime(g.CompletedAt), g.UpdatedAt,
		g.ID, g.OwnerID,
	)
	if err != nil {
		return unavailable("update goal", err)
	}
	return requireAffected(res, "goal", g.ID, "update goal")
}

// Delete removes an owner's goal
func (s *GoalStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return unavailable("delete goal", err)
	}
	return requireAffected(res, "goal", id, "delete goal")
}

// DeleteByOwner removes every goal of an owner
func (s *GoalStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "goals", ownerID)
}

func scanGoal(row scanner) (*core.Goal, error) {
	g := &core.Goal{}
	var description, category sql.NullString
	var targetDate, completedAt sql.NullTime

	err := row.Scan(
		&g.ID, &g.OwnerID, &g.Title, &description, &category, &g.Progress, &g.Status,
		&targetDate, &completedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Description = description.String
	g.Category = category.String
	g.TargetDate = timePtr(targetDate)
	g.CompletedAt = timePtr(completedAt)
	return g, nil
}
