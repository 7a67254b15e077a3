package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const habitColumns = `id, owner_id, name, description, target_days, active, streak, best_streak, last_completed, history, created_at, updated_at`

// HabitStore handles habit persistence. The completion history is kept as JSON.
type HabitStore struct {
	db *DB
}

// NewHabitStore creates a new habit store
func NewHabitStore(db *DB) *HabitStore {
	return &HabitStore{db: db}
}

// Create stores a new habit
func (s *HabitStore) Create(ctx context.Context, h *core.Habit) error {
	now := time.Now().UTC()
	h.CreatedAt = now
	h.UpdatedAt = now

	history, err := encodeHistory(h.History)
	if err != nil {
		return err
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, h.OwnerID, h.Name, h.Description, h.TargetDays, h.Active,
		h.Streak, h.BestStreak, nullableTime(h.LastCompleted), history,
		h.CreatedAt, h.UpdatedAt,
	)
	return unavailable("create habit", err)
}

// GetByID returns an owner's habit
func (s *HabitStore) GetByID(ctx context.Context, ownerID, id string) (*core.Habit, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+habitColumns+` FROM habits WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	h, err := scanHabit(row)
	if err != nil {
		return nil, notFoundOr(err, "habit", id, "get habit")
	}
	return h, nil
}

// ListByOwner returns an owner's habits. activeOnly drops archived habits.
func (s *HabitStore) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*core.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE owner_id = ?`
	if activeOnly {
		query += " AND active = TRUE"
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.conn.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, unavailable("list habits", err)
	}
	defer rows.Close()

	var habits []*core.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, unavailable("scan habit", err)
		}
		habits = append(habits, h)
	}
	return habits, unavailable("list habits", rows.Err())
}

// Update writes back a habit's mutable fields
func (s *HabitStore) Update(ctx context.Context, h *core.Habit) error {
	h.UpdatedAt = time.Now().UTC()

	history, err := encodeHistory(h.History)
	if err != nil {
		return err
	}

	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE habits SET
		    name = ?, description = ?, target_days = ?, active = ?,
		    streak = ?, best_streak = ?, last_completed = ?, history = ?,
		    updated_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		h.Name, h.Description, h.TargetDays, h.Active,
		h.Streak, h.BestStreak, nullableTime(h.LastCompleted), history,
		h.UpdatedAt,
		h.ID, h.OwnerID,
	)
	if err != nil {
		return unavailable("update habit", err)
	}
	return requireAffected(res, "habit", h.ID, "update habit")
}

// Delete removes an owner's habit
func (s *HabitStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM habits WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return unavailable("delete habit", err)
	}
	return requireAffected(res, "habit", id, "delete habit")
}

// DeleteByOwner removes every habit of an owner
func (s *HabitStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "habits", ownerID)
}

func scanHabit(row scanner) (*core.Habit, error) {
	h := &core.Habit{}
	var description sql.NullString
	var lastCompleted sql.NullTime
	var history string

	err := row.Scan(
		&h.ID, &h.OwnerID, &h.Name, &description, &h.TargetDays, &h.Active,
		&h.Streak, &h.BestStreak, &lastCompleted, &history,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Description = description.String
	h.LastCompleted = timePtr(lastCompleted)
	if err := json.Unmarshal([]byte(history), &h.History); err != nil {
		return nil, fmt.Errorf("decode habit history: %w", err)
	}
	return h, nil
}

func encodeHistory(history []core.HabitEntry) (string, error) {
	if history == nil {
		history = []core.HabitEntry{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode habit history: %w", err)
	}
	return string(data), nil
}

// deleteByOwner is shared by the per-entity purge methods
func deleteByOwner(ctx context.Context, db *DB, table, ownerID string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, unavailable("delete "+table, err)
	}
	n, err := res.RowsAffected()
	return n, unavailable("delete "+table, err)
}
