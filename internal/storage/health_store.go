package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const healthColumns = `id, owner_id, date, sleep_hours, mood, stress, water_glasses, exercise_minutes, notes, created_at`

// HealthLogStore handles health log persistence
type HealthLogStore struct {
	db *DB
}

// NewHealthLogStore creates a new health log store
func NewHealthLogStore(db *DB) *HealthLogStore {
	return &HealthLogStore{db: db}
}

// Create stores a new health log
func (s *HealthLogStore) Create(ctx context.Context, l *core.HealthLog) error {
	l.CreatedAt = time.Now().UTC()

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO health_logs (`+healthColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.OwnerID, l.Date.UTC(), l.SleepHours, l.Mood, l.Stress,
		l.WaterGlasses, l.ExerciseMinutes, l.Notes, l.CreatedAt,
	)
	return unavailable("create health log", err)
}

// GetByID returns an owner's health log
func (s *HealthLogStore) GetByID(ctx context.Context, ownerID, id string) (*core.HealthLog, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+healthColumns+` FROM health_logs WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	l, err := scanHealthLog(row)
	if err != nil {
		return nil, notFoundOr(err, "health log", id, "get health log")
	}
	return l, nil
}

// ListByOwner returns an owner's health logs, newest first
func (s *HealthLogStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.HealthLog, error) {
	return s.list(ctx, `WHERE owner_id = ?`, ownerID)
}

// ListSince returns the logs dated at or after since, newest first
func (s *HealthLogStore) ListSince(ctx context.Context, ownerID string, since time.Time) ([]*core.HealthLog, error) {
	return s.list(ctx, `WHERE owner_id = ? AND date >= ?`, ownerID, since.UTC())
}

// Latest returns the most recent log, or nil when there are none
func (s *HealthLogStore) Latest(ctx context.Context, ownerID string) (*core.HealthLog, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+healthColumns+` FROM health_logs WHERE owner_id = ?
		ORDER BY date DESC, rowid DESC LIMIT 1
	`, ownerID)

	l, err := scanHealthLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("latest health log", err)
	}
	return l, nil
}

func (s *HealthLogStore) list(ctx context.Context, where string, args ...interface{}) ([]*core.HealthLog, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+healthColumns+` FROM health_logs `+where+` ORDER BY date DESC, rowid DESC`, args...)
	if err != nil {
		return nil, unavailable("list health logs", err)
	}
	defer rows.Close()

	var logs []*core.HealthLog
	for rows.Next() {
		l, err := scanHealthLog(rows)
		if err != nil {
			return nil, unavailable("scan health log", err)
		}
		logs = append(logs, l)
	}
	return logs, unavailable("list health logs", rows.Err())
}

// Delete removes an owner's health log
func (s *HealthLogStore) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM health_logs WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return unavailable("delete health log", err)
	}
	return requireAffected(res, "health log", id, "delete health log")
}

// DeleteByOwner removes every health log of an owner
func (s *HealthLogStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "health_logs", ownerID)
}

func scanHealthLog(row scanner) (*core.HealthLog, error) {
	l := &core.HealthLog{}
	var notes sql.NullString

	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Date, &l.SleepHours, &l.Mood, &l.Stress,
		&l.WaterGlasses, &l.ExerciseMinutes, &notes, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Notes = notes.String
	l.Date = l.Date.UTC()
	return l, nil
}
