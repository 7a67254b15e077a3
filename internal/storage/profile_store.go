package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

// ProfileStore handles user profile persistence, including the stored scores
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a new profile store
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Create creates a new profile with zeroed scores
func (s *ProfileStore) Create(ctx context.Context, p *core.UserProfile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO profiles (id, name, email,
		                      life_score, health_score, wealth_score, habit_score, goal_score, relationship_score,
		                      scores_computed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Name, p.Email,
		p.Scores.Life, p.Scores.Health, p.Scores.Wealth, p.Scores.Habit, p.Scores.Goal, p.Scores.Relationship,
		nullableTime(p.ScoresComputedAt), p.CreatedAt, p.UpdatedAt,
	)
	return unavailable("create profile", err)
}

// GetByID returns a profile by ID
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*core.UserProfile, error) {
	p := &core.UserProfile{}
	var email sql.NullString
	var computedAt sql.NullTime

	err := s.db.conn.QueryRowContext(ctx, `
		SELECT id, name, email,
		       life_score, health_score, wealth_score, habit_score, goal_score, relationship_score,
		       scores_computed_at, created_at, updated_at
		FROM profiles WHERE id = ?
	`, id).Scan(
		&p.ID, &p.Name, &email,
		&p.Scores.Life, &p.Scores.Health, &p.Scores.Wealth, &p.Scores.Habit, &p.Scores.Goal, &p.Scores.Relationship,
		&computedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "profile", id, "get profile")
	}

	p.Email = email.String
	p.ScoresComputedAt = timePtr(computedAt)
	return p, nil
}

// UpdateScores overwrites the six score fields. Only the kernel calls this.
func (s *ProfileStore) UpdateScores(ctx context.Context, id string, scores core.ScoreSet, computedAt time.Time) error {
	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE profiles SET
		    life_score = ?, health_score = ?, wealth_score = ?,
		    habit_score = ?, goal_score = ?, relationship_score = ?,
		    scores_computed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		scores.Life, scores.Health, scores.Wealth,
		scores.Habit, scores.Goal, scores.Relationship,
		computedAt.UTC(), time.Now().UTC(),
		id,
	)
	if err != nil {
		return unavailable("update scores", err)
	}
	return requireAffected(res, "profile", id, "update scores")
}

// List returns every profile, oldest first
func (s *ProfileStore) List(ctx context.Context) ([]*core.UserProfile, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, name, email,
		       life_score, health_score, wealth_score, habit_score, goal_score, relationship_score,
		       scores_computed_at, created_at, updated_at
		FROM profiles ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, unavailable("list profiles", err)
	}
	defer rows.Close()

	var profiles []*core.UserProfile
	for rows.Next() {
		p := &core.UserProfile{}
		var email sql.NullString
		var computedAt sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.Name, &email,
			&p.Scores.Life, &p.Scores.Health, &p.Scores.Wealth, &p.Scores.Habit, &p.Scores.Goal, &p.Scores.Relationship,
			&computedAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, unavailable("scan profile", err)
		}
		p.Email = email.String
		p.ScoresComputedAt = timePtr(computedAt)
		profiles = append(profiles, p)
	}
	return profiles, unavailable("list profiles", rows.Err())
}

// Delete removes a profile
func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return unavailable("delete profile", err)
	}
	return requireAffected(res, "profile", id, "delete profile")
}
