package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const relationshipColumns = `id, owner_id, name, kind, frequency_goal_days, last_interaction, interaction_count, notes, created_at, updated_at`

// RelationshipStore handles relationship persistence
type RelationshipStore struct {
	db *DB
}

// NewRelationshipStore creates a new relationship store
func NewRelationshipStore(db *DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// Create stores a new relationship
func (s *RelationshipStore) Create(ctx context.Context, r *core.Relationship) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO relationships (`+relationshipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.OwnerID, r.Name, r.Kind, r.FrequencyGoalDays,
		nullableTime(r.LastInteraction), r.InteractionCount, r.Notes,
		r.CreatedAt, r.UpdatedAt,
	)
	return unavailable("create relationship", err)
}

// GetByID returns an owner's relationship
func (s *RelationshipStore) GetByID(ctx context.Context, ownerID, id string) (*core.Relationship, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+relationshipColumns+` FROM relationships WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	r, err := scanRelationship(row)
	if err != nil {
		return nil, notFoundOr(err, "relationship", id, "get relationship")
	}
	return r, nil
}

// ListByOwner returns an owner's relationships
func (s *RelationshipStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Relationship, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT `+relationshipColumns+` FROM relationships WHERE owner_id = ?
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, unavailable("list relationships", err)
	}
	defer rows.Close()

	var rels []*core.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, unavailable("scan relationship", err)
		}
		rels = append(rels, r)
	}
	return rels, unavailable("list relationships", rows.Err())
}

// Update writes back a relationship's mutable fields
func (s *RelationshipStore) Update(ctx context.Context, r *core.Relationship) error {
	r.UpdatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE relationships SET
		    name = ?, kind = ?, frequency_goal_days = ?, last_interaction = ?,
		    interaction_count = ?, notes = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		r.Name, r.Kind, r.FrequencyGoalDays, nullableTime(r.LastInteraction),
		r.InteractionCount, r.Notes, r.UpdatedAt,
		r.ID, r.OwnerID,
	)
	if err != nil {
		return unavailable("update relationship", err)
	}
	return requireAffected(res, "relationship", r.ID, "update relationship")
}

// DeleteByOwner removes every relationship of an owner
func (s *RelationshipStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "relationships", ownerID)
}

func scanRelationship(row scanner) (*core.Relationship, error) {
	r := &core.Relationship{}
	var kind, notes sql.NullString
	var last sql.NullTime

	err := row.Scan(
		&r.ID, &r.OwnerID, &r.Name, &kind, &r.FrequencyGoalDays,
		&last, &r.InteractionCount, &notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = kind.String
	r.Notes = notes.String
	r.LastInteraction = timePtr(last)
	return r, nil
}
