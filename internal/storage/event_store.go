package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

const eventColumns = `id, owner_id, type, title, description, numeric_value, impact, tags, metadata, refs, timestamp`

// EventStore is the append-only life event log
type EventStore struct {
	db *DB
}

// NewEventStore creates a new event store
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// EventQuery filters ListByOwner
type EventQuery struct {
	Type   core.EventType // Filter by event type
	Since  time.Time      // Events at or after this time
	Until  time.Time      // Events at or before this time
	Limit  int            // Maximum events to return
	Offset int            // Skip first N events
}

// Append stores a new event. Events are never updated afterwards.
func (s *EventStore) Append(ctx context.Context, e *core.LifeEvent) error {
	tags, err := json.Marshal(nonNilTags(e.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return core.NewValidationError("metadata", err.Error())
	}
	refs := e.Refs
	if refs == nil {
		refs = core.RollbackRefs{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("marshal refs: %w", err)
	}

	var numeric sql.NullFloat64
	if e.NumericValue != nil {
		numeric = sql.NullFloat64{Float64: *e.NumericValue, Valid: true}
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO life_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.OwnerID, e.Type, e.Title, e.Description, numeric, e.Impact,
		string(tags), string(metadata), string(refsJSON), e.Timestamp.UTC(),
	)
	return unavailable("append event", err)
}

// GetByID returns an owner's event
func (s *EventStore) GetByID(ctx context.Context, ownerID, id string) (*core.LifeEvent, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM life_events WHERE id = ? AND owner_id = ?
	`, id, ownerID)

	e, err := scanEvent(row)
	if err != nil {
		return nil, notFoundOr(err, "event", id, "get event")
	}
	return e, nil
}

// ListByOwner returns an owner's events, newest first
func (s *EventStore) ListByOwner(ctx context.Context, ownerID string, q EventQuery) ([]*core.LifeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM life_events WHERE owner_id = ?`
	args := []interface{}{ownerID}

	if q.Type != "" {
		query += " AND type = ?"
		args = append(args, q.Type)
	}
	if !q.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, q.Until.UTC())
	}

	// rowid breaks ties so equal timestamps keep append order
	query += " ORDER BY timestamp DESC, rowid DESC"

	switch {
	case q.Limit > 0:
		query += " LIMIT ?"
		args = append(args, q.Limit)
	case q.Offset > 0:
		query += " LIMIT -1"
	}
	if q.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer rows.Close()

	var events []*core.LifeEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, unavailable("scan event", err)
		}
		events = append(events, e)
	}
	return events, unavailable("list events", rows.Err())
}

// CountByOwner returns how many events an owner has
func (s *EventStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM life_events WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, unavailable("count events", err)
}

// DeleteIfPresent removes an owner's event in a single statement and returns it.
// The boolean is false when nothing matched, so two concurrent callers can
// never both observe a successful delete.
func (s *EventStore) DeleteIfPresent(ctx context.Context, ownerID, id string) (*core.LifeEvent, bool, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		DELETE FROM life_events WHERE id = ? AND owner_id = ?
		RETURNING `+eventColumns, id, ownerID)

	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("delete event", err)
	}
	return e, true, nil
}

// DeleteByOwner removes every event of an owner
func (s *EventStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteByOwner(ctx, s.db, "life_events", ownerID)
}

func scanEvent(row scanner) (*core.LifeEvent, error) {
	e := &core.LifeEvent{}
	var description sql.NullString
	var numeric sql.NullFloat64
	var tags, metadata, refs string
	var ts timeCol

	err := row.Scan(
		&e.ID, &e.OwnerID, &e.Type, &e.Title, &description, &numeric, &e.Impact,
		&tags, &metadata, &refs, &ts,
	)
	if err != nil {
		return nil, err
	}

	e.Description = description.String
	if numeric.Valid {
		v := numeric.Float64
		e.NumericValue = &v
	}
	e.Timestamp = ts.Time

	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(e.Metadata) == 0 {
		e.Metadata = nil
	}
	if err := json.Unmarshal([]byte(refs), &e.Refs); err != nil {
		return nil, fmt.Errorf("decode refs: %w", err)
	}
	if len(e.Refs) == 0 {
		e.Refs = nil
	}
	return e, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
