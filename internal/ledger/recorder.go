package ledger

import (
	"context"

	"github.com/quantumlife/lifescore/internal/core"
)

// Recorder writes kernel operations to the ledger.
// Details carry ids, types and counts only, never domain values.
type Recorder struct {
	store *Store
	actor string
}

// NewRecorder creates a recorder for the given store, attributing entries to ActorUser
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store, actor: ActorUser}
}

// WithActor returns a recorder attributing entries to actor
func (r *Recorder) WithActor(actor string) *Recorder {
	return &Recorder{store: r.store, actor: actor}
}

// RecordEventProcessed records an appended life event
func (r *Recorder) RecordEventProcessed(_ context.Context, e *core.LifeEvent) error {
	_, err := r.store.Append(ActionEventProcessed, r.actor, e.OwnerID, "event", e.ID, map[string]interface{}{
		"type":   e.Type,
		"impact": e.Impact,
		"refs":   refKinds(e.Refs),
	})
	return err
}

// RecordEventReversed records a reversal and the compensations it applied
func (r *Recorder) RecordEventReversed(_ context.Context, e *core.LifeEvent, applied core.RollbackRefs) error {
	_, err := r.store.Append(ActionEventReversed, r.actor, e.OwnerID, "event", e.ID, map[string]interface{}{
		"type":        e.Type,
		"compensated": applied,
	})
	return err
}

// RecordScoresUpdated records a score recomputation
func (r *Recorder) RecordScoresUpdated(_ context.Context, ownerID string, scores core.ScoreSet) error {
	_, err := r.store.Append(ActionScoresUpdated, ActorSystem, ownerID, "profile", ownerID, scores)
	return err
}

// RecordDataPurged records a bulk purge with per-table counts
func (r *Recorder) RecordDataPurged(_ context.Context, ownerID string, removed map[string]int64) error {
	_, err := r.store.Append(ActionDataPurged, r.actor, ownerID, "profile", ownerID, removed)
	return err
}

func refKinds(refs core.RollbackRefs) []core.RefKind {
	kinds := make([]core.RefKind, 0, len(refs))
	for _, ref := range refs {
		kinds = append(kinds, ref.Kind)
	}
	return kinds
}
