// Package kernel is the event-sourced score engine.
//
// It appends life events, recomputes scores from live domain state on demand,
// and reverses events by applying compensating writes to the records they touched.
// Recomputation is lazy: ingesting an event only invalidates the cached scores.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/logging"
	"github.com/quantumlife/lifescore/internal/metrics"
	"github.com/quantumlife/lifescore/internal/scoring"
)

// Kernel orchestrates event ingestion, score recomputation and rollback
type Kernel struct {
	stores  Stores
	agg     *scoring.Aggregator
	cache   ScoreCache
	auditor Auditor
	now     func() time.Time
	log     *logging.Logger

	// gens counts invalidations per owner. A recompute only caches its result
	// when no invalidation happened since it started reading.
	mu   sync.Mutex
	gens map[string]uint64
}

// Config for kernel
type Config struct {
	Stores     Stores
	Aggregator *scoring.Aggregator // Defaults to scoring.New(scoring.DefaultConfig())
	Cache      ScoreCache          // Optional
	Auditor    Auditor             // Optional
	Now        func() time.Time    // Defaults to time.Now
}

// New creates a kernel. Every store in cfg.Stores is required.
func New(cfg Config) (*Kernel, error) {
	s := cfg.Stores
	if s.Events == nil || s.Profiles == nil || s.Habits == nil || s.Goals == nil ||
		s.Tasks == nil || s.HealthLogs == nil || s.Transactions == nil || s.Relationships == nil {
		return nil, errors.New("kernel: every store must be provided")
	}

	k := &Kernel{
		stores:  s,
		agg:     cfg.Aggregator,
		cache:   cfg.Cache,
		auditor: cfg.Auditor,
		now:     cfg.Now,
		log:     logging.WithField("component", "kernel"),
		gens:    make(map[string]uint64),
	}
	if k.agg == nil {
		k.agg = scoring.New(scoring.DefaultConfig())
	}
	if k.cache == nil {
		k.cache = noCache{}
	}
	if k.auditor == nil {
		k.auditor = noAudit{}
	}
	if k.now == nil {
		k.now = time.Now
	}
	return k, nil
}

// ProcessEvent validates a draft, stamps it and appends it to the event log.
// Scores are not recomputed here; the owner's cached scores are invalidated instead.
func (k *Kernel) ProcessEvent(ctx context.Context, ownerID string, draft core.EventDraft) (*core.LifeEvent, error) {
	if strings.TrimSpace(ownerID) == "" {
		metrics.EventsRejected.WithLabelValues("owner").Inc()
		return nil, &core.ValidationError{Field: "owner_id", Reason: "is required", Err: core.ErrMissingRequired}
	}
	if err := draft.Validate(); err != nil {
		metrics.EventsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	refs, err := mergeRefs(draft.Refs, draft.Metadata)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("refs").Inc()
		return nil, err
	}

	impact := draft.Impact
	if impact == "" {
		impact = core.ImpactNeutral
	}
	ts := k.now().UTC()
	if draft.Timestamp != nil && !draft.Timestamp.IsZero() {
		ts = draft.Timestamp.UTC()
	}

	e := &core.LifeEvent{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Type:         draft.Type,
		Title:        strings.TrimSpace(draft.Title),
		Description:  draft.Description,
		NumericValue: draft.NumericValue,
		Impact:       impact,
		Tags:         core.NormalizeTags(draft.Tags),
		Metadata:     draft.Metadata,
		Refs:         refs,
		Timestamp:    ts,
	}

	if err := k.stores.Events.Append(ctx, e); err != nil {
		return nil, err
	}

	k.invalidate(ctx, ownerID)
	if err := k.auditor.RecordEventProcessed(ctx, e); err != nil {
		k.log.WithField("event_id", e.ID).Warn("audit event.processed failed: %v", err)
	}

	metrics.EventsProcessed.WithLabelValues(string(e.Type)).Inc()
	k.log.WithFields(map[string]interface{}{
		"owner":    ownerID,
		"event_id": e.ID,
		"type":     e.Type,
	}).Debug("event processed")

	return e, nil
}

// UpdateLifeScores recomputes the owner's scores from current domain state,
// persists them on the profile and refreshes the cache.
func (k *Kernel) UpdateLifeScores(ctx context.Context, ownerID string) (core.ScoreSet, error) {
	cached, err := k.recompute(ctx, ownerID)
	return cached.Scores, err
}

// Scores returns the owner's cached scores, recomputing only when none are cached
func (k *Kernel) Scores(ctx context.Context, ownerID string) (core.CachedScores, error) {
	cached, ok, err := k.cache.Get(ctx, ownerID)
	switch {
	case err != nil:
		metrics.ScoreCacheLookups.WithLabelValues("error").Inc()
		k.log.WithField("owner", ownerID).Warn("score cache read failed: %v", err)
	case ok:
		metrics.ScoreCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.ScoreCacheLookups.WithLabelValues("miss").Inc()
	}
	return k.recompute(ctx, ownerID)
}

// Invalidate drops the owner's cached scores. Collaborators call it after
// mutating domain state without emitting an event.
func (k *Kernel) Invalidate(ctx context.Context, ownerID string) {
	k.invalidate(ctx, ownerID)
}

func (k *Kernel) recompute(ctx context.Context, ownerID string) (core.CachedScores, error) {
	start := time.Now()
	gen := k.generation(ownerID)

	if _, err := k.stores.Profiles.GetByID(ctx, ownerID); err != nil {
		return core.CachedScores{}, err
	}

	now := k.now().UTC()
	snap, err := k.snapshot(ctx, ownerID, now)
	if err != nil {
		return core.CachedScores{}, err
	}

	scores := k.agg.Compute(snap, now)
	if err := k.stores.Profiles.UpdateScores(ctx, ownerID, scores, now); err != nil {
		return core.CachedScores{}, err
	}

	cached := core.CachedScores{Scores: scores, ComputedAt: now}
	k.cacheIfCurrent(ctx, ownerID, gen, cached)
	if err := k.auditor.RecordScoresUpdated(ctx, ownerID, scores); err != nil {
		k.log.WithField("owner", ownerID).Warn("audit scores.updated failed: %v", err)
	}

	metrics.ScoreRecomputations.Inc()
	metrics.ScoreComputeDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	k.log.WithFields(map[string]interface{}{
		"owner": ownerID,
		"life":  scores.Life,
	}).Debug("scores updated")

	return cached, nil
}

// snapshot loads the domain state the aggregator reads
func (k *Kernel) snapshot(ctx context.Context, ownerID string, now time.Time) (scoring.Snapshot, error) {
	var snap scoring.Snapshot
	var err error
	cfg := k.agg.Config()

	if snap.Habits, err = k.stores.Habits.ListByOwner(ctx, ownerID, true); err != nil {
		return snap, err
	}
	if snap.Goals, err = k.stores.Goals.ListByOwner(ctx, ownerID, ""); err != nil {
		return snap, err
	}
	if snap.HealthLogs, err = k.stores.HealthLogs.ListSince(ctx, ownerID, now.Add(-cfg.HealthWindow)); err != nil {
		return snap, err
	}
	if len(snap.HealthLogs) == 0 {
		latest, err := k.stores.HealthLogs.Latest(ctx, ownerID)
		if err != nil {
			return snap, err
		}
		if latest != nil {
			snap.HealthLogs = append(snap.HealthLogs, latest)
		}
	}
	if snap.Transactions, err = k.stores.Transactions.ListSince(ctx, ownerID, now.Add(-cfg.WealthWindow)); err != nil {
		return snap, err
	}
	if snap.Relationships, err = k.stores.Relationships.ListByOwner(ctx, ownerID); err != nil {
		return snap, err
	}
	return snap, nil
}

// ReverseEvent deletes an event and compensates every record it references.
//
// The event is claimed with a single delete-if-present, so of two concurrent
// calls exactly one applies the compensations and the other gets NotFound.
// A compensation failure leaves the owner partially compensated and is returned.
func (k *Kernel) ReverseEvent(ctx context.Context, ownerID, eventID string) error {
	e, deleted, err := k.stores.Events.DeleteIfPresent(ctx, ownerID, eventID)
	if err != nil {
		return err
	}
	if !deleted {
		return core.NewNotFoundError("event", eventID)
	}

	log := k.log.WithFields(map[string]interface{}{
		"owner":    ownerID,
		"event_id": eventID,
		"type":     e.Type,
	})

	var applied core.RollbackRefs
	var failures []error
	for _, ref := range e.Refs.Normalized() {
		err := k.compensate(ctx, ownerID, ref)
		switch {
		case err == nil:
			applied = append(applied, ref)
			metrics.Compensations.WithLabelValues(string(ref.Kind), "applied").Inc()
		case core.IsNotFound(err):
			metrics.Compensations.WithLabelValues(string(ref.Kind), "skipped").Inc()
			log.WithField("ref", ref.ID).Warn("%s already gone, nothing to compensate", ref.Kind)
		default:
			metrics.Compensations.WithLabelValues(string(ref.Kind), "failed").Inc()
			failures = append(failures, fmt.Errorf("compensate %s %s: %w", ref.Kind, ref.ID, err))
		}
	}

	k.invalidate(ctx, ownerID)
	if err := k.auditor.RecordEventReversed(ctx, e, applied); err != nil {
		log.Warn("audit event.reversed failed: %v", err)
	}
	metrics.EventsReversed.Inc()

	if len(failures) > 0 {
		log.Error("event reversed with %d failed compensations", len(failures))
	} else {
		log.Info("event reversed, %d compensations applied", len(applied))
	}

	if _, err := k.UpdateLifeScores(ctx, ownerID); err != nil {
		failures = append(failures, fmt.Errorf("refresh scores: %w", err))
	}
	return errors.Join(failures...)
}

// compensate applies the rollback rule for one reference
func (k *Kernel) compensate(ctx context.Context, ownerID string, ref core.RollbackRef) error {
	switch ref.Kind {
	case core.RefHealthLog:
		return k.stores.HealthLogs.Delete(ctx, ownerID, ref.ID)

	case core.RefTransaction:
		return k.stores.Transactions.Delete(ctx, ownerID, ref.ID)

	case core.RefGoal:
		g, err := k.stores.Goals.GetByID(ctx, ownerID, ref.ID)
		if err != nil {
			return err
		}
		g.Reopen()
		return k.stores.Goals.Update(ctx, g)

	case core.RefHabit:
		h, err := k.stores.Habits.GetByID(ctx, ownerID, ref.ID)
		if err != nil {
			return err
		}
		if !h.UndoLast() {
			return nil
		}
		return k.stores.Habits.Update(ctx, h)
	}
	return core.NewValidationError("refs", fmt.Sprintf("unknown reference kind %q", ref.Kind))
}

// PurgeAll deletes every event and domain record of the owner, then recomputes
// scores, which fall to 0. Events are not walked for compensation.
func (k *Kernel) PurgeAll(ctx context.Context, ownerID string) error {
	if _, err := k.stores.Profiles.GetByID(ctx, ownerID); err != nil {
		return err
	}

	steps := []struct {
		name string
		del  func(context.Context, string) (int64, error)
	}{
		{"life_events", k.stores.Events.DeleteByOwner},
		{"health_logs", k.stores.HealthLogs.DeleteByOwner},
		{"transactions", k.stores.Transactions.DeleteByOwner},
		{"tasks", k.stores.Tasks.DeleteByOwner},
		{"goals", k.stores.Goals.DeleteByOwner},
		{"habits", k.stores.Habits.DeleteByOwner},
		{"relationships", k.stores.Relationships.DeleteByOwner},
	}

	removed := make(map[string]int64, len(steps))
	for _, step := range steps {
		n, err := step.del(ctx, ownerID)
		if err != nil {
			k.invalidate(ctx, ownerID)
			return fmt.Errorf("purge %s: %w", step.name, err)
		}
		removed[step.name] = n
	}

	k.invalidate(ctx, ownerID)
	if err := k.auditor.RecordDataPurged(ctx, ownerID, removed); err != nil {
		k.log.WithField("owner", ownerID).Warn("audit data.purged failed: %v", err)
	}
	metrics.Purges.Inc()
	k.log.WithFields(map[string]interface{}{
		"owner":  ownerID,
		"events": removed["life_events"],
	}).Info("owner data purged")

	_, err := k.UpdateLifeScores(ctx, ownerID)
	return err
}

func (k *Kernel) invalidate(ctx context.Context, ownerID string) {
	k.mu.Lock()
	k.gens[ownerID]++
	k.mu.Unlock()

	if err := k.cache.Invalidate(ctx, ownerID); err != nil {
		k.log.WithField("owner", ownerID).Warn("score cache invalidate failed: %v", err)
	}
}

func (k *Kernel) generation(ownerID string) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.gens[ownerID]
}

// cacheIfCurrent stores scores computed at generation gen, or drops them when
// the owner was invalidated since. Check and write happen under one lock.
func (k *Kernel) cacheIfCurrent(ctx context.Context, ownerID string, gen uint64, cached core.CachedScores) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.gens[ownerID] != gen {
		k.log.WithField("owner", ownerID).Debug("scores invalidated during recompute, not cached")
		return
	}
	if err := k.cache.Set(ctx, ownerID, cached); err != nil {
		k.log.WithField("owner", ownerID).Warn("score cache write failed: %v", err)
	}
}

// mergeRefs combines typed refs with the legacy metadata keys.
// The same kind may appear in both only if the ids agree.
func mergeRefs(refs core.RollbackRefs, meta map[string]any) (core.RollbackRefs, error) {
	legacy, err := core.RefsFromMetadata(meta)
	if err != nil {
		return nil, err
	}

	merged := refs.Normalized()
	for _, ref := range legacy {
		if id, ok := merged.Get(ref.Kind); ok {
			if id != ref.ID {
				return nil, &core.ValidationError{
					Field:  "refs",
					Reason: fmt.Sprintf("%s is %q in refs but %q in metadata", ref.Kind, id, ref.ID),
					Err:    core.ErrDuplicateRefKind,
				}
			}
			continue
		}
		if err := merged.Add(ref.Kind, ref.ID); err != nil {
			return nil, err
		}
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownEventType):
		return "type"
	case errors.Is(err, core.ErrDuplicateRefKind), errors.Is(err, core.ErrMissingRequired):
		return "refs"
	}
	return "invalid"
}
