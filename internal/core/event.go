package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// LIFE EVENT - The unified, append-only log record
// -----------------------------------------------------------------------------

// EventType classifies a life event
type EventType string

const (
	EventHealth       EventType = "health"
	EventFinancial    EventType = "financial"
	EventHabit        EventType = "habit"
	EventEmotional    EventType = "emotional"
	EventProductivity EventType = "productivity"
	EventSocial       EventType = "social"
	EventSystem       EventType = "system"
)

// EventTypes lists every recognized event type
var EventTypes = []EventType{
	EventHealth, EventFinancial, EventHabit, EventEmotional,
	EventProductivity, EventSocial, EventSystem,
}

// Valid reports whether t is a recognized event type
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Impact is the direction an event pushes wellbeing
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Valid reports whether i is a recognized impact
func (i Impact) Valid() bool {
	switch i {
	case ImpactPositive, ImpactNegative, ImpactNeutral:
		return true
	}
	return false
}

// RefKind names the domain record a rollback reference points at
type RefKind string

// Rollback reference kinds, in the order compensations are applied
const (
	RefHealthLog   RefKind = "health_log"
	RefTransaction RefKind = "transaction"
	RefGoal        RefKind = "goal"
	RefHabit       RefKind = "habit"
)

var refOrder = map[RefKind]int{
	RefHealthLog:   0,
	RefTransaction: 1,
	RefGoal:        2,
	RefHabit:       3,
}

// Valid reports whether k is a recognized reference kind
func (k RefKind) Valid() bool {
	_, ok := refOrder[k]
	return ok
}

// Legacy metadata keys that carried back-references before refs were typed
const (
	MetaLogID         = "logId"
	MetaTransactionID = "transactionId"
	MetaGoalID        = "goalId"
	MetaHabitID       = "habitId"
)

var metaKeyKinds = []struct {
	key  string
	kind RefKind
}{
	{MetaLogID, RefHealthLog},
	{MetaTransactionID, RefTransaction},
	{MetaGoalID, RefGoal},
	{MetaHabitID, RefHabit},
}

// RollbackRef is a typed back-reference from an event to the record it touched
type RollbackRef struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

// RollbackRefs is an ordered set of references, at most one per kind.
// An event may carry several; reversal applies every one of them.
type RollbackRefs []RollbackRef

// Add inserts a reference keeping rule order. A second ref of the same kind is rejected.
func (r *RollbackRefs) Add(kind RefKind, id string) error {
	if !kind.Valid() {
		return NewValidationError("refs", fmt.Sprintf("unknown reference kind %q", kind))
	}
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "refs", Reason: fmt.Sprintf("%s reference has empty id", kind), Err: ErrMissingRequired}
	}
	if _, ok := r.Get(kind); ok {
		return &ValidationError{Field: "refs", Reason: string(kind), Err: ErrDuplicateRefKind}
	}
	*r = append(*r, RollbackRef{Kind: kind, ID: id})
	sort.SliceStable(*r, func(i, j int) bool {
		return refOrder[(*r)[i].Kind] < refOrder[(*r)[j].Kind]
	})
	return nil
}

// Get returns the id referenced for kind
func (r RollbackRefs) Get(kind RefKind) (string, bool) {
	for _, ref := range r {
		if ref.Kind == kind {
			return ref.ID, true
		}
	}
	return "", false
}

// Validate checks kinds, ids and uniqueness
func (r RollbackRefs) Validate() error {
	var check RollbackRefs
	for _, ref := range r {
		if err := check.Add(ref.Kind, ref.ID); err != nil {
			return err
		}
	}
	return nil
}

// Normalized returns a copy sorted in rule order
func (r RollbackRefs) Normalized() RollbackRefs {
	out := make(RollbackRefs, len(r))
	copy(out, r)
	sort.SliceStable(out, func(i, j int) bool {
		return refOrder[out[i].Kind] < refOrder[out[j].Kind]
	})
	return out
}

// RefsFromMetadata lifts the legacy string-keyed back-references out of a
// metadata bag. Non-reference keys are ignored.
func RefsFromMetadata(meta map[string]any) (RollbackRefs, error) {
	var refs RollbackRefs
	for _, mk := range metaKeyKinds {
		raw, ok := meta[mk.key]
		if !ok || raw == nil {
			continue
		}
		id, ok := raw.(string)
		if !ok {
			return nil, NewValidationError("metadata."+mk.key, "must be a string")
		}
		if err := refs.Add(mk.kind, id); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

// LifeEvent is one recorded life occurrence. It is never updated in place;
// it only disappears through reversal or purge.
type LifeEvent struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	Type         EventType      `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	NumericValue *float64       `json:"numeric_value,omitempty"`
	Impact       Impact         `json:"impact"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Refs         RollbackRefs   `json:"refs,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// EventDraft is an event before the kernel assigns id, owner and time
type EventDraft struct {
	Type         EventType      `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	NumericValue *float64       `json:"numeric_value,omitempty"`
	Impact       Impact         `json:"impact,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Refs         RollbackRefs   `json:"refs,omitempty"`
	Timestamp    *time.Time     `json:"timestamp,omitempty"`
}

// Validate checks the draft's type, impact and references
func (d EventDraft) Validate() error {
	if !d.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("%q is not a recognized event type", d.Type), Err: ErrUnknownEventType}
	}
	if d.Impact != "" && !d.Impact.Valid() {
		return NewValidationError("impact", fmt.Sprintf("%q is not one of positive, negative, neutral", d.Impact))
	}
	return d.Refs.Validate()
}

// NormalizeTags trims, deduplicates and sorts tags
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Float returns a pointer to v, for NumericValue
func Float(v float64) *float64 {
	return &v
}
