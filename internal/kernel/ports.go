package kernel

import (
	"context"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

// EventLog is the append-only life event store
type EventLog interface {
	Append(ctx context.Context, e *core.LifeEvent) error
	// DeleteIfPresent removes the event in one atomic step and reports whether it existed
	DeleteIfPresent(ctx context.Context, ownerID, id string) (*core.LifeEvent, bool, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// Profiles holds the score fields the kernel owns
type Profiles interface {
	GetByID(ctx context.Context, id string) (*core.UserProfile, error)
	UpdateScores(ctx context.Context, id string, scores core.ScoreSet, computedAt time.Time) error
}

// HabitRepository is the habit store as the kernel sees it
type HabitRepository interface {
	GetByID(ctx context.Context, ownerID, id string) (*core.Habit, error)
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*core.Habit, error)
	Update(ctx context.Context, h *core.Habit) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// GoalRepository is the goal store as the kernel sees it
type GoalRepository interface {
	GetByID(ctx context.Context, ownerID, id string) (*core.Goal, error)
	ListByOwner(ctx context.Context, ownerID string, status core.GoalStatus) ([]*core.Goal, error)
	Update(ctx context.Context, g *core.Goal) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// TaskRepository is only purged by the kernel
type TaskRepository interface {
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// HealthLogRepository is the health log store as the kernel sees it
type HealthLogRepository interface {
	ListSince(ctx context.Context, ownerID string, since time.Time) ([]*core.HealthLog, error)
	Latest(ctx context.Context, ownerID string) (*core.HealthLog, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// TransactionRepository is the transaction store as the kernel sees it
type TransactionRepository interface {
	ListSince(ctx context.Context, ownerID string, since time.Time) ([]*core.Transaction, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// RelationshipRepository is the relationship store as the kernel sees it
type RelationshipRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*core.Relationship, error)
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}

// ScoreCache holds the last computed scores per owner.
// Entries are replaced only by a recompute and dropped by Invalidate.
type ScoreCache interface {
	Get(ctx context.Context, ownerID string) (core.CachedScores, bool, error)
	Set(ctx context.Context, ownerID string, scores core.CachedScores) error
	Invalidate(ctx context.Context, ownerID string) error
}

// Auditor receives a record of every kernel operation
type Auditor interface {
	RecordEventProcessed(ctx context.Context, e *core.LifeEvent) error
	RecordEventReversed(ctx context.Context, e *core.LifeEvent, applied core.RollbackRefs) error
	RecordScoresUpdated(ctx context.Context, ownerID string, scores core.ScoreSet) error
	RecordDataPurged(ctx context.Context, ownerID string, removed map[string]int64) error
}

// Stores groups every store the kernel reads or compensates against
type Stores struct {
	Events        EventLog
	Profiles      Profiles
	Habits        HabitRepository
	Goals         GoalRepository
	Tasks         TaskRepository
	HealthLogs    HealthLogRepository
	Transactions  TransactionRepository
	Relationships RelationshipRepository
}

type noCache struct{}

func (noCache) Get(context.Context, string) (core.CachedScores, bool, error) {
	return core.CachedScores{}, false, nil
}

func (noCache) Set(context.Context, string, core.CachedScores) error {
	return nil
}

func (noCache) Invalidate(context.Context, string) error {
	return nil
}

type noAudit struct{}

func (noAudit) RecordEventProcessed(context.Context, *core.LifeEvent) error {
	return nil
}

func (noAudit) RecordEventReversed(context.Context, *core.LifeEvent, core.RollbackRefs) error {
	return nil
}

func (noAudit) RecordScoresUpdated(context.Context, string, core.ScoreSet) error {
	return nil
}

func (noAudit) RecordDataPurged(context.Context, string, map[string]int64) error {
	return nil
}
