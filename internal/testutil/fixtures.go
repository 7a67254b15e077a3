package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/storage"
)

// RandomID generates a random ID for testing.
func RandomID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Monday is a fixed reference day used across tests
var Monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

// CreateProfile stores a profile with a random id.
func CreateProfile(t *testing.T, db *storage.DB) *core.UserProfile {
	t.Helper()
	p := &core.UserProfile{
		ID:    "user-" + RandomID(),
		Name:  "Test User",
		Email: "test@example.com",
	}
	if err := storage.NewProfileStore(db).Create(context.Background(), p); err != nil {
		t.Fatalf("create profile fixture: %v", err)
	}
	return p
}

// CreateHabit stores an active habit completed on each of the given days.
func CreateHabit(t *testing.T, db *storage.DB, ownerID string, targetDays int, completed ...time.Time) *core.Habit {
	t.Helper()
	h := &core.Habit{
		ID:         "habit-" + RandomID(),
		OwnerID:    ownerID,
		Name:       "Meditate",
		TargetDays: targetDays,
		Active:     true,
	}
	for _, day := range completed {
		if err := h.Complete(day); err != nil {
			t.Fatalf("complete habit fixture: %v", err)
		}
	}
	if err := storage.NewHabitStore(db).Create(context.Background(), h); err != nil {
		t.Fatalf("create habit fixture: %v", err)
	}
	return h
}

// CreateGoal stores an active goal at the given progress.
func CreateGoal(t *testing.T, db *storage.DB, ownerID string, progress int) *core.Goal {
	t.Helper()
	g := &core.Goal{
		ID:       "goal-" + RandomID(),
		OwnerID:  ownerID,
		Title:    "Read 12 books",
		Progress: progress,
		Status:   core.GoalActive,
	}
	if err := storage.NewGoalStore(db).Create(context.Background(), g); err != nil {
		t.Fatalf("create goal fixture: %v", err)
	}
	return g
}

// CreateHealthLog stores a health log dated at.
func CreateHealthLog(t *testing.T, db *storage.DB, ownerID string, at time.Time) *core.HealthLog {
	t.Helper()
	l := &core.HealthLog{
		ID:           "log-" + RandomID(),
		OwnerID:      ownerID,
		Date:         at,
		SleepHours:   8,
		Mood:         7,
		Stress:       4,
		WaterGlasses: 4,
	}
	if err := storage.NewHealthLogStore(db).Create(context.Background(), l); err != nil {
		t.Fatalf("create health log fixture: %v", err)
	}
	return l
}

// CreateTransaction stores a transaction dated at.
func CreateTransaction(t *testing.T, db *storage.DB, ownerID string, kind core.TransactionKind, amount float64, at time.Time) *core.Transaction {
	t.Helper()
	tx := &core.Transaction{
		ID:       "tx-" + RandomID(),
		OwnerID:  ownerID,
		Kind:     kind,
		Amount:   amount,
		Category: "general",
		Date:     at,
	}
	if err := storage.NewTransactionStore(db).Create(context.Background(), tx); err != nil {
		t.Fatalf("create transaction fixture: %v", err)
	}
	return tx
}

// CreateRelationship stores a relationship last contacted at last (nil for never).
func CreateRelationship(t *testing.T, db *storage.DB, ownerID string, last *time.Time) *core.Relationship {
	t.Helper()
	r := &core.Relationship{
		ID:                "rel-" + RandomID(),
		OwnerID:           ownerID,
		Name:              "Alex",
		Kind:              "friend",
		FrequencyGoalDays: 7,
		LastInteraction:   last,
	}
	if last != nil {
		r.InteractionCount = 1
	}
	if err := storage.NewRelationshipStore(db).Create(context.Background(), r); err != nil {
		t.Fatalf("create relationship fixture: %v", err)
	}
	return r
}
