package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantumlife/lifescore/internal/core"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			owner_id TEXT,
			entity_type TEXT,
			entity_id TEXT,
			details TEXT,
			prev_hash TEXT,
			hash TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create ledger table: %v", err)
	}

	return db
}

func TestStore_Append(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	entry, err := store.Append(ActionEventProcessed, ActorUser, "user-1", "event", "evt-1", map[string]interface{}{
		"type": "habit",
	})
	if err != nil {
		t.Fatalf("Failed to append first entry: %v", err)
	}

	if entry.PrevHash != Genesis {
		t.Errorf("First entry should have genesis prev_hash, got %s", entry.PrevHash)
	}
	if entry.Hash == "" {
		t.Error("Entry hash should not be empty")
	}

	entry2, err := store.Append(ActionEventReversed, ActorUser, "user-1", "event", "evt-1", nil)
	if err != nil {
		t.Fatalf("Failed to append second entry: %v", err)
	}
	if entry2.PrevHash != entry.Hash {
		t.Errorf("Second entry prev_hash should match first entry hash")
	}
}

func TestStore_VerifyChain_Valid(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	for i := 0; i < 10; i++ {
		_, err := store.Append(ActionEventProcessed, ActorUser, "user-1", "event", "evt-"+string(rune('0'+i)), nil)
		if err != nil {
			t.Fatalf("Failed to append entry %d: %v", i, err)
		}
	}

	if err := store.VerifyChain(); err != nil {
		t.Errorf("Chain verification should pass: %v", err)
	}
}

func TestStore_VerifyChain_SameTimestamp(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	for i := 0; i < 5; i++ {
		if _, err := store.Append(ActionScoresUpdated, ActorSystem, "user-1", "profile", "user-1", nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := store.VerifyChain(); err != nil {
		t.Errorf("Chain with equal timestamps should verify: %v", err)
	}
}

func TestStore_VerifyChain_Tampered(t *testing.T) {
	tests := []struct {
		name     string
		tamper   string
		wantType string
	}{
		{"hash", "UPDATE ledger SET hash = 'tampered' WHERE action = ?", HashMismatch},
		{"prev hash", "UPDATE ledger SET prev_hash = 'broken' WHERE action = ?", ChainBroken},
		{"details", "UPDATE ledger SET details = '{\"type\":\"health\"}' WHERE action = ?", HashMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			store := NewStore(db)
			store.Append(ActionEventProcessed, ActorUser, "user-1", "event", "evt-1", nil)
			store.Append(ActionEventReversed, ActorUser, "user-1", "event", "evt-1", map[string]string{"type": "habit"})

			if _, err := db.Exec(tt.tamper, ActionEventReversed); err != nil {
				t.Fatalf("Failed to tamper with entry: %v", err)
			}

			err := store.VerifyChain()
			if err == nil {
				t.Fatal("Chain verification should fail after tampering")
			}

			chainErr, ok := err.(*ChainError)
			if !ok {
				t.Fatalf("Expected ChainError, got %T", err)
			}
			if chainErr.Type != tt.wantType {
				t.Errorf("Expected %s error type, got %s", tt.wantType, chainErr.Type)
			}
			if chainErr.EntryNum != 2 {
				t.Errorf("EntryNum = %d, want 2", chainErr.EntryNum)
			}
		})
	}
}

func TestStore_Query(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	store.Append(ActionEventProcessed, ActorUser, "user-1", "event", "evt-1", nil)
	store.Append(ActionScoresUpdated, ActorSystem, "user-1", "profile", "user-1", nil)
	store.Append(ActionEventProcessed, ActorUser, "user-2", "event", "evt-2", nil)
	store.Append(ActionEventReversed, ActorUser, "user-1", "event", "evt-1", nil)

	tests := []struct {
		name string
		opts QueryOptions
		want int
	}{
		{"by action", QueryOptions{Action: ActionEventProcessed}, 2},
		{"by actor", QueryOptions{Actor: ActorSystem}, 1},
		{"by owner", QueryOptions{OwnerID: "user-1"}, 3},
		{"by entity", QueryOptions{EntityType: "event", EntityID: "evt-1"}, 2},
		{"limit", QueryOptions{Limit: 2}, 2},
		{"offset", QueryOptions{Offset: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Query(tt.opts)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}

	newest, _ := store.Query(QueryOptions{Limit: 1})
	if newest[0].Action != ActionEventReversed {
		t.Errorf("newest entry = %s, want %s", newest[0].Action, ActionEventReversed)
	}
}

func TestStore_GetByID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	entry, _ := store.Append(ActionDataPurged, ActorUser, "user-1", "profile", "user-1", map[string]int64{
		"habits": 2,
	})

	retrieved, err := store.GetByID(entry.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("Entry not found")
	}
	if retrieved.Hash != entry.Hash || retrieved.OwnerID != "user-1" {
		t.Errorf("retrieved = %+v, want %+v", retrieved, entry)
	}
	if !retrieved.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", retrieved.Timestamp, entry.Timestamp)
	}

	notFound, err := store.GetByID("non-existent")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if notFound != nil {
		t.Error("Should return nil for non-existent ID")
	}
}

func TestStore_GetSummary(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	empty, err := store.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if empty.TotalEntries != 0 || !empty.ChainValid || empty.FirstEntry != nil {
		t.Errorf("empty summary = %+v", empty)
	}

	store.Append(ActionEventProcessed, ActorUser, "user-1", "event", "evt-1", nil)
	store.Append(ActionScoresUpdated, ActorSystem, "user-1", "profile", "user-1", nil)
	store.Append(ActionScoresUpdated, ActorSystem, "user-1", "profile", "user-1", nil)

	summary, err := store.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.TotalEntries != 3 {
		t.Errorf("Expected 3 total entries, got %d", summary.TotalEntries)
	}
	if !summary.ChainValid {
		t.Errorf("Chain should be valid, error: %s", summary.ChainError)
	}
	if summary.ByAction[ActionScoresUpdated] != 2 {
		t.Errorf("Expected 2 scores.updated actions, got %d", summary.ByAction[ActionScoresUpdated])
	}
	if summary.ByActor[ActorSystem] != 2 {
		t.Errorf("Expected 2 system actions, got %d", summary.ByActor[ActorSystem])
	}
	if summary.FirstEntry == nil || summary.LastEntry == nil || summary.LastEntry.Before(*summary.FirstEntry) {
		t.Errorf("time range = %v .. %v", summary.FirstEntry, summary.LastEntry)
	}
}

func TestRecorder(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)
	recorder := NewRecorder(store)
	ctx := context.Background()

	event := &core.LifeEvent{
		ID:      "evt-1",
		OwnerID: "user-1",
		Type:    core.EventHabit,
		Impact:  core.ImpactPositive,
		Refs:    core.RollbackRefs{{Kind: core.RefHabit, ID: "habit-1"}},
	}

	if err := recorder.RecordEventProcessed(ctx, event); err != nil {
		t.Fatalf("RecordEventProcessed failed: %v", err)
	}
	if err := recorder.RecordEventReversed(ctx, event, event.Refs); err != nil {
		t.Fatalf("RecordEventReversed failed: %v", err)
	}
	if err := recorder.RecordScoresUpdated(ctx, "user-1", core.ScoreSet{Habit: 7, Life: 1}); err != nil {
		t.Fatalf("RecordScoresUpdated failed: %v", err)
	}
	if err := recorder.WithActor(ActorSystem).RecordDataPurged(ctx, "user-1", map[string]int64{"life_events": 3}); err != nil {
		t.Fatalf("RecordDataPurged failed: %v", err)
	}

	history, err := store.OwnerHistory("user-1")
	if err != nil {
		t.Fatalf("OwnerHistory failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(history))
	}
	if history[0].Action != ActionDataPurged || history[0].Actor != ActorSystem {
		t.Errorf("newest entry = %s by %s", history[0].Action, history[0].Actor)
	}

	processed, _ := store.Query(QueryOptions{Action: ActionEventProcessed})
	var details struct {
		Type string   `json:"type"`
		Refs []string `json:"refs"`
	}
	if err := json.Unmarshal([]byte(processed[0].Details), &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details.Type != "habit" || len(details.Refs) != 1 || details.Refs[0] != "habit" {
		t.Errorf("details = %+v", details)
	}

	if err := store.VerifyChain(); err != nil {
		t.Errorf("VerifyChain after recorder writes: %v", err)
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	entry := &Entry{
		ID:         "test-id",
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Action:     ActionEventProcessed,
		Actor:      ActorUser,
		OwnerID:    "user-1",
		EntityType: "event",
		EntityID:   "evt-1",
		Details:    `{"key":"value"}`,
		PrevHash:   "prev-hash-value",
	}

	hash1 := computeHash(entry)
	hash2 := computeHash(entry)
	if hash1 != hash2 {
		t.Error("Hash should be deterministic")
	}

	// Same instant in another zone hashes the same
	entry.Timestamp = entry.Timestamp.In(time.FixedZone("CET", 3600))
	if computeHash(entry) != hash1 {
		t.Error("Hash should not depend on the timestamp's location")
	}

	entry.OwnerID = "user-2"
	if computeHash(entry) == hash1 {
		t.Error("Hash should change when entry changes")
	}
}
