package kernel_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/lifescore/internal/cache"
	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/kernel"
	"github.com/quantumlife/lifescore/internal/ledger"
	"github.com/quantumlife/lifescore/internal/storage"
	"github.com/quantumlife/lifescore/internal/testutil"
)

// Monday..Thursday of the reference week
var (
	mon = testutil.Monday
	tue = mon.AddDate(0, 0, 1)
	wed = mon.AddDate(0, 0, 2)
	thu = mon.AddDate(0, 0, 3)
)

type env struct {
	db     *storage.DB
	stores kernel.Stores
	cache  *cache.Memory
	ledger *ledger.Store
	clock  *testutil.Clock
	kernel *kernel.Kernel
	owner  string
}

func storesFor(db *storage.DB) kernel.Stores {
	return kernel.Stores{
		Events:        storage.NewEventStore(db),
		Profiles:      storage.NewProfileStore(db),
		Habits:        storage.NewHabitStore(db),
		Goals:         storage.NewGoalStore(db),
		Tasks:         storage.NewTaskStore(db),
		HealthLogs:    storage.NewHealthLogStore(db),
		Transactions:  storage.NewTransactionStore(db),
		Relationships: storage.NewRelationshipStore(db),
	}
}

func newEnv(t *testing.T, now time.Time, override ...func(*kernel.Stores)) *env {
	t.Helper()

	db := testutil.TestDB(t)
	e := &env{
		db:     db,
		stores: storesFor(db),
		cache:  cache.NewMemory(),
		ledger: ledger.NewStore(db.Conn()),
		clock:  testutil.NewClock(now),
	}
	for _, fn := range override {
		fn(&e.stores)
	}

	k, err := kernel.New(kernel.Config{
		Stores:  e.stores,
		Cache:   e.cache,
		Auditor: ledger.NewRecorder(e.ledger),
		Now:     e.clock.Now,
	})
	require.NoError(t, err)
	e.kernel = k
	e.owner = testutil.CreateProfile(t, db).ID
	return e
}

func (e *env) habit(t *testing.T, id string) *core.Habit {
	t.Helper()
	h, err := e.stores.Habits.GetByID(context.Background(), e.owner, id)
	require.NoError(t, err)
	return h
}

// completeHabit does what the habit controller does before notifying the kernel
func (e *env) completeHabit(t *testing.T, id string, at time.Time) *core.LifeEvent {
	t.Helper()
	ctx := context.Background()

	h := e.habit(t, id)
	require.NoError(t, h.Complete(at))
	require.NoError(t, e.stores.Habits.Update(ctx, h))

	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type:     core.EventHabit,
		Title:    "Completed " + h.Name,
		Impact:   core.ImpactPositive,
		Metadata: map[string]any{core.MetaHabitID: h.ID},
	})
	require.NoError(t, err)
	return ev
}

func historyDays(h *core.Habit) []string {
	days := make([]string, 0, len(h.History))
	for _, entry := range h.History {
		days = append(days, entry.Date.UTC().Format("2006-01-02"))
	}
	return days
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func TestNew_RequiresEveryStore(t *testing.T) {
	_, err := kernel.New(kernel.Config{})
	assert.Error(t, err)

	stores := storesFor(testutil.TestDB(t))
	stores.Tasks = nil
	_, err = kernel.New(kernel.Config{Stores: stores})
	assert.Error(t, err)
}

func TestProcessEvent_Defaults(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type:  core.EventEmotional,
		Title: "  Feeling calm ",
		Tags:  []string{"Mood", "mood ", "", "evening"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, e.owner, ev.OwnerID)
	assert.Equal(t, "Feeling calm", ev.Title)
	assert.Equal(t, core.ImpactNeutral, ev.Impact)
	assert.Equal(t, []string{"evening", "mood"}, ev.Tags)
	assert.True(t, ev.Timestamp.Equal(wed), "timestamp = %v", ev.Timestamp)
	assert.Empty(t, ev.Refs)

	stored, err := storage.NewEventStore(e.db).GetByID(ctx, e.owner, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Type, stored.Type)
	assert.True(t, stored.Timestamp.Equal(ev.Timestamp))
}

func TestProcessEvent_ExplicitTimestamp(t *testing.T) {
	e := newEnv(t, wed)

	ev, err := e.kernel.ProcessEvent(context.Background(), e.owner, core.EventDraft{
		Type:      core.EventHealth,
		Timestamp: &mon,
	})
	require.NoError(t, err)
	assert.True(t, ev.Timestamp.Equal(mon))
}

func TestProcessEvent_MergesLegacyMetadata(t *testing.T) {
	e := newEnv(t, wed)

	ev, err := e.kernel.ProcessEvent(context.Background(), e.owner, core.EventDraft{
		Type: core.EventFinancial,
		Refs: core.RollbackRefs{{Kind: core.RefTransaction, ID: "tx-1"}},
		Metadata: map[string]any{
			core.MetaTransactionID: "tx-1",
			core.MetaGoalID:        "goal-1",
			"note":                 "ignored",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, core.RollbackRefs{
		{Kind: core.RefTransaction, ID: "tx-1"},
		{Kind: core.RefGoal, ID: "goal-1"},
	}, ev.Refs)
}

func TestProcessEvent_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		draft   core.EventDraft
		wantErr error
	}{
		{
			name:    "unknown type",
			draft:   core.EventDraft{Type: "vacation"},
			wantErr: core.ErrUnknownEventType,
		},
		{
			name:    "empty type",
			draft:   core.EventDraft{},
			wantErr: core.ErrUnknownEventType,
		},
		{
			name:    "missing owner",
			owner:   " ",
			draft:   core.EventDraft{Type: core.EventHabit},
			wantErr: core.ErrMissingRequired,
		},
		{
			name:    "bad impact",
			draft:   core.EventDraft{Type: core.EventHabit, Impact: "great"},
			wantErr: core.ErrValidation,
		},
		{
			name: "duplicate ref kind",
			draft: core.EventDraft{Type: core.EventHabit, Refs: core.RollbackRefs{
				{Kind: core.RefHabit, ID: "h1"},
				{Kind: core.RefHabit, ID: "h2"},
			}},
			wantErr: core.ErrDuplicateRefKind,
		},
		{
			name: "refs disagree with metadata",
			draft: core.EventDraft{
				Type:     core.EventHabit,
				Refs:     core.RollbackRefs{{Kind: core.RefHabit, ID: "h1"}},
				Metadata: map[string]any{core.MetaHabitID: "h2"},
			},
			wantErr: core.ErrDuplicateRefKind,
		},
		{
			name: "non-string metadata ref",
			draft: core.EventDraft{
				Type:     core.EventHealth,
				Metadata: map[string]any{core.MetaLogID: 42},
			},
			wantErr: core.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, wed)
			owner := e.owner
			if tt.owner != "" {
				owner = tt.owner
			}

			ev, err := e.kernel.ProcessEvent(context.Background(), owner, tt.draft)
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.True(t, core.IsValidation(err), "want ValidationError, got %T: %v", err, err)
			assert.ErrorIs(t, err, tt.wantErr)

			n, err := storage.NewEventStore(e.db).CountByOwner(context.Background(), e.owner)
			require.NoError(t, err)
			assert.Zero(t, n, "rejected drafts are not stored")
		})
	}
}

func TestUpdateLifeScores_NoData(t *testing.T) {
	e := newEnv(t, wed)

	scores, err := e.kernel.UpdateLifeScores(context.Background(), e.owner)
	require.NoError(t, err)
	assert.Equal(t, core.ScoreSet{}, scores)
}

func TestUpdateLifeScores_UnknownOwner(t *testing.T) {
	e := newEnv(t, wed)

	_, err := e.kernel.UpdateLifeScores(context.Background(), "nobody")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestUpdateLifeScores_Idempotent(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	testutil.CreateGoal(t, e.db, e.owner, 40)
	testutil.CreateHealthLog(t, e.db, e.owner, wed)
	testutil.CreateTransaction(t, e.db, e.owner, core.TransactionIncome, 3000, mon)
	testutil.CreateTransaction(t, e.db, e.owner, core.TransactionExpense, 1800, tue)
	testutil.CreateRelationship(t, e.db, e.owner, &tue)

	first, err := e.kernel.UpdateLifeScores(ctx, e.owner)
	require.NoError(t, err)
	second, err := e.kernel.UpdateLifeScores(ctx, e.owner)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.InRange())
	assert.Equal(t, 10, first.Habit)
	assert.Equal(t, 40, first.Goal)
	assert.Equal(t, 70, first.Wealth)
	assert.Equal(t, 100, first.Relationship)

	profile, err := e.stores.Profiles.GetByID(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, first, profile.Scores)
	require.NotNil(t, profile.ScoresComputedAt)
	assert.True(t, profile.ScoresComputedAt.Equal(thu))
}

func TestUpdateLifeScores_Bounds(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	// Overachieving and overspending at once
	testutil.CreateHabit(t, e.db, e.owner, 1, mon, tue, wed)
	testutil.CreateGoal(t, e.db, e.owner, 100)
	testutil.CreateTransaction(t, e.db, e.owner, core.TransactionIncome, 10, mon)
	testutil.CreateTransaction(t, e.db, e.owner, core.TransactionExpense, 5000, tue)
	testutil.CreateRelationship(t, e.db, e.owner, nil)

	scores, err := e.kernel.UpdateLifeScores(ctx, e.owner)
	require.NoError(t, err)
	assert.True(t, scores.InRange(), "scores = %+v", scores)
	assert.Equal(t, 100, scores.Habit)
	assert.Equal(t, 0, scores.Wealth)
	assert.Equal(t, 0, scores.Relationship)
}

func TestScores_LazyRecompute(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	testutil.CreateGoal(t, e.db, e.owner, 50)

	first, err := e.kernel.Scores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 50, first.Scores.Goal)
	assert.True(t, first.ComputedAt.Equal(wed))
	assert.Equal(t, 1, e.cache.Len())

	// Domain state changes without an event: cached scores stay stale
	testutil.CreateGoal(t, e.db, e.owner, 100)
	e.clock.Advance(time.Hour)

	stale, err := e.kernel.Scores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, first, stale)

	e.kernel.Invalidate(ctx, e.owner)
	assert.Zero(t, e.cache.Len())

	fresh, err := e.kernel.Scores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 75, fresh.Scores.Goal)
	assert.True(t, fresh.ComputedAt.Equal(wed.Add(time.Hour)))
}

// listHookRelationships runs onList once before listing. Relationships are
// the last records a recompute reads.
type listHookRelationships struct {
	kernel.RelationshipRepository
	onList func()
}

func (r *listHookRelationships) ListByOwner(ctx context.Context, ownerID string) ([]*core.Relationship, error) {
	if fn := r.onList; fn != nil {
		r.onList = nil
		fn()
	}
	return r.RelationshipRepository.ListByOwner(ctx, ownerID)
}

func TestScores_InvalidatedDuringRecompute(t *testing.T) {
	hooked := &listHookRelationships{}
	e := newEnv(t, wed, func(s *kernel.Stores) {
		hooked.RelationshipRepository = s.Relationships
		s.Relationships = hooked
	})
	ctx := context.Background()

	testutil.CreateGoal(t, e.db, e.owner, 50)
	hooked.onList = func() {
		testutil.CreateGoal(t, e.db, e.owner, 100)
		e.kernel.Invalidate(ctx, e.owner)
	}

	first, err := e.kernel.Scores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 50, first.Scores.Goal, "goal list read before the hook")
	assert.Zero(t, e.cache.Len(), "scores from before the invalidation are not cached")

	second, err := e.kernel.Scores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 75, second.Scores.Goal)
	assert.Equal(t, 1, e.cache.Len())
}

func TestProcessEvent_InvalidatesScores(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	_, err := e.kernel.Scores(ctx, e.owner)
	require.NoError(t, err)
	require.Equal(t, 1, e.cache.Len())

	_, err = e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{Type: core.EventSystem})
	require.NoError(t, err)
	assert.Zero(t, e.cache.Len())

	// Processing never writes scores onto the profile
	profile, err := e.stores.Profiles.GetByID(ctx, e.owner)
	require.NoError(t, err)
	assert.True(t, profile.ScoresComputedAt.Equal(wed))
}

func TestReverseEvent_Habit(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	require.Equal(t, 3, h.Streak)

	ev := e.completeHabit(t, h.ID, thu)
	completed := e.habit(t, h.ID)
	require.Equal(t, 4, completed.Streak)
	require.Equal(t, 4, completed.BestStreak)

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	got := e.habit(t, h.ID)
	assert.Equal(t, 3, got.Streak)
	assert.Equal(t, 3, got.BestStreak)
	assert.Equal(t, []string{day(mon), day(tue), day(wed)}, historyDays(got))
	require.NotNil(t, got.LastCompleted)
	assert.Equal(t, day(wed), day(got.LastCompleted.UTC()))
}

func TestReverseEvent_SingleUse(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	ev := e.completeHabit(t, h.ID, thu)

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	err := e.kernel.ReverseEvent(ctx, e.owner, ev.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)

	got := e.habit(t, h.ID)
	assert.Equal(t, 3, got.Streak, "exactly one decrement")
	assert.Len(t, got.History, 3)
}

func TestReverseEvent_ConcurrentCallsCompensateOnce(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	ev := e.completeHabit(t, h.ID, thu)

	var wins, notFound atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.kernel.ReverseEvent(ctx, e.owner, ev.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case core.IsNotFound(err):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(5), notFound.Load())
	assert.Equal(t, 3, e.habit(t, h.ID).Streak)
}

func TestReverseEvent_ConcreteScenario(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue)
	require.Equal(t, 2, h.Streak)

	ev := e.completeHabit(t, h.ID, wed)
	completed := e.habit(t, h.ID)
	assert.Equal(t, 3, completed.Streak)
	assert.Equal(t, []string{day(mon), day(tue), day(wed)}, historyDays(completed))

	scores, err := e.kernel.UpdateLifeScores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 10, scores.Habit)

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	reversed := e.habit(t, h.ID)
	assert.Equal(t, 2, reversed.Streak)
	assert.Equal(t, []string{day(mon), day(tue)}, historyDays(reversed))

	profile, err := e.stores.Profiles.GetByID(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 7, profile.Scores.Habit, "reversal refreshes the profile")
}

func TestReverseEvent_Goal(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	g := testutil.CreateGoal(t, e.db, e.owner, 60)
	_, err := g.SetProgress(100, wed)
	require.NoError(t, err)
	require.NoError(t, e.stores.Goals.Update(ctx, g))

	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type: core.EventProductivity,
		Refs: core.RollbackRefs{{Kind: core.RefGoal, ID: g.ID}},
	})
	require.NoError(t, err)

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	got, err := e.stores.Goals.GetByID(ctx, e.owner, g.ID)
	require.NoError(t, err)
	assert.Equal(t, core.GoalActive, got.Status)
	assert.Equal(t, core.GoalRollbackProgress, got.Progress)
	assert.Nil(t, got.CompletedAt)

	profile, err := e.stores.Profiles.GetByID(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 90, profile.Scores.Goal)
}

func TestReverseEvent_AppliesEveryRef(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed, thu)
	log := testutil.CreateHealthLog(t, e.db, e.owner, thu)
	tx := testutil.CreateTransaction(t, e.db, e.owner, core.TransactionExpense, 12.5, thu)

	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type: core.EventHealth,
		Refs: core.RollbackRefs{
			{Kind: core.RefHabit, ID: h.ID},
			{Kind: core.RefTransaction, ID: tx.ID},
		},
		Metadata: map[string]any{core.MetaLogID: log.ID},
	})
	require.NoError(t, err)
	require.Len(t, ev.Refs, 3)

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	_, err = storage.NewHealthLogStore(e.db).GetByID(ctx, e.owner, log.ID)
	assert.True(t, core.IsNotFound(err), "health log deleted")
	_, err = storage.NewTransactionStore(e.db).GetByID(ctx, e.owner, tx.ID)
	assert.True(t, core.IsNotFound(err), "transaction deleted")
	assert.Equal(t, 3, e.habit(t, h.ID).Streak)
}

func TestReverseEvent_SkipsMissingRef(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	log := testutil.CreateHealthLog(t, e.db, e.owner, wed)
	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type: core.EventHealth,
		Refs: core.RollbackRefs{
			{Kind: core.RefHealthLog, ID: log.ID},
			{Kind: core.RefHabit, ID: "habit-gone"},
		},
	})
	require.NoError(t, err)

	// The record was removed out of band before the reversal
	require.NoError(t, storage.NewHealthLogStore(e.db).Delete(ctx, e.owner, log.ID))

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	_, err = storage.NewEventStore(e.db).GetByID(ctx, e.owner, ev.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestReverseEvent_EmptyHabitHistory(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30)
	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type: core.EventHabit,
		Refs: core.RollbackRefs{{Kind: core.RefHabit, ID: h.ID}},
	})
	require.NoError(t, err)

	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))

	got := e.habit(t, h.ID)
	assert.Zero(t, got.Streak)
	assert.Empty(t, got.History)
	assert.Nil(t, got.LastCompleted)
}

func TestReverseEvent_OtherOwner(t *testing.T) {
	e := newEnv(t, wed)
	ctx := context.Background()

	other := testutil.CreateProfile(t, e.db)
	ev, err := e.kernel.ProcessEvent(ctx, other.ID, core.EventDraft{Type: core.EventSocial})
	require.NoError(t, err)

	err = e.kernel.ReverseEvent(ctx, e.owner, ev.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)

	_, err = storage.NewEventStore(e.db).GetByID(ctx, other.ID, ev.ID)
	assert.NoError(t, err, "event survives a reversal by another owner")
}

type failingHealthLogs struct {
	kernel.HealthLogRepository
}

func (failingHealthLogs) Delete(context.Context, string, string) error {
	return core.NewStoreUnavailableError("delete health log", errors.New("disk I/O error"))
}

func TestReverseEvent_PartialFailure(t *testing.T) {
	e := newEnv(t, thu, func(s *kernel.Stores) {
		s.HealthLogs = failingHealthLogs{s.HealthLogs}
	})
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	log := testutil.CreateHealthLog(t, e.db, e.owner, wed)
	ev, err := e.kernel.ProcessEvent(ctx, e.owner, core.EventDraft{
		Type: core.EventHealth,
		Refs: core.RollbackRefs{
			{Kind: core.RefHealthLog, ID: log.ID},
			{Kind: core.RefHabit, ID: h.ID},
		},
	})
	require.NoError(t, err)

	err = e.kernel.ReverseEvent(ctx, e.owner, ev.ID)
	require.Error(t, err)
	assert.True(t, core.IsStoreUnavailable(err), "got %v", err)

	// The remaining compensations still ran and the event is gone
	assert.Equal(t, 2, e.habit(t, h.ID).Streak)
	_, err = storage.NewHealthLogStore(e.db).GetByID(ctx, e.owner, log.ID)
	assert.NoError(t, err, "failed compensation leaves the record in place")
	_, err = storage.NewEventStore(e.db).GetByID(ctx, e.owner, ev.ID)
	assert.True(t, core.IsNotFound(err))

	profile, err := e.stores.Profiles.GetByID(ctx, e.owner)
	require.NoError(t, err)
	require.NotNil(t, profile.ScoresComputedAt, "scores refreshed despite the failure")
}

func TestPurgeAll(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	testutil.CreateGoal(t, e.db, e.owner, 80)
	testutil.CreateHealthLog(t, e.db, e.owner, wed)
	testutil.CreateTransaction(t, e.db, e.owner, core.TransactionIncome, 100, wed)
	testutil.CreateRelationship(t, e.db, e.owner, &wed)
	e.completeHabit(t, h.ID, thu)

	other := testutil.CreateProfile(t, e.db)
	otherGoal := testutil.CreateGoal(t, e.db, other.ID, 50)

	before, err := e.kernel.UpdateLifeScores(ctx, e.owner)
	require.NoError(t, err)
	require.NotZero(t, before.Life)

	require.NoError(t, e.kernel.PurgeAll(ctx, e.owner))

	profile, err := e.stores.Profiles.GetByID(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, core.ScoreSet{}, profile.Scores)

	after, err := e.kernel.UpdateLifeScores(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, core.ScoreSet{}, after)

	n, err := storage.NewEventStore(e.db).CountByOwner(ctx, e.owner)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = e.stores.Goals.GetByID(ctx, other.ID, otherGoal.ID)
	assert.NoError(t, err, "purge is scoped to one owner")
}

func TestPurgeAll_UnknownOwner(t *testing.T) {
	e := newEnv(t, wed)

	err := e.kernel.PurgeAll(context.Background(), "nobody")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestKernel_AuditTrail(t *testing.T) {
	e := newEnv(t, thu)
	ctx := context.Background()

	h := testutil.CreateHabit(t, e.db, e.owner, 30, mon, tue, wed)
	ev := e.completeHabit(t, h.ID, thu)
	require.NoError(t, e.kernel.ReverseEvent(ctx, e.owner, ev.ID))
	require.NoError(t, e.kernel.PurgeAll(ctx, e.owner))

	history, err := e.ledger.OwnerHistory(e.owner)
	require.NoError(t, err)

	var actions []string
	for i := len(history) - 1; i >= 0; i-- {
		actions = append(actions, history[i].Action)
	}
	assert.Equal(t, []string{
		ledger.ActionEventProcessed,
		ledger.ActionEventReversed,
		ledger.ActionScoresUpdated,
		ledger.ActionDataPurged,
		ledger.ActionScoresUpdated,
	}, actions)

	assert.NoError(t, e.ledger.VerifyChain())
}
