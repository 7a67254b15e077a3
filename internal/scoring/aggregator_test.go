package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/lifescore/internal/core"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func timeRef(t time.Time) *time.Time { return &t }

func TestCompute_EmptySnapshotIsZero(t *testing.T) {
	got := New(Config{}).Compute(Snapshot{}, now)
	assert.Equal(t, core.ScoreSet{}, got)
}

func TestHabit(t *testing.T) {
	tests := []struct {
		name   string
		habits []*core.Habit
		want   int
	}{
		{"no habits", nil, 0},
		{"streak 3 of 30", []*core.Habit{{Active: true, Streak: 3, TargetDays: 30}}, 10},
		{"streak 2 of 30", []*core.Habit{{Active: true, Streak: 2, TargetDays: 30}}, 7},
		{"default target", []*core.Habit{{Active: true, Streak: 15}}, 50},
		{"capped at target", []*core.Habit{{Active: true, Streak: 45, TargetDays: 30}}, 100},
		{"inactive ignored", []*core.Habit{
			{Active: true, Streak: 30, TargetDays: 30},
			{Active: false, Streak: 0, TargetDays: 30},
		}, 100},
		{"only inactive", []*core.Habit{{Active: false, Streak: 10}}, 0},
		{"mean of two", []*core.Habit{
			{Active: true, Streak: 10, TargetDays: 10},
			{Active: true, Streak: 0, TargetDays: 10},
		}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Habit(tt.habits))
		})
	}
}

func TestGoal(t *testing.T) {
	assert.Equal(t, 0, Goal(nil))
	assert.Equal(t, 55, Goal([]*core.Goal{{Progress: 10}, {Progress: 100}}))
	assert.Equal(t, 34, Goal([]*core.Goal{{Progress: 33}, {Progress: 34}, {Progress: 34}}))
}

func TestHealth(t *testing.T) {
	agg := New(DefaultConfig())

	perfect := &core.HealthLog{Date: daysAgo(1), SleepHours: 9, Mood: 10, Stress: 1, WaterGlasses: 10}
	worst := &core.HealthLog{Date: daysAgo(1), SleepHours: 0, Mood: 1, Stress: 10, WaterGlasses: 0}

	assert.Equal(t, 0, agg.Health(nil, now))
	assert.Equal(t, 100, agg.Health([]*core.HealthLog{perfect}, now))
	assert.Equal(t, 0, agg.Health([]*core.HealthLog{worst}, now))

	// 8h sleep, mood 7, stress 4, 4 glasses: .3*1 + .3*(6/9) + .2*(6/9) + .2*.5 = .7333
	mid := &core.HealthLog{Date: daysAgo(2), SleepHours: 8, Mood: 7, Stress: 4, WaterGlasses: 4}
	assert.Equal(t, 73, agg.Health([]*core.HealthLog{mid}, now))
}

func TestHealth_WindowAndFallback(t *testing.T) {
	agg := New(DefaultConfig())

	recent := &core.HealthLog{Date: daysAgo(2), SleepHours: 8, Mood: 10, Stress: 1, WaterGlasses: 8}
	stale := &core.HealthLog{Date: daysAgo(30), SleepHours: 0, Mood: 1, Stress: 10, WaterGlasses: 0}

	// The stale log falls outside the window and is ignored
	assert.Equal(t, 100, agg.Health([]*core.HealthLog{recent, stale}, now))

	// With nothing in the window, the most recent log is used
	older := &core.HealthLog{Date: daysAgo(40), SleepHours: 8, Mood: 10, Stress: 1, WaterGlasses: 8}
	assert.Equal(t, 0, agg.Health([]*core.HealthLog{older, stale}, now))
}

func TestHealth_Monotone(t *testing.T) {
	agg := New(DefaultConfig())
	base := core.HealthLog{Date: daysAgo(1), SleepHours: 5, Mood: 5, Stress: 5, WaterGlasses: 3}
	score := func(l core.HealthLog) int { return agg.Health([]*core.HealthLog{&l}, now) }

	b := score(base)

	more := base
	more.SleepHours = 7
	assert.GreaterOrEqual(t, score(more), b, "more sleep")

	happier := base
	happier.Mood = 8
	assert.GreaterOrEqual(t, score(happier), b, "higher mood")

	calmer := base
	calmer.Stress = 2
	assert.GreaterOrEqual(t, score(calmer), b, "lower stress")

	water := base
	water.WaterGlasses = 20
	assert.GreaterOrEqual(t, score(water), b, "more water")
}

func TestWealth(t *testing.T) {
	agg := New(DefaultConfig())
	tx := func(kind core.TransactionKind, amount float64, age int) *core.Transaction {
		return &core.Transaction{Kind: kind, Amount: amount, Date: daysAgo(age)}
	}

	tests := []struct {
		name string
		txs  []*core.Transaction
		want int
	}{
		{"none", nil, 0},
		{"only expenses", []*core.Transaction{tx(core.TransactionExpense, 100, 1)}, 0},
		{"break even", []*core.Transaction{tx(core.TransactionIncome, 1000, 1), tx(core.TransactionExpense, 1000, 2)}, 50},
		{"save everything", []*core.Transaction{tx(core.TransactionIncome, 1000, 1)}, 100},
		{"save 40 percent", []*core.Transaction{tx(core.TransactionIncome, 1000, 1), tx(core.TransactionExpense, 600, 2)}, 70},
		{"overspend clamps", []*core.Transaction{tx(core.TransactionIncome, 100, 1), tx(core.TransactionExpense, 500, 2)}, 0},
		{"outside window", []*core.Transaction{tx(core.TransactionIncome, 1000, 1), tx(core.TransactionExpense, 1000, 45)}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agg.Wealth(tt.txs, now))
		})
	}
}

func TestRelationship(t *testing.T) {
	tests := []struct {
		name string
		rels []*core.Relationship
		want int
	}{
		{"none", nil, 0},
		{"never contacted", []*core.Relationship{{FrequencyGoalDays: 7}}, 0},
		{"within goal", []*core.Relationship{{FrequencyGoalDays: 7, LastInteraction: timeRef(daysAgo(3))}}, 100},
		{"twice overdue", []*core.Relationship{{FrequencyGoalDays: 7, LastInteraction: timeRef(daysAgo(14))}}, 50},
		{"default goal", []*core.Relationship{{LastInteraction: timeRef(daysAgo(28))}}, 25},
		{"mean", []*core.Relationship{
			{FrequencyGoalDays: 7, LastInteraction: timeRef(daysAgo(1))},
			{FrequencyGoalDays: 7},
		}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Relationship(tt.rels, now))
		})
	}
}

func TestLife(t *testing.T) {
	assert.Equal(t, 0, Life(core.ScoreSet{}))
	assert.Equal(t, 20, Life(core.ScoreSet{Habit: 100}))
	assert.Equal(t, 62, Life(core.ScoreSet{Health: 73, Wealth: 70, Habit: 10, Goal: 55, Relationship: 100}))
}

func TestCompute_Deterministic(t *testing.T) {
	agg := New(DefaultConfig())
	snap := Snapshot{
		Habits:        []*core.Habit{{Active: true, Streak: 3, TargetDays: 30}},
		Goals:         []*core.Goal{{Progress: 40}},
		HealthLogs:    []*core.HealthLog{{Date: daysAgo(1), SleepHours: 7, Mood: 6, Stress: 4, WaterGlasses: 5}},
		Transactions:  []*core.Transaction{{Kind: core.TransactionIncome, Amount: 500, Date: daysAgo(3)}},
		Relationships: []*core.Relationship{{LastInteraction: timeRef(daysAgo(2))}},
	}

	first := agg.Compute(snap, now)
	second := agg.Compute(snap, now)
	assert.Equal(t, first, second)
	assert.Equal(t, 10, first.Habit)
	assert.Equal(t, Life(first), first.Life)
}

func TestCompute_BoundsOnRandomState(t *testing.T) {
	agg := New(DefaultConfig())
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		var snap Snapshot
		for j := rng.Intn(4); j > 0; j-- {
			snap.Habits = append(snap.Habits, &core.Habit{
				Active: rng.Intn(2) == 0, Streak: rng.Intn(100), TargetDays: rng.Intn(60),
			})
			snap.Goals = append(snap.Goals, &core.Goal{Progress: rng.Intn(101)})
			snap.HealthLogs = append(snap.HealthLogs, &core.HealthLog{
				Date:         daysAgo(rng.Intn(20)),
				SleepHours:   rng.Float64() * 24,
				Mood:         1 + rng.Intn(10),
				Stress:       1 + rng.Intn(10),
				WaterGlasses: rng.Intn(20),
			})
			kind := core.TransactionIncome
			if rng.Intn(2) == 0 {
				kind = core.TransactionExpense
			}
			snap.Transactions = append(snap.Transactions, &core.Transaction{
				Kind: kind, Amount: 1 + rng.Float64()*5000, Date: daysAgo(rng.Intn(60)),
			})
			rel := &core.Relationship{FrequencyGoalDays: rng.Intn(30)}
			if rng.Intn(3) > 0 {
				rel.LastInteraction = timeRef(daysAgo(rng.Intn(90)))
			}
			snap.Relationships = append(snap.Relationships, rel)
		}

		got := agg.Compute(snap, now)
		require.Truef(t, got.InRange(), "scores out of range: %+v", got)
	}
}

func TestNew_DefaultsZeroWindows(t *testing.T) {
	agg := New(Config{WealthWindow: 90 * day})
	assert.Equal(t, 7*day, agg.Config().HealthWindow)
	assert.Equal(t, 90*day, agg.Config().WealthWindow)
}
