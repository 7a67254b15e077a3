// Package scoring derives the six life scores from a user's current domain records.
//
// The aggregator is pure: it reads a Snapshot and a reference time, and nothing else.
// Every formula is deterministic and bounded to [0,100]. A domain with no data scores 0.
package scoring

import (
	"math"
	"time"

	"github.com/quantumlife/lifescore/internal/core"
)

// Health component weights. They sum to 1.
const (
	weightSleep  = 0.3
	weightMood   = 0.3
	weightStress = 0.2
	weightWater  = 0.2
)

// Healthy caps; anything above counts as full marks
const (
	sleepTargetHours   = 8.0
	waterTargetGlasses = 8.0
)

const day = 24 * time.Hour

// Config tunes the trailing windows
type Config struct {
	HealthWindow time.Duration // Health logs considered, ending at now
	WealthWindow time.Duration // Transactions considered, ending at now
}

// DefaultConfig returns the default windows
func DefaultConfig() Config {
	return Config{
		HealthWindow: 7 * day,
		WealthWindow: 30 * day,
	}
}

// Snapshot is the domain state scores are computed from
type Snapshot struct {
	Habits        []*core.Habit
	Goals         []*core.Goal
	HealthLogs    []*core.HealthLog
	Transactions  []*core.Transaction
	Relationships []*core.Relationship
}

// Aggregator computes ScoreSets
type Aggregator struct {
	cfg Config
}

// New creates an aggregator. Zero windows fall back to the defaults.
func New(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.HealthWindow <= 0 {
		cfg.HealthWindow = def.HealthWindow
	}
	if cfg.WealthWindow <= 0 {
		cfg.WealthWindow = def.WealthWindow
	}
	return &Aggregator{cfg: cfg}
}

// Config returns the effective configuration
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Compute derives every score from snap as of now
func (a *Aggregator) Compute(snap Snapshot, now time.Time) core.ScoreSet {
	s := core.ScoreSet{
		Health:       a.Health(snap.HealthLogs, now),
		Wealth:       a.Wealth(snap.Transactions, now),
		Habit:        Habit(snap.Habits),
		Goal:         Goal(snap.Goals),
		Relationship: Relationship(snap.Relationships, now),
	}
	s.Life = Life(s)
	return s
}

// Health scores the logs inside the health window. When the window is empty
// the most recent log stands in for it.
func (a *Aggregator) Health(logs []*core.HealthLog, now time.Time) int {
	if len(logs) == 0 {
		return 0
	}

	since := now.Add(-a.cfg.HealthWindow)
	var window []*core.HealthLog
	var latest *core.HealthLog
	for _, l := range logs {
		if latest == nil || l.Date.After(latest.Date) {
			latest = l
		}
		if !l.Date.Before(since) && !l.Date.After(now) {
			window = append(window, l)
		}
	}
	if len(window) == 0 {
		window = []*core.HealthLog{latest}
	}

	var total float64
	for _, l := range window {
		total += healthComposite(l)
	}
	return toScore(100 * total / float64(len(window)))
}

// healthComposite folds one log into [0,1]
func healthComposite(l *core.HealthLog) float64 {
	sleep := math.Min(l.SleepHours/sleepTargetHours, 1)
	mood := float64(l.Mood-1) / 9
	stress := float64(10-l.Stress) / 9
	water := math.Min(float64(l.WaterGlasses)/waterTargetGlasses, 1)

	return weightSleep*unit(sleep) +
		weightMood*unit(mood) +
		weightStress*unit(stress) +
		weightWater*unit(water)
}

// Wealth scores the savings rate over the wealth window.
// Breaking even is 50; saving everything is 100; spending double the income is 0.
func (a *Aggregator) Wealth(txs []*core.Transaction, now time.Time) int {
	since := now.Add(-a.cfg.WealthWindow)

	var income, expense float64
	for _, t := range txs {
		if t.Date.Before(since) || t.Date.After(now) {
			continue
		}
		switch t.Kind {
		case core.TransactionIncome:
			income += t.Amount
		case core.TransactionExpense:
			expense += t.Amount
		}
	}

	if income <= 0 {
		return 0
	}
	rate := (income - expense) / income
	return toScore(50 + 50*rate)
}

// Habit averages streak progress toward target across active habits
func Habit(habits []*core.Habit) int {
	var total float64
	n := 0
	for _, h := range habits {
		if !h.Active {
			continue
		}
		total += math.Min(float64(h.Streak)/float64(h.Target()), 1) * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return toScore(total / float64(n))
}

// Goal averages progress across all goals
func Goal(goals []*core.Goal) int {
	if len(goals) == 0 {
		return 0
	}
	var total float64
	for _, g := range goals {
		total += float64(g.Progress)
	}
	return toScore(total / float64(len(goals)))
}

// Relationship averages contact recency against each relationship's goal.
// An overdue contact decays as goal/daysSince; one never contacted scores 0.
func Relationship(rels []*core.Relationship, now time.Time) int {
	if len(rels) == 0 {
		return 0
	}
	var total float64
	for _, r := range rels {
		if r.LastInteraction == nil {
			continue
		}
		goal := float64(r.FrequencyGoal())
		since := now.Sub(*r.LastInteraction).Hours() / 24
		if since <= goal {
			total += 100
			continue
		}
		total += 100 * goal / since
	}
	return toScore(total / float64(len(rels)))
}

// Life is the equal-weighted mean of the five domain scores
func Life(s core.ScoreSet) int {
	var total int
	domains := s.Domains()
	for _, v := range domains {
		total += v
	}
	return toScore(float64(total) / float64(len(domains)))
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

func toScore(v float64) int {
	if math.IsNaN(v) {
		return core.MinScore
	}
	r := int(math.Round(v))
	if r < core.MinScore {
		return core.MinScore
	}
	if r > core.MaxScore {
		return core.MaxScore
	}
	return r
}
