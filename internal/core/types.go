// Package core defines the fundamental types for LifeScore.
// Every other package speaks in these types.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// USER PROFILE - The owner of every record
// -----------------------------------------------------------------------------

// UserProfile is the owner of all domain records and events.
// The score fields are written only by the kernel.
type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`

	Scores           ScoreSet   `json:"scores"`
	ScoresComputedAt *time.Time `json:"scores_computed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// SCORES - Derived wellbeing metrics
// -----------------------------------------------------------------------------

// Score bounds
const (
	MinScore = 0
	MaxScore = 100
)

// ScoreSet holds the six derived scores, each in [0,100]
type ScoreSet struct {
	Life         int `json:"life_score"`
	Health       int `json:"health_score"`
	Wealth       int `json:"wealth_score"`
	Habit        int `json:"habit_score"`
	Goal         int `json:"goal_score"`
	Relationship int `json:"relationship_score"`
}

// Domains returns the five domain scores in a fixed order
func (s ScoreSet) Domains() []int {
	return []int{s.Health, s.Wealth, s.Habit, s.Goal, s.Relationship}
}

// InRange reports whether every score lies within [MinScore, MaxScore]
func (s ScoreSet) InRange() bool {
	for _, v := range append(s.Domains(), s.Life) {
		if v < MinScore || v > MaxScore {
			return false
		}
	}
	return true
}

// CachedScores is a ScoreSet together with the moment it was computed.
// It is only ever replaced by an explicit recompute.
type CachedScores struct {
	Scores     ScoreSet  `json:"scores"`
	ComputedAt time.Time `json:"computed_at"`
}

// -----------------------------------------------------------------------------
// HABIT - Recurring behavior with a streak
// -----------------------------------------------------------------------------

// DefaultHabitTargetDays is used when a habit has no explicit target
const DefaultHabitTargetDays = 30

// HabitEntry is one day in a habit's history
type HabitEntry struct {
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
}

// Habit is a recurring behavior the user tracks.
// Streak never exceeds len(History); LastCompleted mirrors the history tail.
type Habit struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TargetDays  int    `json:"target_days"`
	Active      bool   `json:"active"`

	Streak        int          `json:"streak"`
	BestStreak    int          `json:"best_streak"`
	LastCompleted *time.Time   `json:"last_completed,omitempty"`
	History       []HabitEntry `json:"history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// GOAL - Something with progress toward completion
// -----------------------------------------------------------------------------

// GoalStatus represents the lifecycle of a goal
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalAbandoned GoalStatus = "abandoned"
)

// GoalRollbackProgress is the progress a goal returns to when its completion
// event is reversed. The progress before completion is not retained anywhere.
const GoalRollbackProgress = 90

// Goal tracks progress toward an outcome.
// Status == GoalCompleted implies Progress == 100.
type Goal struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Progress    int        `json:"progress"`
	Status      GoalStatus `json:"status"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a unit of work, optionally attached to a goal
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	GoalID      string     `json:"goal_id,omitempty"`
	Title       string     `json:"title"`
	Done        bool       `json:"done"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// HEALTH - Daily wellbeing log
// -----------------------------------------------------------------------------

// HealthLog is one wellbeing observation
type HealthLog struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Date            time.Time `json:"date"`
	SleepHours      float64   `json:"sleep_hours"`
	Mood            int       `json:"mood"`   // 1-10
	Stress          int       `json:"stress"` // 1-10
	WaterGlasses    int       `json:"water_glasses"`
	ExerciseMinutes int       `json:"exercise_minutes"`
	Notes           string    `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// FINANCE - Money in and out
// -----------------------------------------------------------------------------

// TransactionKind distinguishes income from spending
type TransactionKind string

const (
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

// Transaction is a single financial movement. Amount is always positive.
type Transaction struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Kind        TransactionKind `json:"kind"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`

	CreatedAt time.Time `json:"created_at"`
}

// -----------------------------------------------------------------------------
// RELATIONSHIP - People the user wants to keep in touch with
// -----------------------------------------------------------------------------

// DefaultFrequencyGoalDays is used when a relationship has no contact goal
const DefaultFrequencyGoalDays = 7

// Relationship tracks how recently the user was in touch with someone
type Relationship struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	Name              string     `json:"name"`
	Kind              string     `json:"kind,omitempty"` // family, friend, partner, professional
	FrequencyGoalDays int        `json:"frequency_goal_days"`
	LastInteraction   *time.Time `json:"last_interaction,omitempty"`
	InteractionCount  int        `json:"interaction_count"`
	Notes             string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
