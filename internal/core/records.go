package core

import (
	"fmt"
	"strings"
	"time"
)

// Day truncates t to midnight UTC
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// --- Habit ---

// Target returns the habit's target days, falling back to the default
func (h *Habit) Target() int {
	if h.TargetDays <= 0 {
		return DefaultHabitTargetDays
	}
	return h.TargetDays
}

// Complete records a completion on the day of at.
// Consecutive days extend the streak; a gap restarts it at 1.
func (h *Habit) Complete(at time.Time) error {
	day := Day(at)

	switch {
	case h.LastCompleted == nil:
		h.Streak = 1
	default:
		last := Day(*h.LastCompleted)
		switch {
		case day.Equal(last):
			return &ValidationError{Field: "date", Reason: day.Format("2006-01-02"), Err: ErrAlreadyCompleted}
		case day.Before(last):
			return NewValidationError("date", "completion precedes the last recorded completion")
		case day.Equal(last.AddDate(0, 0, 1)):
			h.Streak++
		default:
			h.Streak = 1
		}
	}

	h.History = append(h.History, HabitEntry{Date: day, Completed: true})
	h.LastCompleted = &day
	if h.Streak > h.BestStreak {
		h.BestStreak = h.Streak
	}
	return nil
}

// UndoLast pops the most recent history entry and decrements the streak.
// It reports false when there is nothing to undo.
func (h *Habit) UndoLast() bool {
	if len(h.History) == 0 {
		return false
	}

	h.History = h.History[:len(h.History)-1]
	if h.Streak > 0 {
		h.Streak--
	}
	if len(h.History) == 0 {
		h.LastCompleted = nil
	} else {
		last := h.History[len(h.History)-1].Date
		h.LastCompleted = &last
	}

	// Best streak is re-derived so a reversed completion cannot leave a record behind
	h.BestStreak = max(longestRun(h.History), h.Streak)
	return true
}

// Validate checks the habit's structural invariants
func (h *Habit) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required", Err: ErrMissingRequired}
	}
	if h.TargetDays < 0 {
		return NewValidationError("target_days", "must not be negative")
	}
	if h.Streak < 0 || h.Streak > len(h.History) {
		return &ValidationError{Field: "streak", Reason: fmt.Sprintf("%d with %d history entries", h.Streak, len(h.History)), Err: ErrStreakExceedsHistory}
	}
	return nil
}

// longestRun finds the longest run of completed, consecutive days
func longestRun(history []HabitEntry) int {
	best, run := 0, 0
	var prev time.Time
	for i, e := range history {
		if !e.Completed {
			run = 0
			continue
		}
		day := Day(e.Date)
		if i > 0 && run > 0 && day.Equal(prev.AddDate(0, 0, 1)) {
			run++
		} else {
			run = 1
		}
		prev = day
		if run > best {
			best = run
		}
	}
	return best
}

// --- Goal ---

// SetProgress updates progress and reports whether this call completed the goal.
// Dropping below 100 on a completed goal reopens it.
func (g *Goal) SetProgress(progress int, at time.Time) (bool, error) {
	if progress < 0 || progress > 100 {
		return false, &ValidationError{Field: "progress", Reason: fmt.Sprintf("%d", progress), Err: ErrProgressOutOfRange}
	}

	wasCompleted := g.Status == GoalCompleted
	g.Progress = progress

	if progress == 100 {
		if wasCompleted {
			return false, nil
		}
		g.Status = GoalCompleted
		completedAt := at.UTC()
		g.CompletedAt = &completedAt
		return true, nil
	}

	if wasCompleted {
		g.Status = GoalActive
		g.CompletedAt = nil
	}
	return false, nil
}

// Reopen reverts a completion. Progress goes to GoalRollbackProgress,
// not the value it had before completing.
func (g *Goal) Reopen() {
	g.Status = GoalActive
	g.Progress = GoalRollbackProgress
	g.CompletedAt = nil
}

// Validate checks required fields and the completion invariant
func (g *Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required", Err: ErrMissingRequired}
	}
	if g.Progress < 0 || g.Progress > 100 {
		return &ValidationError{Field: "progress", Reason: fmt.Sprintf("%d", g.Progress), Err: ErrProgressOutOfRange}
	}
	switch g.Status {
	case GoalActive, GoalPaused, GoalAbandoned:
	case GoalCompleted:
		if g.Progress != 100 {
			return NewValidationError("status", "completed goal must have progress 100")
		}
	default:
		return NewValidationError("status", fmt.Sprintf("unknown status %q", g.Status))
	}
	return nil
}

// TaskProgress derives goal progress from its tasks
func TaskProgress(tasks []*Task) int {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Done {
			done++
		}
	}
	return done * 100 / len(tasks)
}

// --- Health, finance, relationships ---

// Validate checks value ranges on a health log
func (l *HealthLog) Validate() error {
	switch {
	case l.SleepHours < 0 || l.SleepHours > 24:
		return NewValidationError("sleep_hours", "must be between 0 and 24")
	case l.Mood < 1 || l.Mood > 10:
		return NewValidationError("mood", "must be between 1 and 10")
	case l.Stress < 1 || l.Stress > 10:
		return NewValidationError("stress", "must be between 1 and 10")
	case l.WaterGlasses < 0:
		return NewValidationError("water_glasses", "must not be negative")
	case l.ExerciseMinutes < 0:
		return NewValidationError("exercise_minutes", "must not be negative")
	}
	return nil
}

// Validate checks kind and amount on a transaction
func (t *Transaction) Validate() error {
	if t.Kind != TransactionIncome && t.Kind != TransactionExpense {
		return NewValidationError("kind", fmt.Sprintf("%q is not income or expense", t.Kind))
	}
	if t.Amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	return nil
}

// FrequencyGoal returns the contact goal in days, falling back to the default
func (r *Relationship) FrequencyGoal() int {
	if r.FrequencyGoalDays <= 0 {
		return DefaultFrequencyGoalDays
	}
	return r.FrequencyGoalDays
}

// Validate checks required fields on a relationship
func (r *Relationship) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required", Err: ErrMissingRequired}
	}
	if r.FrequencyGoalDays < 0 {
		return NewValidationError("frequency_goal_days", "must not be negative")
	}
	return nil
}
