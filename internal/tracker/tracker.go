// Package tracker turns user actions into domain writes followed by a kernel
// notification.
//
// Every action that touches a record a reversal can compensate emits exactly
// one life event referencing that record. If the event cannot be recorded the
// write is undone, so no record is left without the event that owns it.
package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/logging"
	"github.com/quantumlife/lifescore/internal/storage"
)

// Kernel is the part of the score engine the tracker notifies
type Kernel interface {
	ProcessEvent(ctx context.Context, ownerID string, draft core.EventDraft) (*core.LifeEvent, error)
	Invalidate(ctx context.Context, ownerID string)
}

// Stores groups the record stores the tracker writes to
type Stores struct {
	Profiles      *storage.ProfileStore
	Habits        *storage.HabitStore
	Goals         *storage.GoalStore
	Tasks         *storage.TaskStore
	HealthLogs    *storage.HealthLogStore
	Transactions  *storage.TransactionStore
	Relationships *storage.RelationshipStore
}

// NewStores creates every record store over one database
func NewStores(db *storage.DB) Stores {
	return Stores{
		Profiles:      storage.NewProfileStore(db),
		Habits:        storage.NewHabitStore(db),
		Goals:         storage.NewGoalStore(db),
		Tasks:         storage.NewTaskStore(db),
		HealthLogs:    storage.NewHealthLogStore(db),
		Transactions:  storage.NewTransactionStore(db),
		Relationships: storage.NewRelationshipStore(db),
	}
}

// Tracker is the set of domain controllers
type Tracker struct {
	stores Stores
	kernel Kernel
	now    func() time.Time
	log    *logging.Logger
}

// New creates a tracker. A nil now defaults to time.Now.
func New(stores Stores, k Kernel, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		stores: stores,
		kernel: k,
		now:    now,
		log:    logging.WithField("component", "tracker"),
	}
}

// CreateProfile registers a new owner
func (t *Tracker) CreateProfile(ctx context.Context, name, email string) (*core.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &core.ValidationError{Field: "name", Reason: "is required", Err: core.ErrMissingRequired}
	}

	p := &core.UserProfile{
		ID:    uuid.New().String(),
		Name:  name,
		Email: strings.TrimSpace(email),
	}
	if err := t.stores.Profiles.Create(ctx, p); err != nil {
		return nil, err
	}

	t.log.WithField("owner", p.ID).Info("profile created")
	return p, nil
}

// --- Health ---

// LogHealth stores a health log and records a health event referencing it
func (t *Tracker) LogHealth(ctx context.Context, ownerID string, l *core.HealthLog) (*core.LifeEvent, error) {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	l.ID = uuid.New().String()
	l.OwnerID = ownerID
	if l.Date.IsZero() {
		l.Date = t.now()
	}
	if err := t.stores.HealthLogs.Create(ctx, l); err != nil {
		return nil, err
	}

	return t.emit(ctx, ownerID, core.EventDraft{
		Type:         core.EventHealth,
		Title:        "Health check-in",
		Description:  l.Notes,
		NumericValue: core.Float(float64(l.Mood)),
		Impact:       moodImpact(l.Mood),
		Tags:         []string{"health"},
		Refs:         core.RollbackRefs{{Kind: core.RefHealthLog, ID: l.ID}},
		Timestamp:    &l.Date,
	}, func() error {
		return t.stores.HealthLogs.Delete(ctx, ownerID, l.ID)
	})
}

// RecordMood records an emotional event. It touches no record.
func (t *Tracker) RecordMood(ctx context.Context, ownerID string, mood int, note string) (*core.LifeEvent, error) {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if mood < 1 || mood > 10 {
		return nil, core.NewValidationError("mood", "must be between 1 and 10")
	}

	return t.emit(ctx, ownerID, core.EventDraft{
		Type:         core.EventEmotional,
		Title:        "Mood check-in",
		Description:  note,
		NumericValue: core.Float(float64(mood)),
		Impact:       moodImpact(mood),
		Tags:         []string{"mood"},
	}, nil)
}

// --- Finance ---

// RecordTransaction stores a transaction and records a financial event referencing it
func (t *Tracker) RecordTransaction(ctx context.Context, ownerID string, tx *core.Transaction) (*core.LifeEvent, error) {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	tx.ID = uuid.New().String()
	tx.OwnerID = ownerID
	if tx.Date.IsZero() {
		tx.Date = t.now()
	}
	if err := t.stores.Transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	impact := core.ImpactPositive
	title := "Income"
	if tx.Kind == core.TransactionExpense {
		impact = core.ImpactNegative
		title = "Expense"
	}
	if tx.Category != "" {
		title += ": " + tx.Category
	}

	return t.emit(ctx, ownerID, core.EventDraft{
		Type:         core.EventFinancial,
		Title:        title,
		Description:  tx.Description,
		NumericValue: core.Float(tx.Amount),
		Impact:       impact,
		Tags:         []string{string(tx.Kind), tx.Category},
		Refs:         core.RollbackRefs{{Kind: core.RefTransaction, ID: tx.ID}},
		Timestamp:    &tx.Date,
	}, func() error {
		return t.stores.Transactions.Delete(ctx, ownerID, tx.ID)
	})
}

// --- Habits ---

// CreateHabit stores a new active habit
func (t *Tracker) CreateHabit(ctx context.Context, ownerID string, h *core.Habit) error {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return err
	}

	h.ID = uuid.New().String()
	h.OwnerID = ownerID
	h.Active = true
	h.Streak, h.BestStreak, h.LastCompleted, h.History = 0, 0, nil, nil
	if err := h.Validate(); err != nil {
		return err
	}
	if err := t.stores.Habits.Create(ctx, h); err != nil {
		return err
	}

	t.kernel.Invalidate(ctx, ownerID)
	return nil
}

// CompleteHabit records a completion for the day of at (now when nil) and a
// habit event referencing the habit
func (t *Tracker) CompleteHabit(ctx context.Context, ownerID, habitID string, at *time.Time) (*core.Habit, *core.LifeEvent, error) {
	h, err := t.stores.Habits.GetByID(ctx, ownerID, habitID)
	if err != nil {
		return nil, nil, err
	}
	if !h.Active {
		return nil, nil, core.NewValidationError("habit", "is not active")
	}

	when := t.now()
	if at != nil {
		when = *at
	}
	prev := *h
	prev.History = append([]core.HabitEntry(nil), h.History...)
	if err := h.Complete(when); err != nil {
		return nil, nil, err
	}
	if err := t.stores.Habits.Update(ctx, h); err != nil {
		return nil, nil, err
	}

	e, err := t.emit(ctx, ownerID, core.EventDraft{
		Type:         core.EventHabit,
		Title:        "Completed " + h.Name,
		NumericValue: core.Float(float64(h.Streak)),
		Impact:       core.ImpactPositive,
		Tags:         []string{"habit"},
		Refs:         core.RollbackRefs{{Kind: core.RefHabit, ID: h.ID}},
		Timestamp:    &when,
	}, func() error {
		*h = prev
		return t.stores.Habits.Update(ctx, h)
	})
	if err != nil {
		return nil, nil, err
	}
	return h, e, nil
}

// --- Goals and tasks ---

// CreateGoal stores a new goal
func (t *Tracker) CreateGoal(ctx context.Context, ownerID string, g *core.Goal) error {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return err
	}

	g.ID = uuid.New().String()
	g.OwnerID = ownerID
	g.Status = core.GoalActive
	g.CompletedAt = nil
	if g.Progress == 100 {
		return core.NewValidationError("progress", "a new goal cannot start completed")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if err := t.stores.Goals.Create(ctx, g); err != nil {
		return err
	}

	t.kernel.Invalidate(ctx, ownerID)
	return nil
}

// UpdateGoalProgress sets a goal's progress. Reaching 100 records exactly one
// productivity event referencing the goal; the returned event is nil otherwise.
func (t *Tracker) UpdateGoalProgress(ctx context.Context, ownerID, goalID string, progress int) (*core.Goal, *core.LifeEvent, error) {
	g, err := t.stores.Goals.GetByID(ctx, ownerID, goalID)
	if err != nil {
		return nil, nil, err
	}
	return t.setGoalProgress(ctx, g, progress)
}

func (t *Tracker) setGoalProgress(ctx context.Context, g *core.Goal, progress int) (*core.Goal, *core.LifeEvent, error) {
	prev := *g
	completed, err := g.SetProgress(progress, t.now())
	if err != nil {
		return nil, nil, err
	}
	if err := t.stores.Goals.Update(ctx, g); err != nil {
		return nil, nil, err
	}

	if !completed {
		t.kernel.Invalidate(ctx, g.OwnerID)
		return g, nil, nil
	}

	e, err := t.emit(ctx, g.OwnerID, core.EventDraft{
		Type:         core.EventProductivity,
		Title:        "Goal completed: " + g.Title,
		NumericValue: core.Float(100),
		Impact:       core.ImpactPositive,
		Tags:         []string{"goal", g.Category},
		Refs:         core.RollbackRefs{{Kind: core.RefGoal, ID: g.ID}},
	}, func() error {
		return t.stores.Goals.Update(ctx, &prev)
	})
	if err != nil {
		return nil, nil, err
	}
	return g, e, nil
}

// AddTask stores a task, optionally under one of the owner's goals
func (t *Tracker) AddTask(ctx context.Context, ownerID string, task *core.Task) error {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return err
	}
	if strings.TrimSpace(task.Title) == "" {
		return &core.ValidationError{Field: "title", Reason: "is required", Err: core.ErrMissingRequired}
	}
	if task.GoalID != "" {
		if _, err := t.stores.Goals.GetByID(ctx, ownerID, task.GoalID); err != nil {
			return err
		}
	}

	task.ID = uuid.New().String()
	task.OwnerID = ownerID
	task.Done = false
	task.CompletedAt = nil
	return t.stores.Tasks.Create(ctx, task)
}

// CompleteTask marks a task done. A task under a goal re-derives the goal's
// progress from its tasks, which completes the goal when the last one is done.
func (t *Tracker) CompleteTask(ctx context.Context, ownerID, taskID string) (*core.Task, *core.LifeEvent, error) {
	task, err := t.stores.Tasks.GetByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.Done {
		return task, nil, nil
	}

	now := t.now().UTC()
	task.Done = true
	task.CompletedAt = &now
	if err := t.stores.Tasks.Update(ctx, task); err != nil {
		return nil, nil, err
	}

	if task.GoalID == "" {
		return task, nil, nil
	}

	g, err := t.stores.Goals.GetByID(ctx, ownerID, task.GoalID)
	if core.IsNotFound(err) {
		return task, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	tasks, err := t.stores.Tasks.ListByGoal(ctx, ownerID, g.ID)
	if err != nil {
		return nil, nil, err
	}

	progress := core.TaskProgress(tasks)
	if progress == g.Progress {
		return task, nil, nil
	}
	_, e, err := t.setGoalProgress(ctx, g, progress)
	if err != nil {
		task.Done = false
		task.CompletedAt = nil
		if uerr := t.stores.Tasks.Update(ctx, task); uerr != nil {
			t.log.WithField("owner", ownerID).Error("goal update failed (%v) and the task could not be reopened: %v", err, uerr)
		}
		return nil, nil, err
	}
	return task, e, nil
}

// --- Relationships ---

// CreateRelationship stores a person to keep in touch with
func (t *Tracker) CreateRelationship(ctx context.Context, ownerID string, r *core.Relationship) error {
	if err := t.requireOwner(ctx, ownerID); err != nil {
		return err
	}

	r.ID = uuid.New().String()
	r.OwnerID = ownerID
	if err := r.Validate(); err != nil {
		return err
	}
	if err := t.stores.Relationships.Create(ctx, r); err != nil {
		return err
	}

	t.kernel.Invalidate(ctx, ownerID)
	return nil
}

// LogInteraction marks contact with someone and records a social event.
// Reversing that event leaves the relationship as it is.
func (t *Tracker) LogInteraction(ctx context.Context, ownerID, relationshipID, note string) (*core.Relationship, *core.LifeEvent, error) {
	r, err := t.stores.Relationships.GetByID(ctx, ownerID, relationshipID)
	if err != nil {
		return nil, nil, err
	}

	now := t.now().UTC()
	r.LastInteraction = &now
	r.InteractionCount++
	if err := t.stores.Relationships.Update(ctx, r); err != nil {
		return nil, nil, err
	}

	e, err := t.emit(ctx, ownerID, core.EventDraft{
		Type:        core.EventSocial,
		Title:       "Caught up with " + r.Name,
		Description: note,
		Impact:      core.ImpactPositive,
		Tags:        []string{"social", r.Kind},
	}, nil)
	if err != nil {
		return nil, nil, err
	}
	return r, e, nil
}

// --- helpers ---

func (t *Tracker) requireOwner(ctx context.Context, ownerID string) error {
	_, err := t.stores.Profiles.GetByID(ctx, ownerID)
	return err
}

// emit records the event for a write that already happened. When the kernel
// rejects it, undo reverts the write.
func (t *Tracker) emit(ctx context.Context, ownerID string, draft core.EventDraft, undo func() error) (*core.LifeEvent, error) {
	e, err := t.kernel.ProcessEvent(ctx, ownerID, draft)
	if err == nil {
		return e, nil
	}

	if undo != nil {
		if uerr := undo(); uerr != nil {
			t.log.WithFields(map[string]interface{}{
				"owner": ownerID,
				"type":  draft.Type,
			}).Error("event failed (%v) and the write could not be undone: %v", err, uerr)
		}
	}
	return nil, err
}

func moodImpact(mood int) core.Impact {
	switch {
	case mood >= 7:
		return core.ImpactPositive
	case mood <= 4:
		return core.ImpactNegative
	}
	return core.ImpactNeutral
}
