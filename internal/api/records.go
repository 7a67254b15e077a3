package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/lifescore/internal/core"
)

// createdWithEvent is the response of a controller action that emitted an event
type createdWithEvent struct {
	Record interface{}     `json:"record"`
	Event  *core.LifeEvent `json:"event,omitempty"`
}

// atInput carries an optional RFC 3339 "at" field
type atInput struct {
	At *time.Time `json:"at,omitempty"`
}

// decodeOptional is decode for bodies that may be empty
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &core.ValidationError{Field: "body", Reason: "invalid JSON", Err: core.ErrInvalidInput}
}

// --- Health ---

func (s *Server) handleListHealthLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.stores.HealthLogs.ListByOwner(r.Context(), owner(r).ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, logs)
}

func (s *Server) handleLogHealth(w http.ResponseWriter, r *http.Request) {
	var l core.HealthLog
	if err := decode(r, &l); err != nil {
		s.respondErr(w, err)
		return
	}

	e, err := s.tracker.LogHealth(r.Context(), owner(r).ID, &l)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, createdWithEvent{Record: &l, Event: e})
}

func (s *Server) handleRecordMood(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Mood int    `json:"mood"`
		Note string `json:"note"`
	}
	if err := decode(r, &input); err != nil {
		s.respondErr(w, err)
		return
	}

	e, err := s.tracker.RecordMood(r.Context(), owner(r).ID, input.Mood, input.Note)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, e)
}

// --- Finance ---

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.stores.Transactions.ListByOwner(r.Context(), owner(r).ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decode(r, &tx); err != nil {
		s.respondErr(w, err)
		return
	}

	e, err := s.tracker.RecordTransaction(r.Context(), owner(r).ID, &tx)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, createdWithEvent{Record: &tx, Event: e})
}

// --- Habits ---

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	habits, err := s.stores.Habits.ListByOwner(r.Context(), owner(r).ID, activeOnly)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, habits)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var h core.Habit
	if err := decode(r, &h); err != nil {
		s.respondErr(w, err)
		return
	}

	if err := s.tracker.CreateHabit(r.Context(), owner(r).ID, &h); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &h)
}

// handleCompleteHabit records a completion, today unless "at" is given
// POST /api/v1/users/{userID}/habits/{habitID}/complete
func (s *Server) handleCompleteHabit(w http.ResponseWriter, r *http.Request) {
	var input atInput
	if err := decodeOptional(r, &input); err != nil {
		s.respondErr(w, err)
		return
	}

	h, e, err := s.tracker.CompleteHabit(r.Context(), owner(r).ID, chi.URLParam(r, "habitID"), input.At)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, createdWithEvent{Record: h, Event: e})
}

// --- Goals and tasks ---

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	status := core.GoalStatus(r.URL.Query().Get("status"))
	goals, err := s.stores.Goals.ListByOwner(r.Context(), owner(r).ID, status)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var g core.Goal
	if err := decode(r, &g); err != nil {
		s.respondErr(w, err)
		return
	}

	if err := s.tracker.CreateGoal(r.Context(), owner(r).ID, &g); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &g)
}

// handleUpdateGoalProgress sets progress; reaching 100 emits a productivity event
// PUT /api/v1/users/{userID}/goals/{goalID}/progress
func (s *Server) handleUpdateGoalProgress(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Progress *int `json:"progress"`
	}
	if err := decode(r, &input); err != nil {
		s.respondErr(w, err)
		return
	}
	if input.Progress == nil {
		s.respondErr(w, &core.ValidationError{Field: "progress", Reason: "is required", Err: core.ErrMissingRequired})
		return
	}

	g, e, err := s.tracker.UpdateGoalProgress(r.Context(), owner(r).ID, chi.URLParam(r, "goalID"), *input.Progress)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, createdWithEvent{Record: g, Event: e})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := owner(r).ID
	goalID := r.URL.Query().Get("goal")

	var tasks []*core.Task
	var err error
	if goalID != "" {
		tasks, err = s.stores.Tasks.ListByGoal(r.Context(), ownerID, goalID)
	} else {
		tasks, err = s.stores.Tasks.ListByOwner(r.Context(), ownerID)
	}
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var task core.Task
	if err := decode(r, &task); err != nil {
		s.respondErr(w, err)
		return
	}

	if err := s.tracker.AddTask(r.Context(), owner(r).ID, &task); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &task)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	task, e, err := s.tracker.CompleteTask(r.Context(), owner(r).ID, chi.URLParam(r, "taskID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, createdWithEvent{Record: task, Event: e})
}

// --- Relationships ---

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := s.stores.Relationships.ListByOwner(r.Context(), owner(r).ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rels)
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var rel core.Relationship
	if err := decode(r, &rel); err != nil {
		s.respondErr(w, err)
		return
	}

	if err := s.tracker.CreateRelationship(r.Context(), owner(r).ID, &rel); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &rel)
}

func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Note string `json:"note"`
	}
	if err := decodeOptional(r, &input); err != nil {
		s.respondErr(w, err)
		return
	}

	rel, e, err := s.tracker.LogInteraction(r.Context(), owner(r).ID, chi.URLParam(r, "relationshipID"), input.Note)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, createdWithEvent{Record: rel, Event: e})
}
