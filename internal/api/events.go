package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/storage"
)

const defaultEventLimit = 50

// --- Profiles and scores ---

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decode(r, &input); err != nil {
		s.respondErr(w, err)
		return
	}

	p, err := s.tracker.CreateProfile(r.Context(), input.Name, input.Email)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, owner(r))
}

// handleGetScores returns the cached scores, computing them on a miss
// GET /api/v1/users/{userID}/scores
func (s *Server) handleGetScores(w http.ResponseWriter, r *http.Request) {
	cached, err := s.kernel.Scores(r.Context(), owner(r).ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cached)
}

// handleRefreshScores forces a recompute
// POST /api/v1/users/{userID}/scores/refresh
func (s *Server) handleRefreshScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.kernel.UpdateLifeScores(r.Context(), owner(r).ID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, scores)
}

// handlePurge deletes every event and record of the owner
// DELETE /api/v1/users/{userID}/data
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.PurgeAll(r.Context(), owner(r).ID); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Event log ---

// handleListEvents returns the owner's events, newest first
// GET /api/v1/users/{userID}/events?type=&since=&until=&limit=&offset=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := storage.EventQuery{Type: core.EventType(r.URL.Query().Get("type"))}
	if q.Type != "" && !q.Type.Valid() {
		s.respondErr(w, &core.ValidationError{Field: "type", Reason: string(q.Type), Err: core.ErrUnknownEventType})
		return
	}

	var err error
	if q.Since, err = queryTime(r, "since"); err != nil {
		s.respondErr(w, err)
		return
	}
	if q.Until, err = queryTime(r, "until"); err != nil {
		s.respondErr(w, err)
		return
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		s.respondErr(w, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultEventLimit
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		s.respondErr(w, err)
		return
	}

	ownerID := owner(r).ID
	events, err := s.events.ListByOwner(r.Context(), ownerID, q)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	total, err := s.events.CountByOwner(r.Context(), ownerID)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// refMetaKeys are the metadata keys the kernel lifts into rollback refs
var refMetaKeys = []string{core.MetaLogID, core.MetaTransactionID, core.MetaGoalID, core.MetaHabitID}

// handleCreateEvent records a free-form event draft. Rollback refs are only
// attached by the record endpoints, so a draft carrying any is rejected.
// POST /api/v1/users/{userID}/events
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft core.EventDraft
	if err := decode(r, &draft); err != nil {
		s.respondErr(w, err)
		return
	}
	if len(draft.Refs) > 0 {
		s.respondErr(w, &core.ValidationError{Field: "refs", Reason: "are set by the record endpoints", Err: core.ErrInvalidInput})
		return
	}
	for _, key := range refMetaKeys {
		if _, ok := draft.Metadata[key]; ok {
			s.respondErr(w, &core.ValidationError{Field: "metadata." + key, Reason: "is reserved for record endpoints", Err: core.ErrInvalidInput})
			return
		}
	}

	e, err := s.kernel.ProcessEvent(r.Context(), owner(r).ID, draft)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.GetByID(r.Context(), owner(r).ID, chi.URLParam(r, "eventID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, e)
}

// handleReverseEvent deletes an event and rolls back what it touched
// DELETE /api/v1/users/{userID}/events/{eventID}
func (s *Server) handleReverseEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.ReverseEvent(r.Context(), owner(r).ID, chi.URLParam(r, "eventID")); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
