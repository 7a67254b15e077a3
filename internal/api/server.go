// Package api provides the HTTP API server for LifeScore.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/kernel"
	"github.com/quantumlife/lifescore/internal/ledger"
	"github.com/quantumlife/lifescore/internal/logging"
	"github.com/quantumlife/lifescore/internal/storage"
	"github.com/quantumlife/lifescore/internal/tracker"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	db      *storage.DB
	kernel  *kernel.Kernel
	tracker *tracker.Tracker
	stores  tracker.Stores
	events  *storage.EventStore

	// Ledger (audit trail)
	ledgerStore *ledger.Store

	allowedOrigins []string
	log            *logging.Logger
}

// Config for the server
type Config struct {
	Addr           string // Defaults to ":8080"
	DB             *storage.DB
	Kernel         *kernel.Kernel
	Tracker        *tracker.Tracker
	Stores         tracker.Stores
	LedgerStore    *ledger.Store // Optional
	AllowedOrigins []string      // Defaults to "*"
}

// New creates a new API server
func New(cfg Config) *Server {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		db:             cfg.DB,
		kernel:         cfg.Kernel,
		tracker:        cfg.Tracker,
		stores:         cfg.Stores,
		events:         storage.NewEventStore(cfg.DB),
		ledgerStore:    cfg.LedgerStore,
		allowedOrigins: origins,
		log:            logging.WithField("component", "api"),
	}

	s.setupRouter()

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", s.handleCreateProfile)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(s.ownerCtx)

			r.Get("/", s.handleGetProfile)
			r.Get("/scores", s.handleGetScores)
			r.Post("/scores/refresh", s.handleRefreshScores)
			r.Delete("/data", s.handlePurge)

			// Event log
			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleCreateEvent)
			r.Get("/events/{eventID}", s.handleGetEvent)
			r.Delete("/events/{eventID}", s.handleReverseEvent)

			// Domain controllers
			r.Get("/health", s.handleListHealthLogs)
			r.Post("/health", s.handleLogHealth)
			r.Post("/mood", s.handleRecordMood)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleRecordTransaction)

			r.Get("/habits", s.handleListHabits)
			r.Post("/habits", s.handleCreateHabit)
			r.Post("/habits/{habitID}/complete", s.handleCompleteHabit)

			r.Get("/goals", s.handleListGoals)
			r.Post("/goals", s.handleCreateGoal)
			r.Put("/goals/{goalID}/progress", s.handleUpdateGoalProgress)

			r.Get("/tasks", s.handleListTasks)
			r.Post("/tasks", s.handleAddTask)
			r.Post("/tasks/{taskID}/complete", s.handleCompleteTask)

			r.Get("/relationships", s.handleListRelationships)
			r.Post("/relationships", s.handleCreateRelationship)
			r.Post("/relationships/{relationshipID}/interactions", s.handleLogInteraction)
		})

		// Ledger API (read-only audit trail)
		if s.ledgerStore != nil {
			ledgerAPI := NewLedgerAPI(s.ledgerStore)
			ledgerAPI.RegisterRoutes(r)
		}
	})

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("API server starting on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type ctxKey int

const ownerKey ctxKey = iota

// ownerCtx resolves {userID} to a profile, answering 404 for unknown owners
func (s *Server) ownerCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.stores.Profiles.GetByID(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			s.respondErr(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func owner(r *http.Request) *core.UserProfile {
	return r.Context().Value(ownerKey).(*core.UserProfile)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// respondErr maps the error taxonomy onto status codes
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case core.IsNotFound(err):
		s.respondError(w, http.StatusNotFound, err.Error())
	case core.IsStoreUnavailable(err):
		s.log.Warn("store unavailable: %v", err)
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.log.Error("request failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &core.ValidationError{Field: "body", Reason: "invalid JSON", Err: core.ErrInvalidInput}
	}
	return nil
}

// queryInt parses a non-negative integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// queryTime parses an RFC 3339 query parameter
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, core.NewValidationError(name, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
