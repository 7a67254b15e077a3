// Package scheduler runs recurring background jobs such as the nightly score refresh.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantumlife/lifescore/internal/logging"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	tasks    map[string]*Task
	running  map[string]context.CancelFunc
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	timezone *time.Location
	now      func() time.Time
	log      *logging.Logger
}

// Config configures the scheduler
type Config struct {
	Timezone string           // Timezone for daily schedules (default: Local)
	Now      func() time.Time // Defaults to time.Now
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Timezone: "Local",
	}
}

// NewScheduler creates a new scheduler. An unknown timezone falls back to Local.
func NewScheduler(cfg Config) *Scheduler {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		tz = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		tasks:    make(map[string]*Task),
		running:  make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
		timezone: tz,
		now:      now,
		log:      logging.WithField("component", "scheduler"),
	}
}

// Task represents a scheduled task
type Task struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   Schedule      `json:"schedule"`
	Handler    TaskHandler   `json:"-"`
	Timeout    time.Duration `json:"timeout"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
	RunCount   int64         `json:"run_count"`
	ErrorCount int64         `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
}

// TaskHandler is the function executed for a task
type TaskHandler func(ctx context.Context) error

// ScheduleType represents the type of schedule
type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval" // Run every X duration
	ScheduleDaily    ScheduleType = "daily"    // Run at a wall-clock time each day
	ScheduleCron     ScheduleType = "cron"     // Standard five-field cron expression
)

// Schedule defines when a task runs
type Schedule struct {
	Type     ScheduleType  `json:"type"`
	Interval time.Duration `json:"interval,omitempty"` // For interval schedules
	At       string        `json:"at,omitempty"`       // For daily schedules, "15:04"
	Cron     string        `json:"cron,omitempty"`     // For cron schedules, e.g. "0 3 * * *"
}

// Validate rejects schedules that can never fire
func (s Schedule) Validate() error {
	switch s.Type {
	case ScheduleInterval:
		if s.Interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
	case ScheduleDaily:
		if _, err := time.Parse("15:04", s.At); err != nil {
			return fmt.Errorf("daily time %q: want HH:MM", s.At)
		}
	case ScheduleCron:
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return fmt.Errorf("cron %q: %w", s.Cron, err)
		}
	default:
		return fmt.Errorf("unknown schedule type %q", s.Type)
	}
	return nil
}

// IntervalTask creates a task that runs at a fixed interval
func IntervalTask(id, name string, interval time.Duration, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleInterval, Interval: interval},
		Handler:  handler,
	}
}

// DailyTask creates a task that runs daily at a specific time
func DailyTask(id, name, at string, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleDaily, At: at},
		Handler:  handler,
	}
}

// CronTask creates a task that runs on a cron expression
func CronTask(id, name, expr string, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleCron, Cron: expr},
		Handler:  handler,
	}
}

// Register adds a task to the scheduler
func (s *Scheduler) Register(task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Handler == nil {
		return fmt.Errorf("task handler is required")
	}
	if err := task.Schedule.Validate(); err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	if task.Timeout == 0 {
		task.Timeout = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already registered", task.ID)
	}

	next := s.nextRun(task.Schedule, s.now())
	task.NextRun = &next
	s.tasks[task.ID] = task

	if s.started {
		s.startTask(task)
	}
	return nil
}

// Unregister removes a task and stops its loop. A handler already running
// sees its context cancelled.
func (s *Scheduler) Unregister(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if cancel, ok := s.running[taskID]; ok {
		cancel()
		delete(s.running, taskID)
	}
	delete(s.tasks, taskID)
	return nil
}

// Start starts the loops of every registered task
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	for _, task := range s.tasks {
		s.startTask(task)
	}
	return nil
}

// Stop cancels every task loop and waits for running handlers to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = make(map[string]context.CancelFunc)
	s.started = false
	s.mu.Unlock()

	// Loops take the lock when a handler finishes, so wait outside it
	s.wg.Wait()

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
}

// startTask starts a single task's loop. Callers hold s.mu.
func (s *Scheduler) startTask(task *Task) {
	taskCtx, cancel := context.WithCancel(s.ctx)
	s.running[task.ID] = cancel

	s.wg.Add(1)
	go s.runTaskLoop(taskCtx, task)
}

func (s *Scheduler) runTaskLoop(ctx context.Context, task *Task) {
	defer s.wg.Done()

	for {
		s.mu.RLock()
		wait := task.NextRun.Sub(s.now())
		s.mu.RUnlock()
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.execute(ctx, task)
		}
	}
}

// execute runs the handler once and records the outcome
func (s *Scheduler) execute(ctx context.Context, task *Task) error {
	execCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	start := s.now()
	err := task.Handler(execCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	task.LastRun = &start
	task.RunCount++
	if err != nil {
		task.ErrorCount++
		task.LastError = err.Error()
		s.log.WithField("task", task.ID).Warn("task failed: %v", err)
	} else {
		task.LastError = ""
	}

	next := s.nextRun(task.Schedule, s.now())
	task.NextRun = &next
	return err
}

// nextRun calculates the next run time for a schedule after now
func (s *Scheduler) nextRun(schedule Schedule, now time.Time) time.Time {
	now = now.In(s.timezone)

	switch schedule.Type {
	case ScheduleDaily:
		at, _ := time.Parse("15:04", schedule.At)
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, s.timezone)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case ScheduleCron:
		// Validated on Register
		sched, _ := cron.ParseStandard(schedule.Cron)
		return sched.Next(now)
	default:
		return now.Add(schedule.Interval)
	}
}

// RunNow executes a task synchronously, outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, taskID string) error {
	s.mu.RLock()
	task, ok := s.tasks[taskID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return s.execute(ctx, task)
}

// GetTask returns a snapshot of a task
func (s *Scheduler) GetTask(taskID string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Stats contains scheduler statistics
type Stats struct {
	Started     bool   `json:"started"`
	TotalTasks  int    `json:"total_tasks"`
	TotalRuns   int64  `json:"total_runs"`
	TotalErrors int64  `json:"total_errors"`
	Timezone    string `json:"timezone"`
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:    s.started,
		TotalTasks: len(s.tasks),
		Timezone:   s.timezone.String(),
	}
	for _, task := range s.tasks {
		stats.TotalRuns += task.RunCount
		stats.TotalErrors += task.ErrorCount
	}
	return stats
}
