// Package app assembles the LifeScore components from a configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumlife/lifescore/internal/api"
	"github.com/quantumlife/lifescore/internal/cache"
	"github.com/quantumlife/lifescore/internal/config"
	"github.com/quantumlife/lifescore/internal/kernel"
	"github.com/quantumlife/lifescore/internal/ledger"
	"github.com/quantumlife/lifescore/internal/logging"
	"github.com/quantumlife/lifescore/internal/scoring"
	"github.com/quantumlife/lifescore/internal/storage"
	"github.com/quantumlife/lifescore/internal/tracker"
)

// App holds the wired components sharing one database
type App struct {
	Config  *config.Config
	DB      *storage.DB
	Events  *storage.EventStore
	Stores  tracker.Stores
	Kernel  *kernel.Kernel
	Tracker *tracker.Tracker
	Ledger  *ledger.Store

	// CacheBackend is "redis" or "memory"
	CacheBackend string

	redis *cache.Redis
	log   *logging.Logger
}

// Options overrides parts of the wiring, mostly for tests
type Options struct {
	InMemory bool             // Use an in-memory database instead of cfg.DBPath()
	Now      func() time.Time // Defaults to time.Now
}

// Open opens the database, runs migrations and wires the kernel.
// When Redis is enabled but unreachable the in-process cache is used instead.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logging.WithField("component", "app")

	db, err := storage.Open(storage.Config{Path: cfg.DBPath(), InMemory: opts.InMemory})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	applied, err := db.Migrate()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	if applied > 0 {
		log.Info("applied %d migrations", applied)
	}

	a := &App{
		Config:       cfg,
		DB:           db,
		Events:       storage.NewEventStore(db),
		Stores:       tracker.NewStores(db),
		Ledger:       ledger.NewStore(db.Conn()),
		CacheBackend: "memory",
		log:          log,
	}

	var scoreCache kernel.ScoreCache = cache.NewMemory()
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL(),
		})
		if err != nil {
			log.Warn("redis not available, using in-process score cache: %v", err)
		} else {
			a.redis = rc
			a.CacheBackend = "redis"
			scoreCache = rc
		}
	}

	k, err := kernel.New(kernel.Config{
		Stores: kernel.Stores{
			Events:        a.Events,
			Profiles:      a.Stores.Profiles,
			Habits:        a.Stores.Habits,
			Goals:         a.Stores.Goals,
			Tasks:         a.Stores.Tasks,
			HealthLogs:    a.Stores.HealthLogs,
			Transactions:  a.Stores.Transactions,
			Relationships: a.Stores.Relationships,
		},
		Aggregator: scoring.New(scoring.Config{
			HealthWindow: days(cfg.Scoring.HealthWindowDays),
			WealthWindow: days(cfg.Scoring.WealthWindowDays),
		}),
		Cache:   scoreCache,
		Auditor: ledger.NewRecorder(a.Ledger),
		Now:     opts.Now,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Kernel = k
	a.Tracker = tracker.New(a.Stores, k, opts.Now)
	return a, nil
}

// Server creates the HTTP API over the wired components
func (a *App) Server() *api.Server {
	return api.New(api.Config{
		Addr:        a.Config.Addr(),
		DB:          a.DB,
		Kernel:      a.Kernel,
		Tracker:     a.Tracker,
		Stores:      a.Stores,
		LedgerStore: a.Ledger,
	})
}

// Close releases the cache connection and the database
func (a *App) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("close redis: %v", err)
		}
	}
	return a.DB.Close()
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
