// LifeScore Daemon - serves the score engine over HTTP
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantumlife/lifescore/internal/app"
	"github.com/quantumlife/lifescore/internal/config"
	"github.com/quantumlife/lifescore/internal/logging"
	"github.com/quantumlife/lifescore/internal/scheduler"
)

var (
	configPath string
	dataDir    string
	port       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lifescored",
		Short: "LifeScore Daemon - event-sourced life scores over HTTP",
		RunE:  runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logging.Configure(cfg.Logging.Mode, level)
	defer logging.Default().Sync()

	log := logging.WithField("component", "daemon")
	log.Info("starting LifeScore daemon (data dir %s)", cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	log.Info("score cache: %s", a.CacheBackend)

	if cfg.Refresh.Enabled {
		sched := scheduler.NewScheduler(scheduler.Config{Timezone: cfg.Refresh.Timezone})
		handler := scheduler.RefreshScores(a.Stores.Profiles, a.Kernel)
		refresh := scheduler.DailyTask(scheduler.RefreshTaskID, "Refresh life scores", cfg.Refresh.At, handler)
		if cfg.Refresh.Cron != "" {
			refresh = scheduler.CronTask(scheduler.RefreshTaskID, "Refresh life scores", cfg.Refresh.Cron, handler)
		}
		if err := sched.Register(refresh); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
		task, _ := sched.GetTask(scheduler.RefreshTaskID)
		log.Info("next score refresh at %s", task.NextRun.Format(time.RFC3339))
	}

	server := a.Server()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	return g.Wait()
}
