// LifeScore CLI - inspect and maintain the local score database.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/lifescore/internal/app"
	"github.com/quantumlife/lifescore/internal/config"
	"github.com/quantumlife/lifescore/internal/core"
	"github.com/quantumlife/lifescore/internal/ledger"
	"github.com/quantumlife/lifescore/internal/logging"
	"github.com/quantumlife/lifescore/internal/scheduler"
	"github.com/quantumlife/lifescore/internal/storage"
)

var (
	// Config
	configPath string
	dataDir    string
	jsonOut    bool

	// Version
	version = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lifescore",
		Short: "LifeScore - your life, scored from what you log",
		Long: `LifeScore keeps an append-only log of life events and derives
health, wealth, habit, goal and relationship scores from your records.

Events can be reversed: the records they touched are rolled back
and the scores recomputed.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of tables")

	// Commands
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(scoresCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(reverseCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadConfig applies the global flags on top of the file and environment
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Keep command output clean; only warnings reach the terminal.
	logging.Configure(cfg.Logging.Mode, logging.WARN)
	return cfg, nil
}

// openApp opens an initialized data directory
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DBPath()); os.IsNotExist(err) {
		return nil, fmt.Errorf("LifeScore is not initialized in %s; run 'lifescore init'", cfg.DataDir)
	}
	return app.Open(cmd.Context(), cfg, app.Options{})
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// initCmd creates the data directory, config file and schema
func initCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize LifeScore and optionally create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			path := configPath
			if path == "" {
				path = filepath.Join(cfg.DataDir, "config.json")
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := cfg.Save(path); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Printf("Wrote %s\n", path)
			}

			a, err := app.Open(cmd.Context(), cfg, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Printf("Database ready at %s\n", cfg.DBPath())

			if name == "" {
				return nil
			}
			p, err := a.Tracker.CreateProfile(cmd.Context(), name, email)
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "create a user with this name")
	cmd.Flags().StringVar(&email, "email", "", "email of the created user")
	return cmd
}

// statusCmd shows where data lives and how much of it there is
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show LifeScore status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Stores.Profiles.List(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := a.Ledger.Count()
			if err != nil {
				return err
			}
			migrations, err := a.DB.Migrations()
			if err != nil {
				return err
			}
			applied := 0
			for _, m := range migrations {
				if m.Applied() {
					applied++
				}
			}
			chain := "valid"
			if err := a.Ledger.VerifyChain(); err != nil {
				chain = err.Error()
			}

			fmt.Println("LifeScore Status")
			fmt.Println("────────────────")
			fmt.Printf("Data directory: %s\n", a.Config.DataDir)
			fmt.Printf("Database:       %s\n", a.DB.Path())
			fmt.Printf("Schema:         %d/%d migrations applied\n", applied, len(migrations))
			fmt.Printf("Score cache:    %s\n", a.CacheBackend)
			fmt.Printf("Users:          %d\n", len(users))
			fmt.Printf("Ledger entries: %d (chain %s)\n", entries, chain)
			return nil
		},
	}
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users and their last computed scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Stores.Profiles.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(users)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLIFE\tSCORED AT")
			for _, p := range users {
				scored := "never"
				if p.ScoresComputedAt != nil {
					scored = p.ScoresComputedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Scores.Life, scored)
			}
			return w.Flush()
		},
	}
}

func scoresCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "scores <user-id>",
		Short: "Show a user's scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var cached core.CachedScores
			if refresh {
				cached.Scores, err = a.Kernel.UpdateLifeScores(cmd.Context(), args[0])
				cached.ComputedAt = time.Now().UTC()
			} else {
				cached, err = a.Kernel.Scores(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cached)
			}

			s := cached.Scores
			fmt.Printf("Life          %3d\n", s.Life)
			fmt.Printf("  Health      %3d\n", s.Health)
			fmt.Printf("  Wealth      %3d\n", s.Wealth)
			fmt.Printf("  Habits      %3d\n", s.Habit)
			fmt.Printf("  Goals       %3d\n", s.Goal)
			fmt.Printf("  Relations   %3d\n", s.Relationship)
			fmt.Printf("\nComputed %s\n", cached.ComputedAt.Local().Format(time.DateTime))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute instead of reading the cache")
	return cmd
}

func eventsCmd() *cobra.Command {
	var (
		eventType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "events <user-id>",
		Short: "List a user's events, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := storage.EventQuery{Type: core.EventType(eventType), Limit: limit}
			if q.Type != "" && !q.Type.Valid() {
				return fmt.Errorf("unknown event type %q", eventType)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.Events.ListByOwner(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(events)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tTYPE\tIMPACT\tTITLE\tREFS")
			for _, e := range events {
				var refs []string
				for _, r := range e.Refs {
					refs = append(refs, string(r.Kind))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Timestamp.Local().Format(time.DateTime), e.Type, e.Impact, e.Title, strings.Join(refs, ","))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to show")
	return cmd
}

func reverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse <user-id> <event-id>",
		Short: "Reverse an event and roll back the records it touched",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Kernel.ReverseEvent(cmd.Context(), args[0], args[1]); err != nil {
				if core.IsNotFound(err) {
					return fmt.Errorf("event %s not found (already reversed?)", args[1])
				}
				return err
			}

			scores, err := a.Kernel.Scores(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Reversed %s; life score is now %d\n", args[1], scores.Scores.Life)
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge <user-id>",
		Short: "Delete every event and record of a user",
		Long: `Deletes the user's events, habits, goals, tasks, health logs,
transactions and relationships. The profile and the audit ledger are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to purge without --yes")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Kernel.PurgeAll(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Purged all data of %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}

// refreshCmd runs the daemon's nightly refresh once
func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute the scores of every user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := scheduler.RefreshScores(a.Stores.Profiles, a.Kernel)(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Scores refreshed")
			return nil
		},
	}
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the audit ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.Ledger.Count()
			if err != nil {
				return err
			}
			if err := a.Ledger.VerifyChain(); err != nil {
				var chainErr *ledger.ChainError
				if errors.As(err, &chainErr) {
					return fmt.Errorf("chain broken at entry %d (%s): %w", chainErr.EntryNum, chainErr.EntryID, err)
				}
				return err
			}
			fmt.Printf("Chain valid (%d entries)\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <user-id>",
		Short: "Show the ledger entries concerning a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Ledger.OwnerHistory(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tACTOR\tENTITY")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\n",
					e.Timestamp.Local().Format(time.DateTime), e.Action, e.Actor, e.EntityType, e.EntityID)
			}
			return w.Flush()
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lifescore %s\n", version)
		},
	}
}
