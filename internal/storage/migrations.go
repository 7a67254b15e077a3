package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/quantumlife/lifescore/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus describes one embedded schema migration
type MigrationStatus struct {
	Name      string     `json:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Applied reports whether the migration has run against this database
func (m MigrationStatus) Applied() bool { return m.AppliedAt != nil }

// Migrate runs all pending migrations and returns how many were applied
func (db *DB) Migrate() (int, error) {
	if err := db.ensureMigrationsTable(); err != nil {
		return 0, err
	}

	applied, err := db.appliedMigrations()
	if err != nil {
		return 0, err
	}

	pending, err := embeddedMigrations()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range pending {
		if _, ok := applied[m.name]; ok {
			continue
		}
		if err := db.applyMigration(m); err != nil {
			return count, fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		logging.WithField("migration", m.name).Debug("applied migration")
		count++
	}

	return count, nil
}

// Migrations lists every embedded migration with its applied time, if any
func (db *DB) Migrations() ([]MigrationStatus, error) {
	if err := db.ensureMigrationsTable(); err != nil {
		return nil, err
	}

	applied, err := db.appliedMigrations()
	if err != nil {
		return nil, err
	}

	available, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(available))
	for _, m := range available {
		st := MigrationStatus{Name: m.name}
		if at, ok := applied[m.name]; ok {
			at := at
			st.AppliedAt = &at
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

type migration struct {
	name    string
	content string
}

func (db *DB) ensureMigrationsTable() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (db *DB) appliedMigrations() (map[string]time.Time, error) {
	rows, err := db.conn.Query("SELECT name, applied_at FROM _migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var at timeCol
		if err := rows.Scan(&name, &at); err != nil {
			return nil, err
		}
		applied[name] = at.Time
	}

	return applied, rows.Err()
}

func embeddedMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, migration{
			name:    entry.Name(),
			content: string(content),
		})
	}

	// File names carry a numeric prefix
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].name < migrations[j].name
	})

	return migrations, nil
}

func (db *DB) applyMigration(m migration) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(m.content); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO _migrations (name, applied_at) VALUES (?, ?)", m.name, time.Now().UTC())
		return err
	})
}
