package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenDB opens the history database at path, or an in-memory one for
// ":memory:", and runs the migrations.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// every connection to :memory: gets its own empty database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Migrate creates the schema. Statements are idempotent.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS ledger_runs (
		id            TEXT PRIMARY KEY,
		window_start  TEXT NOT NULL,
		window_end    TEXT NOT NULL,
		hours_per_day INTEGER NOT NULL,
		generated_at  TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		run_id                 TEXT NOT NULL REFERENCES ledger_runs(id) ON DELETE CASCADE,
		assignee               TEXT NOT NULL,
		team                   TEXT NOT NULL DEFAULT '',
		window_start           TEXT NOT NULL,
		window_end             TEXT NOT NULL,
		window_override        INTEGER NOT NULL DEFAULT 0,
		tasks                  INTEGER NOT NULL DEFAULT 0,
		tasks_in_window        INTEGER NOT NULL DEFAULT 0,
		window_business_days   INTEGER NOT NULL,
		occupied_business_days INTEGER NOT NULL,
		idle_business_days     INTEGER NOT NULL,
		idle_hours             INTEGER NOT NULL,
		PRIMARY KEY (run_id, assignee)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_assignee ON ledger_entries(assignee)`,

	`CREATE TABLE IF NOT EXISTS ledger_anomalies (
		run_id   TEXT NOT NULL REFERENCES ledger_runs(id) ON DELETE CASCADE,
		task_id  TEXT NOT NULL DEFAULT '',
		assignee TEXT NOT NULL,
		kind     TEXT NOT NULL,
		field    TEXT NOT NULL,
		value    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ledger_anomalies_run ON ledger_anomalies(run_id)`,
}
