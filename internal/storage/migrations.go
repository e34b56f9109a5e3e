package storage

import (
	"database/sql"
	"fmt"
)

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// coreTables must all exist for the store to count as initialized.
var coreTables = []string{"url", "visit", "metadata"}

// MigrationRunner brings a canonical store up to the latest schema.
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "initial_schema", Apply: migrateV001},
		},
	}
}

// Run applies all pending migrations in order. A database without the
// core tables gets the initial schema exactly once; afterwards the
// single-row schema_version table decides what is pending.
func (r *MigrationRunner) Run() error {
	if _, err := r.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	current, err := r.Version()
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// Version returns the schema version currently recorded, or 0 when the
// core tables are missing.
func (r *MigrationRunner) Version() (int, error) {
	initialized, err := r.isInitialized()
	if err != nil {
		return 0, fmt.Errorf("check schema: %w", err)
	}
	if !initialized {
		return 0, nil
	}

	if err := r.ensureVersionTable(); err != nil {
		return 0, err
	}

	var version int
	if err := r.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// isInitialized reports whether every core table exists.
func (r *MigrationRunner) isInitialized() (bool, error) {
	for _, table := range coreTables {
		var count int
		err := r.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&count)
		if err != nil {
			return false, err
		}
		if count == 0 {
			return false, nil
		}
	}
	return true, nil
}

// ensureVersionTable covers stores that have the core tables but predate
// version tracking; they are recorded as version 1.
func (r *MigrationRunner) ensureVersionTable() error {
	if _, err := r.db.Exec(
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)",
	); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var rows int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		return fmt.Errorf("count schema_version: %w", err)
	}
	if rows == 0 {
		if _, err := r.db.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
			return fmt.Errorf("seed schema_version: %w", err)
		}
	}
	return nil
}

// apply executes a migration inside a transaction and records it.
func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
