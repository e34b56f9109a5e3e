package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var journalModes = map[string]bool{
	"delete": true, "truncate": true, "persist": true,
	"memory": true, "wal": true, "off": true,
}

type openConfig struct {
	journalMode string
	mkdirAll    bool
}

// Option customises Open.
type Option func(*openConfig)

// WithJournalMode sets PRAGMA journal_mode. Default: "wal".
func WithJournalMode(mode string) Option {
	return func(c *openConfig) {
		if mode != "" {
			c.journalMode = mode
		}
	}
}

// WithMkdirAll creates the parent directories of the database path.
func WithMkdirAll() Option { return func(c *openConfig) { c.mkdirAll = true } }

// Open opens (creating if needed) the canonical store at path, applies
// pragmas and migrations, and returns a store that owns the connection.
// Use ":memory:" for a throwaway store.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	cfg := openConfig{journalMode: "wal"}
	for _, o := range opts {
		o(&cfg)
	}

	if !journalModes[strings.ToLower(cfg.journalMode)] {
		return nil, fmt.Errorf("unsupported journal mode %q", cfg.journalMode)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to ":memory:" is its own database, and the store
	// serializes access anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", strings.ToUpper(cfg.journalMode)),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	store.ownsDB = true

	return store, nil
}
