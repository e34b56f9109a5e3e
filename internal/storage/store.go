package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/runnerr0/historian/internal/extract"
)

var (
	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("store is closed")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidGroupBy is returned for an unknown timeline grouping.
	ErrInvalidGroupBy = errors.New("invalid group by")
)

// TxError marks a transaction-level failure (begin, commit or a per-record
// savepoint). Nothing from the batch was persisted.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string { return fmt.Sprintf("transaction %s: %v", e.Op, e.Err) }

func (e *TxError) Unwrap() error { return e.Err }

// Store defines the canonical history operations.
type Store interface {
	IngestBatch(ctx context.Context, b *extract.Batch) (*IngestStats, error)
	Search(ctx context.Context, q SearchQuery) (*SearchResults, error)
	Timeline(ctx context.Context, q TimelineQuery) ([]Bucket, error)
	GetStats(ctx context.Context) (*Stats, error)
	GetURL(ctx context.Context, rawURL string) (*URLRecord, error)
	GetMetadata(ctx context.Context, urlID string) (*MetadataRecord, error)
	MergeMetadata(ctx context.Context, m MetadataRecord) (bool, error)
	PurgeAll(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store over a single SQLite connection. Every
// operation holds mu for its full duration, so ingestion, search and
// timeline calls are serialized against each other.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sqlx.DB
	ownsDB bool
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an already-opened and migrated database. The pool
// is pinned to one connection. The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil database")
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: sqlx.NewDb(db, "sqlite3")}, nil
}

// withLock runs fn while holding the store lock. The lock is released on
// every return path, including panics.
func (s *SQLiteStore) withLock(fn func(db *sqlx.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return fn(s.db)
}

// withTx runs fn inside one transaction under the store lock. Errors
// returned by fn roll everything back; begin and commit failures surface
// as *TxError.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return s.withLock(func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return &TxError{Op: "begin", Err: err}
		}
		defer tx.Rollback() //nolint:errcheck

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return &TxError{Op: "commit", Err: err}
		}
		return nil
	})
}

// GetURL looks up a canonical URL by its url string.
func (s *SQLiteStore) GetURL(ctx context.Context, rawURL string) (*URLRecord, error) {
	var rec *URLRecord
	err := s.withLock(func(db *sqlx.DB) error {
		var row urlRow
		err := db.GetContext(ctx, &row, `
			SELECT id, url, COALESCE(title, '') AS title, domain, first_seen, last_seen
			FROM url WHERE url = ?
		`, rawURL)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("url %s: %w", rawURL, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get url: %w", err)
		}
		r := row.record()
		rec = &r
		return nil
	})
	return rec, err
}

// Close marks the store closed and closes the database if Open created it.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// urlRow is the scan target for url columns.
type urlRow struct {
	ID        string `db:"id"`
	URL       string `db:"url"`
	Title     string `db:"title"`
	Domain    string `db:"domain"`
	FirstSeen int64  `db:"first_seen"`
	LastSeen  int64  `db:"last_seen"`
}

func (r urlRow) record() URLRecord {
	return URLRecord{
		ID:        r.ID,
		URL:       r.URL,
		Title:     r.Title,
		Domain:    r.Domain,
		FirstSeen: fromUnix(r.FirstSeen),
		LastSeen:  fromUnix(r.LastSeen),
	}
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
