package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/runnerr0/historian/internal/extract"
)

type mergeOutcome int

const (
	outcomeUnchanged mergeOutcome = iota
	outcomeInserted
	outcomeUpdated
)

// IngestBatch merges one extraction batch into the canonical store inside a
// single transaction. URLs (with their metadata) are merged before visits.
// A record that fails to merge is rolled back on its own and reported in
// IngestStats.Errors; only transaction-level failures reject the batch.
func (s *SQLiteStore) IngestBatch(ctx context.Context, b *extract.Batch) (*IngestStats, error) {
	if b == nil {
		return nil, errors.New("nil batch")
	}

	var stats *IngestStats
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		stats, err = mergeBatch(ctx, tx, b)
		return err
	})
	if err != nil {
		zap.L().Error("batch rejected", zap.String("file", b.Source.FilePath), zap.Error(err))
		return nil, err
	}

	zap.L().Info("batch ingested",
		zap.String("file", stats.SourceFile),
		zap.Int("urls_inserted", stats.URLsInserted),
		zap.Int("urls_updated", stats.URLsUpdated),
		zap.Int("visits_inserted", stats.VisitsInserted),
		zap.Int("visits_skipped", stats.VisitsSkipped),
		zap.Int("metadata_inserted", stats.MetadataInserted),
		zap.Int("errors", len(stats.Errors)),
	)
	return stats, nil
}

func mergeBatch(ctx context.Context, tx *sqlx.Tx, b *extract.Batch) (*IngestStats, error) {
	stats := &IngestStats{SourceFile: b.Source.FilePath, Errors: []string{}}

	// Batch ids are fresh every run; map them onto the ids already in the
	// store so visits attach to the existing row for a known URL.
	resolved := make(map[string]string, len(b.URLs))

	for _, u := range b.URLs {
		var storeID string
		err := savepoint(ctx, tx, func() error {
			id, outcome, err := mergeURL(ctx, tx, u)
			if err != nil {
				return err
			}
			storeID = id
			switch outcome {
			case outcomeInserted:
				stats.URLsInserted++
			case outcomeUpdated:
				stats.URLsUpdated++
			}
			return nil
		})
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			stats.addError("failed to merge url %s: %v", u.URL, err)
			continue
		}
		resolved[u.ID] = storeID

		err = savepoint(ctx, tx, func() error {
			outcome, err := mergeMetadata(ctx, tx, MetadataRecord{URLID: storeID})
			if err != nil {
				return err
			}
			if outcome == outcomeInserted {
				stats.MetadataInserted++
			}
			return nil
		})
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			stats.addError("failed to merge metadata for url %s: %v", u.URL, err)
		}
	}

	for _, v := range b.Visits {
		urlID, ok := resolved[v.URLID]
		if !ok {
			stats.addError("failed to merge visit %s: url %s was not merged", v.ID, v.URLID)
			continue
		}
		err := savepoint(ctx, tx, func() error {
			outcome, err := mergeVisit(ctx, tx, v, urlID)
			if err != nil {
				return err
			}
			if outcome == outcomeInserted {
				stats.VisitsInserted++
			} else {
				stats.VisitsSkipped++
			}
			return nil
		})
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			stats.addError("failed to merge visit %s: %v", v.ID, err)
		}
	}

	for _, e := range stats.Errors {
		zap.L().Warn("merge error", zap.String("file", stats.SourceFile), zap.String("error", e))
	}
	return stats, nil
}

func (s *IngestStats) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// savepoint isolates one record: if fn fails, only its writes are undone
// and the surrounding transaction stays usable. Failures of the savepoint
// statements themselves are returned as *TxError.
func savepoint(ctx context.Context, tx *sqlx.Tx, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT merge_record"); err != nil {
		return &TxError{Op: "savepoint", Err: err}
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO merge_record"); rbErr != nil {
			return &TxError{Op: "rollback to savepoint", Err: rbErr}
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE merge_record"); relErr != nil {
			return &TxError{Op: "release savepoint", Err: relErr}
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE merge_record"); err != nil {
		return &TxError{Op: "release savepoint", Err: err}
	}
	return nil
}

func isFatal(err error) bool {
	var txErr *TxError
	return errors.As(err, &txErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// mergeURL inserts a URL keyed by its url string, or advances last_seen on
// the existing row. first_seen and the existing id are never changed.
func mergeURL(ctx context.Context, tx *sqlx.Tx, u extract.URL) (string, mergeOutcome, error) {
	var existing struct {
		ID       string `db:"id"`
		LastSeen int64  `db:"last_seen"`
	}
	err := tx.GetContext(ctx, &existing, "SELECT id, last_seen FROM url WHERE url = ?", u.URL)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO url (id, url, title, domain, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?)
		`, u.ID, u.URL, nullString(u.Title), u.Domain, u.FirstSeen.Unix(), u.LastSeen.Unix())
		if err != nil {
			return "", outcomeUnchanged, fmt.Errorf("insert url: %w", err)
		}
		return u.ID, outcomeInserted, nil
	case err != nil:
		return "", outcomeUnchanged, fmt.Errorf("lookup url: %w", err)
	}

	if u.LastSeen.Unix() <= existing.LastSeen {
		return existing.ID, outcomeUnchanged, nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE url SET last_seen = ? WHERE id = ?", u.LastSeen.Unix(), existing.ID,
	); err != nil {
		return "", outcomeUnchanged, fmt.Errorf("update last_seen: %w", err)
	}
	return existing.ID, outcomeUpdated, nil
}

// mergeMetadata inserts metadata for a URL that has none, and overwrites
// existing metadata only with an enriched record.
func mergeMetadata(ctx context.Context, tx *sqlx.Tx, m MetadataRecord) (mergeOutcome, error) {
	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM metadata WHERE url_id = ?", m.URLID); err != nil {
		return outcomeUnchanged, fmt.Errorf("lookup metadata: %w", err)
	}

	if count == 0 {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metadata (url_id, summary, keywords, tags, topic_cluster, is_enriched)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.URLID, nullString(m.Summary), nullString(m.Keywords), nullString(m.Tags),
			nullString(m.TopicCluster), m.IsEnriched)
		if err != nil {
			return outcomeUnchanged, fmt.Errorf("insert metadata: %w", err)
		}
		return outcomeInserted, nil
	}

	if !m.IsEnriched {
		return outcomeUnchanged, nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE metadata
		SET summary = ?, keywords = ?, tags = ?, topic_cluster = ?, is_enriched = ?
		WHERE url_id = ?
	`, nullString(m.Summary), nullString(m.Keywords), nullString(m.Tags),
		nullString(m.TopicCluster), m.IsEnriched, m.URLID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("update metadata: %w", err)
	}
	return outcomeUpdated, nil
}

// mergeVisit inserts a visit unless one with the same (url, visited_at,
// source_file) already exists.
func mergeVisit(ctx context.Context, tx *sqlx.Tx, v extract.Visit, urlID string) (mergeOutcome, error) {
	visitedAt := v.VisitedAt.Unix()

	var count int
	err := tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM visit WHERE url_id = ? AND visited_at = ? AND source_file = ?",
		urlID, visitedAt, v.SourceFile,
	)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("lookup visit: %w", err)
	}
	if count > 0 {
		return outcomeUnchanged, nil
	}

	var duration sql.NullFloat64
	if v.DurationSec != nil {
		duration = sql.NullFloat64{Float64: *v.DurationSec, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO visit (id, url_id, visited_at, visit_count, source_file, device_name, duration_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, urlID, visitedAt, v.VisitCount, v.SourceFile, nullString(v.DeviceName), duration)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("insert visit: %w", err)
	}
	return outcomeInserted, nil
}
