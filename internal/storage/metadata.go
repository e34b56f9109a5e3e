package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type metadataRow struct {
	URLID        string         `db:"url_id"`
	Summary      sql.NullString `db:"summary"`
	Keywords     sql.NullString `db:"keywords"`
	Tags         sql.NullString `db:"tags"`
	TopicCluster sql.NullString `db:"topic_cluster"`
	IsEnriched   bool           `db:"is_enriched"`
}

// GetMetadata returns the metadata record for a URL id.
func (s *SQLiteStore) GetMetadata(ctx context.Context, urlID string) (*MetadataRecord, error) {
	var rec *MetadataRecord
	err := s.withLock(func(db *sqlx.DB) error {
		var row metadataRow
		err := db.GetContext(ctx, &row, `
			SELECT url_id, summary, keywords, tags, topic_cluster, is_enriched
			FROM metadata WHERE url_id = ?
		`, urlID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("metadata for %s: %w", urlID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get metadata: %w", err)
		}
		rec = &MetadataRecord{
			URLID:        row.URLID,
			Summary:      row.Summary.String,
			Keywords:     row.Keywords.String,
			Tags:         row.Tags.String,
			TopicCluster: row.TopicCluster.String,
			IsEnriched:   row.IsEnriched,
		}
		return nil
	})
	return rec, err
}

// MergeMetadata applies the ingestion metadata rule to a single record in
// its own transaction: insert when the URL has none, overwrite only when m
// is enriched. It reports whether anything was written. The URL must exist.
func (s *SQLiteStore) MergeMetadata(ctx context.Context, m MetadataRecord) (bool, error) {
	var changed bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM url WHERE id = ?", m.URLID); err != nil {
			return fmt.Errorf("lookup url: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("url %s: %w", m.URLID, ErrNotFound)
		}
		outcome, err := mergeMetadata(ctx, tx, m)
		if err != nil {
			return err
		}
		changed = outcome != outcomeUnchanged
		return nil
	})
	return changed, err
}
