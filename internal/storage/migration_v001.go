package storage

import "database/sql"

// migrateV001 creates the canonical schema: url, visit, metadata and the
// schema_version tracker. Timestamps are stored as Unix seconds (UTC).
// Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS url (
			id         TEXT PRIMARY KEY,
			url        TEXT NOT NULL UNIQUE,
			title      TEXT,
			domain     TEXT NOT NULL DEFAULT '',
			first_seen INTEGER NOT NULL,
			last_seen  INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS visit (
			id           TEXT PRIMARY KEY,
			url_id       TEXT NOT NULL REFERENCES url(id) ON DELETE CASCADE,
			visited_at   INTEGER NOT NULL,
			visit_count  INTEGER NOT NULL DEFAULT 1,
			source_file  TEXT NOT NULL,
			device_name  TEXT,
			duration_sec REAL
		)`,

		`CREATE TABLE IF NOT EXISTS metadata (
			url_id        TEXT NOT NULL UNIQUE REFERENCES url(id) ON DELETE CASCADE,
			summary       TEXT,
			keywords      TEXT,
			tags          TEXT,
			topic_cluster TEXT,
			is_enriched   BOOLEAN NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_url_domain         ON url(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_url_last_seen      ON url(last_seen)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_url_id       ON visit(url_id)`,
		`CREATE INDEX IF NOT EXISTS idx_visit_visited_at   ON visit(visited_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_visit_identity ON visit(url_id, visited_at, source_file)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_enriched  ON metadata(is_enriched)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
