package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const topDomainLimit = 10

// GetStats returns aggregate counts over the whole store.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{TopDomains: []DomainCount{}}
	err := s.withLock(func(db *sqlx.DB) error {
		var counts struct {
			URLs     int64         `db:"urls"`
			Visits   int64         `db:"visits"`
			Domains  int64         `db:"domains"`
			Enriched int64         `db:"enriched"`
			First    sql.NullInt64 `db:"first_visit"`
			Last     sql.NullInt64 `db:"last_visit"`
		}
		err := db.GetContext(ctx, &counts, `
			SELECT
				(SELECT COUNT(*) FROM url) AS urls,
				(SELECT COUNT(*) FROM visit) AS visits,
				(SELECT COUNT(DISTINCT domain) FROM url) AS domains,
				(SELECT COUNT(*) FROM metadata WHERE is_enriched = 1) AS enriched,
				(SELECT MIN(visited_at) FROM visit) AS first_visit,
				(SELECT MAX(visited_at) FROM visit) AS last_visit
		`)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		stats.URLCount = counts.URLs
		stats.VisitCount = counts.Visits
		stats.DomainCount = counts.Domains
		stats.EnrichedCount = counts.Enriched
		if counts.First.Valid {
			stats.FirstVisit = fromUnix(counts.First.Int64)
		}
		if counts.Last.Valid {
			stats.LastVisit = fromUnix(counts.Last.Int64)
		}

		var top []struct {
			Domain string `db:"domain"`
			Count  int64  `db:"cnt"`
		}
		err = db.SelectContext(ctx, &top, `
			SELECT u.domain AS domain, COUNT(v.id) AS cnt
			FROM visit v
			JOIN url u ON u.id = v.url_id
			GROUP BY u.domain
			ORDER BY cnt DESC, u.domain ASC
			LIMIT ?
		`, topDomainLimit)
		if err != nil {
			return fmt.Errorf("get top domains: %w", err)
		}
		for _, d := range top {
			stats.TopDomains = append(stats.TopDomains, DomainCount{Domain: d.Domain, Count: d.Count})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
