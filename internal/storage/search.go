package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type searchRow struct {
	urlRow
	VisitCount   int64          `db:"visit_count"`
	LastVisit    sql.NullInt64  `db:"last_visit"`
	MetaURLID    sql.NullString `db:"meta_url_id"`
	Summary      sql.NullString `db:"summary"`
	Keywords     sql.NullString `db:"keywords"`
	Tags         sql.NullString `db:"tags"`
	TopicCluster sql.NullString `db:"topic_cluster"`
	IsEnriched   sql.NullBool   `db:"is_enriched"`
}

func (r searchRow) result() SearchResult {
	res := SearchResult{URL: r.record(), VisitCount: r.VisitCount}
	if r.LastVisit.Valid {
		t := fromUnix(r.LastVisit.Int64)
		res.LastVisit = &t
	}
	if r.MetaURLID.Valid {
		res.Metadata = &MetadataRecord{
			URLID:        r.MetaURLID.String,
			Summary:      r.Summary.String,
			Keywords:     r.Keywords.String,
			Tags:         r.Tags.String,
			TopicCluster: r.TopicCluster.String,
			IsEnriched:   r.IsEnriched.Bool,
		}
	}
	return res
}

// searchFilter builds the conditions shared by the page query and the
// count query.
func searchFilter(q SearchQuery) *whereBuilder {
	w := &whereBuilder{}
	if q.Query != "" {
		p := likePattern(q.Query)
		w.add(`(u.url LIKE ? ESCAPE '\' OR u.title LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM metadata mq WHERE mq.url_id = u.id AND (
				mq.summary LIKE ? ESCAPE '\' OR mq.keywords LIKE ? ESCAPE '\' OR mq.tags LIKE ? ESCAPE '\')))`,
			p, p, p, p, p)
	}
	w.applyRange(q.Start, q.End, q.Domain)
	return w
}

// Search returns URLs matching the query, most recently visited first.
// TotalCount is the unpaginated match count; it equals len(Results) when
// neither Limit nor Offset is supplied.
func (s *SQLiteStore) Search(ctx context.Context, q SearchQuery) (*SearchResults, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("invalid pagination: limit %d offset %d", q.Limit, q.Offset)
	}

	w := searchFilter(q)
	page, pageArgs := limitClause(q.Limit, q.Offset)
	query := fmt.Sprintf(`
		SELECT u.id, u.url, COALESCE(u.title, '') AS title, u.domain, u.first_seen, u.last_seen,
			COUNT(v.id) AS visit_count, MAX(v.visited_at) AS last_visit,
			m.url_id AS meta_url_id, m.summary, m.keywords, m.tags, m.topic_cluster, m.is_enriched
		FROM url u
		LEFT JOIN visit v ON v.url_id = u.id
		LEFT JOIN metadata m ON m.url_id = u.id
		%s
		GROUP BY u.id
		ORDER BY last_visit DESC, u.url ASC
		%s
	`, w.where(), page)

	out := &SearchResults{Results: []SearchResult{}}
	err := s.withLock(func(db *sqlx.DB) error {
		var rows []searchRow
		if err := db.SelectContext(ctx, &rows, query, append(w.values(), pageArgs...)...); err != nil {
			return fmt.Errorf("search: %w", err)
		}
		for _, r := range rows {
			out.Results = append(out.Results, r.result())
		}

		if q.Limit == 0 && q.Offset == 0 {
			out.TotalCount = int64(len(out.Results))
			return nil
		}
		countQuery := fmt.Sprintf(`
			SELECT COUNT(DISTINCT u.id)
			FROM url u
			LEFT JOIN visit v ON v.url_id = u.id
			%s
		`, w.where())
		if err := db.GetContext(ctx, &out.TotalCount, countQuery, w.values()...); err != nil {
			return fmt.Errorf("search count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
