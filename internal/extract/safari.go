package extract

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	safariItemsTable  = "history_items"
	safariVisitsTable = "history_visits"
)

// SafariSource reads Safari History.db files.
type SafariSource struct{}

// Name implements Source.
func (SafariSource) Name() string { return "safari" }

// Validate checks that both required Safari tables are present.
func (s SafariSource) Validate(ctx context.Context, db *sqlx.DB) error {
	for _, table := range []string{safariItemsTable, safariVisitsTable} {
		ok, err := tableExists(ctx, db, table)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		if !ok {
			return &SchemaError{Format: s.Name(), Table: table}
		}
	}
	return nil
}

// safariItem is one row of history_items. Every column is scanned as
// nullable so a single bad value turns into a warning, not a crash.
type safariItem struct {
	ID        sql.NullInt64   `db:"id"`
	URL       sql.NullString  `db:"url"`
	Title     sql.NullString  `db:"title"`
	Domain    sql.NullString  `db:"domain"`
	FirstSeen sql.NullFloat64 `db:"first_visit"`
	LastSeen  sql.NullFloat64 `db:"last_visit"`
}

// safariVisit is one row of history_visits.
type safariVisit struct {
	ID          sql.NullInt64   `db:"id"`
	HistoryItem sql.NullInt64   `db:"history_item"`
	VisitTime   sql.NullFloat64 `db:"visit_time"`
}

// Extract implements Source. URLs are read first so that visits can be
// resolved through the per-file foreign id map.
func (s SafariSource) Extract(ctx context.Context, db *sqlx.DB, b *Batch, newID func() string) error {
	b.Source.Format = s.Name()

	ids, err := s.extractURLs(ctx, db, b, newID)
	if err != nil {
		return err
	}
	return s.extractVisits(ctx, db, b, ids, newID)
}

func (s SafariSource) extractURLs(ctx context.Context, db *sqlx.DB, b *Batch, newID func() string) (map[int64]string, error) {
	rows, err := db.QueryxContext(ctx, `
		SELECT id, url, title, domain,
		       visit_time        AS first_visit,
		       last_visited_time AS last_visit
		FROM history_items
	`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", safariItemsTable, err)
	}
	defer rows.Close()

	ids := make(map[int64]string)
	n := 0
	for rows.Next() {
		n++
		var item safariItem
		if err := rows.StructScan(&item); err != nil {
			b.Warn("failed to process url row %d: %v", n, &ParseError{Msg: err.Error()})
			continue
		}
		u, err := urlFromItem(item)
		if err != nil {
			b.Warn("failed to process url %d: %v", item.ID.Int64, err)
			continue
		}
		u.ID = newID()
		b.URLs = append(b.URLs, u)
		ids[item.ID.Int64] = u.ID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", safariItemsTable, err)
	}
	return ids, nil
}

func (s SafariSource) extractVisits(ctx context.Context, db *sqlx.DB, b *Batch, ids map[int64]string, newID func() string) error {
	rows, err := db.QueryxContext(ctx, `
		SELECT id, history_item, visit_time
		FROM history_visits
		ORDER BY visit_time DESC
	`)
	if err != nil {
		return fmt.Errorf("query %s: %w", safariVisitsTable, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
		var row safariVisit
		if err := rows.StructScan(&row); err != nil {
			b.Warn("failed to process visit row %d: %v", n, &ParseError{Msg: err.Error()})
			continue
		}
		if !row.HistoryItem.Valid {
			b.Warn("failed to process visit %d: %v", row.ID.Int64, &ParseError{Field: "history_item", Msg: "missing url reference"})
			continue
		}
		if !row.VisitTime.Valid {
			b.Warn("failed to process visit %d: %v", row.ID.Int64, &ParseError{Field: "visit_time", Msg: "missing value"})
			continue
		}
		visitedAt, err := macFloatToUTC(row.VisitTime.Float64)
		if err != nil {
			b.Warn("failed to process visit %d: %v", row.ID.Int64, err)
			continue
		}
		urlID, ok := ids[row.HistoryItem.Int64]
		if !ok {
			b.Warn("failed to process visit %d: visit references unknown url id %d", row.ID.Int64, row.HistoryItem.Int64)
			continue
		}
		b.Visits = append(b.Visits, Visit{
			ID:         newID(),
			URLID:      urlID,
			VisitedAt:  visitedAt,
			VisitCount: 1,
			SourceFile: b.Source.FilePath,
			DeviceName: b.Source.DeviceName,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s: %w", safariVisitsTable, err)
	}
	return nil
}

// urlFromItem validates a history_items row and converts it. The ID is
// left for the caller to mint.
func urlFromItem(item safariItem) (URL, error) {
	if !item.ID.Valid {
		return URL{}, &ParseError{Field: "id", Msg: "missing value"}
	}
	raw := strings.TrimSpace(item.URL.String)
	if raw == "" {
		return URL{}, &ParseError{Field: "url", Msg: "missing value"}
	}

	domain := strings.TrimSpace(item.Domain.String)
	if domain == "" {
		host, err := extractDomain(raw)
		if err != nil {
			return URL{}, err
		}
		domain = host
	}

	if !item.FirstSeen.Valid {
		return URL{}, &ParseError{Field: "visit_time", Msg: "missing value"}
	}
	if !item.LastSeen.Valid {
		return URL{}, &ParseError{Field: "last_visited_time", Msg: "missing value"}
	}
	firstSeen, err := macFloatToUTC(item.FirstSeen.Float64)
	if err != nil {
		return URL{}, err
	}
	lastSeen, err := macFloatToUTC(item.LastSeen.Float64)
	if err != nil {
		return URL{}, err
	}

	return URL{
		URL:       raw,
		Title:     item.Title.String,
		Domain:    domain,
		FirstSeen: firstSeen,
		LastSeen:  lastSeen,
	}, nil
}

// extractDomain pulls the hostname from a URL string.
func extractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &ParseError{Field: "url", Msg: fmt.Sprintf("invalid url: %s", rawURL)}
	}
	if u.Hostname() == "" {
		return "", &ParseError{Field: "url", Msg: fmt.Sprintf("url has no host: %s", rawURL)}
	}
	return u.Hostname(), nil
}
