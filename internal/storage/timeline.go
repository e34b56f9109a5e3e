package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	samplesPerBucket = 5
	maxDomainBuckets = 100
)

// bucketStrategy describes one timeline grouping: the SQL expression that
// yields the bucket key, the representative timestamp aggregate, the bucket
// ordering and an optional cap. Every mode runs through the same query.
type bucketStrategy struct {
	keyExpr string
	tsExpr  string
	orderBy string
	limit   int
	decode  func(b *Bucket, key string, ts int64) error
}

var bucketStrategies = map[GroupBy]bucketStrategy{
	GroupByHour: {
		keyExpr: "strftime('%H', v.visited_at, 'unixepoch')",
		tsExpr:  "MIN(v.visited_at)",
		orderBy: "cnt DESC, bucket_key ASC",
		decode: func(b *Bucket, key string, ts int64) error {
			h, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("parse hour %q: %w", key, err)
			}
			b.Hour = h
			b.Timestamp = fromUnix(ts)
			return nil
		},
	},
	GroupByDay: {
		keyExpr: "date(v.visited_at, 'unixepoch')",
		tsExpr:  "MIN(v.visited_at)",
		orderBy: "bucket_key DESC",
		decode: func(b *Bucket, key string, _ int64) error {
			d, err := time.ParseInLocation(time.DateOnly, key, time.UTC)
			if err != nil {
				return fmt.Errorf("parse date %q: %w", key, err)
			}
			b.Date = d
			b.Timestamp = d
			return nil
		},
	},
	GroupByDomain: {
		keyExpr: "u.domain",
		tsExpr:  "MAX(v.visited_at)",
		orderBy: "cnt DESC, bucket_key ASC",
		limit:   maxDomainBuckets,
		decode: func(b *Bucket, key string, ts int64) error {
			b.Domain = key
			b.Timestamp = fromUnix(ts)
			return nil
		},
	},
}

type bucketRow struct {
	Key   string `db:"bucket_key"`
	Count int64  `db:"cnt"`
	TS    int64  `db:"ts"`
}

type sampleRow struct {
	urlRow
	VisitCount int64 `db:"visit_count"`
	LastVisit  int64 `db:"last_visit"`
}

// Timeline groups matching visits by hour of day, UTC calendar day or
// domain. Each bucket carries up to five sample URLs ranked by their visit
// count inside that bucket.
func (s *SQLiteStore) Timeline(ctx context.Context, q TimelineQuery) ([]Bucket, error) {
	group := q.GroupBy
	if group == "" {
		group = GroupByDay
	}
	strat, ok := bucketStrategies[group]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroupBy, q.GroupBy)
	}

	w := &whereBuilder{}
	w.applyRange(q.Start, q.End, q.Domain)

	query := fmt.Sprintf(`
		SELECT %s AS bucket_key, COUNT(*) AS cnt, %s AS ts
		FROM visit v
		JOIN url u ON u.id = v.url_id
		%s
		GROUP BY bucket_key
		ORDER BY %s
	`, strat.keyExpr, strat.tsExpr, w.where(), strat.orderBy)
	if strat.limit > 0 {
		query += fmt.Sprintf("LIMIT %d", strat.limit)
	}

	var buckets []Bucket
	err := s.withLock(func(db *sqlx.DB) error {
		var rows []bucketRow
		if err := db.SelectContext(ctx, &rows, query, w.values()...); err != nil {
			return fmt.Errorf("timeline %s: %w", group, err)
		}

		buckets = make([]Bucket, 0, len(rows))
		for _, r := range rows {
			b := Bucket{Group: group, Count: r.Count}
			if err := strat.decode(&b, r.Key, r.TS); err != nil {
				return err
			}
			samples, err := bucketSamples(ctx, db, strat, w, r.Key)
			if err != nil {
				return err
			}
			b.URLs = samples
			buckets = append(buckets, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

func bucketSamples(ctx context.Context, db *sqlx.DB, strat bucketStrategy, base *whereBuilder, key string) ([]URLWithVisits, error) {
	w := base.clone()
	w.add(strat.keyExpr+" = ?", key)

	query := fmt.Sprintf(`
		SELECT u.id, u.url, COALESCE(u.title, '') AS title, u.domain, u.first_seen, u.last_seen,
			COUNT(v.id) AS visit_count, MAX(v.visited_at) AS last_visit
		FROM visit v
		JOIN url u ON u.id = v.url_id
		%s
		GROUP BY u.id
		ORDER BY visit_count DESC, last_visit DESC, u.url ASC
		LIMIT %d
	`, w.where(), samplesPerBucket)

	var rows []sampleRow
	if err := db.SelectContext(ctx, &rows, query, w.values()...); err != nil {
		return nil, fmt.Errorf("timeline samples for %q: %w", key, err)
	}

	out := make([]URLWithVisits, 0, len(rows))
	for _, r := range rows {
		out = append(out, URLWithVisits{
			URL:        r.record(),
			VisitCount: r.VisitCount,
			LastVisit:  fromUnix(r.LastVisit),
		})
	}
	return out, nil
}
