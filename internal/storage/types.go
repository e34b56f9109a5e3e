package storage

import (
	"fmt"
	"time"
)

// URLRecord is a row of the canonical url table.
type URLRecord struct {
	ID        string
	URL       string
	Title     string
	Domain    string
	FirstSeen time.Time
	LastSeen  time.Time
}

// VisitRecord is a row of the canonical visit table.
type VisitRecord struct {
	ID          string
	URLID       string
	VisitedAt   time.Time
	VisitCount  int
	SourceFile  string
	DeviceName  string
	DurationSec *float64
}

// MetadataRecord holds enrichment for one URL. An empty record with
// IsEnriched false never overwrites an existing one.
type MetadataRecord struct {
	URLID        string
	Summary      string
	Keywords     string
	Tags         string
	TopicCluster string
	IsEnriched   bool
}

// IngestStats summarises one batch merge. Errors are per-record and never
// cause the batch itself to fail.
type IngestStats struct {
	SourceFile       string
	URLsInserted     int
	URLsUpdated      int
	VisitsInserted   int
	VisitsSkipped    int
	MetadataInserted int
	MetadataUpdated  int
	Errors           []string
}

// TotalInserted returns the number of new rows across all tables.
func (s *IngestStats) TotalInserted() int {
	return s.URLsInserted + s.VisitsInserted + s.MetadataInserted
}

// HasErrors reports whether any record failed to merge.
func (s *IngestStats) HasErrors() bool {
	return len(s.Errors) > 0
}

// SearchQuery defines filters for searching URLs. Zero values mean the
// filter is not applied; Limit and Offset of 0 mean "not supplied".
type SearchQuery struct {
	Query  string
	Domain string
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}

// SearchResult is one URL with its visit aggregate and metadata.
type SearchResult struct {
	URL        URLRecord
	Metadata   *MetadataRecord
	VisitCount int64
	LastVisit  *time.Time
}

// SearchResults is a page of results plus the unpaginated total.
type SearchResults struct {
	Results    []SearchResult
	TotalCount int64
}

// GroupBy selects the timeline bucketing mode.
type GroupBy string

const (
	GroupByHour   GroupBy = "hour"
	GroupByDay    GroupBy = "day"
	GroupByDomain GroupBy = "domain"
)

// ParseGroupBy validates a grouping name. An empty name means day.
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case "":
		return GroupByDay, nil
	case GroupByHour, GroupByDay, GroupByDomain:
		return GroupBy(s), nil
	default:
		return "", fmt.Errorf("%w: %q (use hour, day, or domain)", ErrInvalidGroupBy, s)
	}
}

// TimelineQuery defines a timeline request.
type TimelineQuery struct {
	Start   time.Time
	End     time.Time
	Domain  string
	GroupBy GroupBy
}

// URLWithVisits is a sample URL inside a timeline bucket.
type URLWithVisits struct {
	URL        URLRecord
	VisitCount int64
	LastVisit  time.Time
}

// Bucket is one timeline group. Which key field is meaningful depends on
// Group: Hour for hour, Date for day, Domain for domain. Timestamp is the
// earliest visit for hour buckets, the UTC date for day buckets, and the
// latest visit for domain buckets.
type Bucket struct {
	Group     GroupBy
	Hour      int
	Date      time.Time
	Domain    string
	Count     int64
	Timestamp time.Time
	URLs      []URLWithVisits
}

// Stats holds aggregate statistics about the canonical store.
type Stats struct {
	URLCount      int64
	VisitCount    int64
	DomainCount   int64
	EnrichedCount int64
	FirstVisit    time.Time
	LastVisit     time.Time
	TopDomains    []DomainCount
}

// DomainCount pairs a domain with its visit count.
type DomainCount struct {
	Domain string
	Count  int64
}
