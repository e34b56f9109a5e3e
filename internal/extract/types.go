package extract

import (
	"fmt"
	"strings"
	"time"
)

// URL is a canonical URL record produced by extraction. IDs are minted
// fresh on every run; the URL string is the identity across merges.
type URL struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Domain    string    `json:"domain"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Visit is a single canonical visit to a URL.
type Visit struct {
	ID          string    `json:"id"`
	URLID       string    `json:"url_id"`
	VisitedAt   time.Time `json:"visited_at"`
	VisitCount  int       `json:"visit_count"`
	SourceFile  string    `json:"source_file"`
	DeviceName  string    `json:"device_name,omitempty"`
	DurationSec *float64  `json:"duration_sec,omitempty"`
}

// SourceInfo describes where a batch came from.
type SourceInfo struct {
	FilePath    string    `json:"file_path"`
	DeviceName  string    `json:"device_name,omitempty"`
	Format      string    `json:"format"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Batch holds everything extracted from one source file in one call.
type Batch struct {
	Source   SourceInfo `json:"source"`
	URLs     []URL      `json:"urls"`
	Visits   []Visit    `json:"visits"`
	Warnings []string   `json:"warnings"`
}

// NewBatch returns an empty batch for the given file.
func NewBatch(path, device string, extractedAt time.Time) *Batch {
	return &Batch{
		Source: SourceInfo{
			FilePath:    path,
			DeviceName:  device,
			ExtractedAt: extractedAt.UTC(),
		},
		URLs:     []URL{},
		Visits:   []Visit{},
		Warnings: []string{},
	}
}

// Warn records a row-scoped, non-fatal problem.
func (b *Batch) Warn(format string, args ...any) {
	b.Warnings = append(b.Warnings, fmt.Sprintf(format, args...))
}

// TotalItems returns the number of URLs plus visits.
func (b *Batch) TotalItems() int {
	return len(b.URLs) + len(b.Visits)
}

// DropDomains removes URLs whose domain equals, or is a subdomain of, one
// of domains, together with their visits. It returns the number of URLs
// removed.
func (b *Batch) DropDomains(domains []string) int {
	if len(domains) == 0 {
		return 0
	}

	dropped := make(map[string]bool)
	urls := b.URLs[:0]
	for _, u := range b.URLs {
		if matchesDomain(u.Domain, domains) {
			dropped[u.ID] = true
			continue
		}
		urls = append(urls, u)
	}
	b.URLs = urls

	visits := b.Visits[:0]
	for _, v := range b.Visits {
		if !dropped[v.URLID] {
			visits = append(visits, v)
		}
	}
	b.Visits = visits

	return len(dropped)
}

func matchesDomain(domain string, domains []string) bool {
	domain = strings.ToLower(domain)
	for _, d := range domains {
		d = strings.ToLower(d)
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
