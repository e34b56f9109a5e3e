package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/runnerr0/historian/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	URLs              int64             `json:"urls"`
	Visits            int64             `json:"visits"`
	Domains           int64             `json:"domains"`
	Enriched          int64             `json:"enriched"`
	FirstVisit        string            `json:"first_visit,omitempty"`
	LastVisit         string            `json:"last_visit,omitempty"`
	TopDomains        []domainCountJSON `json:"top_domains"`
}

type domainCountJSON struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	c.dbPath = sess.dbPath
	return c.executeWithStore(sess.store)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store) error {
	stats, err := store.GetStats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := databaseSize(c.dbPath)

	if jsonOutput(c.globals) {
		return c.printStatusJSON(stats, dbSize)
	}
	c.printStatusHuman(stats, dbSize)
	return nil
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbSize int64) {
	fmt.Println("Historian Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	if c.dbPath != "" {
		fmt.Printf("Database:      %s (%s)\n", c.dbPath, formatBytes(dbSize))
	}
	fmt.Printf("URLs:          %s\n", formatNumber(stats.URLCount))
	fmt.Printf("Visits:        %s\n", formatNumber(stats.VisitCount))
	fmt.Printf("Domains:       %s\n", formatNumber(stats.DomainCount))

	// Enriched with percentage
	if stats.URLCount > 0 {
		pct := float64(stats.EnrichedCount) / float64(stats.URLCount) * 100
		fmt.Printf("Enriched:      %s (%.1f%%)\n", formatNumber(stats.EnrichedCount), pct)
	} else {
		fmt.Printf("Enriched:      %s\n", formatNumber(stats.EnrichedCount))
	}

	if stats.VisitCount > 0 {
		fmt.Printf("First visit:   %s\n", stats.FirstVisit.Local().Format("2006-01-02"))
		fmt.Printf("Last visit:    %s\n", stats.LastVisit.Local().Format("2006-01-02"))
	}

	if len(stats.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-30s %s\n", d.Domain, formatNumber(d.Count))
		}
	}
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbSize int64) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      c.dbPath,
		DatabaseSizeBytes: dbSize,
		URLs:              stats.URLCount,
		Visits:            stats.VisitCount,
		Domains:           stats.DomainCount,
		Enriched:          stats.EnrichedCount,
		FirstVisit:        formatTime(stats.FirstVisit),
		LastVisit:         formatTime(stats.LastVisit),
		TopDomains:        make([]domainCountJSON, len(stats.TopDomains)),
	}

	for i, d := range stats.TopDomains {
		out.TopDomains[i] = domainCountJSON{Domain: d.Domain, Count: d.Count}
	}

	return writeJSON(out)
}

// databaseSize returns the size of the database file plus its WAL, or 0
// when the path is empty or in-memory.
func databaseSize(path string) int64 {
	if path == "" || path == ":memory:" {
		return 0
	}
	var total int64
	for _, p := range []string{path, path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}
