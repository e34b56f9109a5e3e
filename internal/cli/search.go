package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/historian/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	if c.Limit == 0 && c.Offset == 0 {
		c.Limit = sess.cfg.Search.DefaultLimit
	}
	return c.executeWithStore(sess.store, args)
}

// buildQuery turns flags and positional words into a storage query.
func (c *SearchCommand) buildQuery(args []string, now time.Time) (storage.SearchQuery, error) {
	if c.Limit < 0 || c.Offset < 0 {
		return storage.SearchQuery{}, fmt.Errorf("--limit and --offset must not be negative")
	}

	start, end, err := parseRange(c.Start, c.End)
	if err != nil {
		return storage.SearchQuery{}, err
	}
	if c.Since != "" {
		dur, err := parseDuration(c.Since)
		if err != nil {
			return storage.SearchQuery{}, fmt.Errorf("invalid --since value %q: %w", c.Since, err)
		}
		if since := now.Add(-dur).UTC(); since.After(start) {
			start = since
		}
	}

	return storage.SearchQuery{
		Query:  strings.TrimSpace(strings.Join(args, " ")),
		Domain: c.Domain,
		Start:  start,
		End:    end,
		Limit:  c.Limit,
		Offset: c.Offset,
	}, nil
}

// executeWithStore runs the search against a provided store (for testing).
func (c *SearchCommand) executeWithStore(store storage.Store, args []string) error {
	sq, err := c.buildQuery(args, time.Now())
	if err != nil {
		return err
	}

	results, err := store.Search(context.Background(), sq)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return c.printJSON(sq, results)
	}
	c.printHuman(sq, results)
	return nil
}

func (c *SearchCommand) printHuman(sq storage.SearchQuery, res *storage.SearchResults) {
	if len(res.Results) == 0 {
		if sq.Query != "" {
			fmt.Printf("No results found for %q\n", sq.Query)
		} else {
			fmt.Println("No results found")
		}
		return
	}

	shown := int64(len(res.Results))
	header := fmt.Sprintf("Showing %d of %s %s", shown, formatNumber(res.TotalCount),
		plural(res.TotalCount, "result", "results"))
	if sq.Query != "" {
		header += fmt.Sprintf(" for %q", sq.Query)
	}
	fmt.Println(header)
	fmt.Println()

	for i, r := range res.Results {
		title := r.URL.Title
		if title == "" {
			title = r.URL.URL
		}
		fmt.Printf("%d. %s", i+1+sq.Offset, title)
		if r.URL.Domain != "" {
			fmt.Printf(" (%s)", r.URL.Domain)
		}
		fmt.Println()
		fmt.Printf("   %s\n", r.URL.URL)

		meta := fmt.Sprintf("%s %s", formatNumber(r.VisitCount), plural(r.VisitCount, "visit", "visits"))
		if r.LastVisit != nil {
			meta += " · last " + r.LastVisit.Local().Format("2006-01-02 15:04")
		}
		if r.Metadata != nil && r.Metadata.Tags != "" {
			meta += " · " + r.Metadata.Tags
		}
		fmt.Printf("   %s\n", meta)

		if i < len(res.Results)-1 {
			fmt.Println()
		}
	}
}

type jsonMetadata struct {
	Summary      string `json:"summary,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Tags         string `json:"tags,omitempty"`
	TopicCluster string `json:"topic_cluster,omitempty"`
	IsEnriched   bool   `json:"is_enriched"`
}

type jsonURL struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Domain    string `json:"domain"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

type jsonResult struct {
	jsonURL
	VisitCount int64         `json:"visit_count"`
	LastVisit  string        `json:"last_visit,omitempty"`
	Metadata   *jsonMetadata `json:"metadata,omitempty"`
}

type jsonSearchOutput struct {
	Query      string       `json:"query"`
	TotalCount int64        `json:"total_count"`
	Count      int          `json:"count"`
	Limit      int          `json:"limit,omitempty"`
	Offset     int          `json:"offset,omitempty"`
	Results    []jsonResult `json:"results"`
}

func toJSONURL(u storage.URLRecord) jsonURL {
	return jsonURL{
		ID:        u.ID,
		URL:       u.URL,
		Title:     u.Title,
		Domain:    u.Domain,
		FirstSeen: formatTime(u.FirstSeen),
		LastSeen:  formatTime(u.LastSeen),
	}
}

func (c *SearchCommand) printJSON(sq storage.SearchQuery, res *storage.SearchResults) error {
	out := jsonSearchOutput{
		Query:      sq.Query,
		TotalCount: res.TotalCount,
		Count:      len(res.Results),
		Limit:      sq.Limit,
		Offset:     sq.Offset,
		Results:    make([]jsonResult, len(res.Results)),
	}

	for i, r := range res.Results {
		jr := jsonResult{jsonURL: toJSONURL(r.URL), VisitCount: r.VisitCount}
		if r.LastVisit != nil {
			jr.LastVisit = formatTime(*r.LastVisit)
		}
		if m := r.Metadata; m != nil {
			jr.Metadata = &jsonMetadata{
				Summary:      m.Summary,
				Keywords:     m.Keywords,
				Tags:         m.Tags,
				TopicCluster: m.TopicCluster,
				IsEnriched:   m.IsEnriched,
			}
		}
		out.Results[i] = jr
	}

	return writeJSON(out)
}
