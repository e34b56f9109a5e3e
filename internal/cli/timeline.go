package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runnerr0/historian/internal/storage"
)

const barWidth = 40

// Execute implements the go-flags Commander interface for TimelineCommand.
func (c *TimelineCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithStore(sess.store)
}

// executeWithStore builds the timeline against a provided store (for testing).
func (c *TimelineCommand) executeWithStore(store storage.Store) error {
	group, err := storage.ParseGroupBy(c.GroupBy)
	if err != nil {
		return err
	}
	start, end, err := parseRange(c.Start, c.End)
	if err != nil {
		return err
	}

	buckets, err := store.Timeline(context.Background(), storage.TimelineQuery{
		Start:   start,
		End:     end,
		Domain:  c.Domain,
		GroupBy: group,
	})
	if err != nil {
		return fmt.Errorf("timeline failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return writeJSON(timelineJSON(group, buckets))
	}
	printTimelineHuman(group, buckets)
	return nil
}

type jsonSample struct {
	jsonURL
	VisitCount int64  `json:"visit_count"`
	LastVisit  string `json:"last_visit"`
}

// jsonBucket carries exactly one of Hour, Date or Domain, matching the
// grouping mode.
type jsonBucket struct {
	Hour      *int         `json:"hour,omitempty"`
	Date      string       `json:"date,omitempty"`
	Domain    string       `json:"domain,omitempty"`
	Count     int64        `json:"count"`
	Timestamp string       `json:"timestamp"`
	URLs      []jsonSample `json:"urls"`
}

type jsonTimelineOutput struct {
	GroupBy storage.GroupBy `json:"group_by"`
	Total   int64           `json:"total"`
	Buckets []jsonBucket    `json:"buckets"`
}

func timelineJSON(group storage.GroupBy, buckets []storage.Bucket) jsonTimelineOutput {
	out := jsonTimelineOutput{GroupBy: group, Buckets: make([]jsonBucket, len(buckets))}
	for i, b := range buckets {
		jb := jsonBucket{
			Count:     b.Count,
			Timestamp: formatTime(b.Timestamp),
			URLs:      make([]jsonSample, len(b.URLs)),
		}
		switch group {
		case storage.GroupByHour:
			hour := b.Hour
			jb.Hour = &hour
		case storage.GroupByDay:
			jb.Date = b.Date.Format(time.DateOnly)
		case storage.GroupByDomain:
			jb.Domain = b.Domain
		}
		for j, u := range b.URLs {
			jb.URLs[j] = jsonSample{
				jsonURL:    toJSONURL(u.URL),
				VisitCount: u.VisitCount,
				LastVisit:  formatTime(u.LastVisit),
			}
		}
		out.Total += b.Count
		out.Buckets[i] = jb
	}
	return out
}

func bucketLabel(group storage.GroupBy, b storage.Bucket) string {
	switch group {
	case storage.GroupByHour:
		return fmt.Sprintf("%02d:00", b.Hour)
	case storage.GroupByDay:
		return b.Date.Format(time.DateOnly)
	default:
		return b.Domain
	}
}

func printTimelineHuman(group storage.GroupBy, buckets []storage.Bucket) {
	if len(buckets) == 0 {
		fmt.Println("No visits found")
		return
	}

	var peak int64
	width := 0
	for _, b := range buckets {
		peak = max(peak, b.Count)
		width = max(width, len(bucketLabel(group, b)))
	}

	fmt.Printf("Visits by %s\n\n", group)
	for _, b := range buckets {
		bar := int(b.Count * barWidth / peak)
		fmt.Printf("%-*s  %-*s %s\n", width, bucketLabel(group, b),
			barWidth, strings.Repeat("#", max(bar, 1)), formatNumber(b.Count))
		for _, u := range b.URLs {
			fmt.Printf("%*s    %s (%s)\n", width, "", u.URL.URL, formatNumber(u.VisitCount))
		}
	}
}
