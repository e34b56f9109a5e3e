package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/historian/internal/extract"
	"github.com/runnerr0/historian/internal/storage"
)

// ingestResult summarises one ingest run across all files.
type ingestResult struct {
	FilesProcessed  int      `json:"files_processed"`
	FilesFailed     int      `json:"files_failed"`
	URLsExtracted   int      `json:"urls_extracted"`
	VisitsExtracted int      `json:"visits_extracted"`
	URLsExcluded    int      `json:"urls_excluded"`
	URLsInserted    int      `json:"urls_inserted"`
	URLsUpdated     int      `json:"urls_updated"`
	VisitsInserted  int      `json:"visits_inserted"`
	VisitsSkipped   int      `json:"visits_skipped"`
	ElapsedSeconds  float64  `json:"elapsed_seconds"`
	Errors          []string `json:"errors"`
}

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	if c.Concurrency <= 0 {
		c.Concurrency = sess.cfg.Ingest.Concurrency
	}
	c.defaultDevice = sess.cfg.Ingest.DefaultDevice
	c.exclude = sess.cfg.Ingest.Excluded()

	return c.executeWithStore(sess.store, c.Args.Files)
}

// executeWithStore extracts files concurrently, then merges each
// successful batch in order. A file that fails extraction or merging is
// reported without stopping the others.
func (c *IngestCommand) executeWithStore(store storage.Store, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("ingest requires at least one FILE")
	}
	if len(c.Device) > len(files) {
		return fmt.Errorf("got %d --device labels for %d files", len(c.Device), len(files))
	}

	ctx := context.Background()
	started := time.Now()

	devices := make([]string, len(files))
	for i := range devices {
		devices[i] = c.defaultDevice
		if i < len(c.Device) {
			devices[i] = c.Device[i]
		}
	}

	extractor := extract.New(extract.WithConcurrency(c.Concurrency))
	outcome := extractor.ExtractFiles(ctx, files, devices)

	res := ingestResult{Errors: []string{}}
	for _, f := range outcome.Failed {
		res.FilesFailed++
		res.Errors = append(res.Errors, f.Description())
	}

	for _, b := range outcome.Batches {
		res.URLsExtracted += len(b.URLs)
		res.VisitsExtracted += len(b.Visits)
		res.Errors = append(res.Errors, b.Warnings...)

		if n := b.DropDomains(c.exclude); n > 0 {
			res.URLsExcluded += n
			zap.L().Debug("excluded urls", zap.String("file", b.Source.FilePath), zap.Int("urls", n))
		}

		stats, err := store.IngestBatch(ctx, b)
		if err != nil {
			res.FilesFailed++
			res.Errors = append(res.Errors, extract.FailedFile{Path: b.Source.FilePath, Err: err}.Description())
			continue
		}
		res.FilesProcessed++
		res.URLsInserted += stats.URLsInserted
		res.URLsUpdated += stats.URLsUpdated
		res.VisitsInserted += stats.VisitsInserted
		res.VisitsSkipped += stats.VisitsSkipped
		res.Errors = append(res.Errors, stats.Errors...)
	}
	res.ElapsedSeconds = time.Since(started).Seconds()

	var err error
	if jsonOutput(c.globals) {
		err = writeJSON(res)
	} else {
		printIngestHuman(res)
	}
	if err != nil {
		return err
	}

	if res.FilesProcessed == 0 {
		return fmt.Errorf("no files ingested (%d failed)", res.FilesFailed)
	}
	return nil
}

func printIngestHuman(res ingestResult) {
	total := int64(res.FilesProcessed + res.FilesFailed)
	fmt.Printf("Ingested %d of %d %s in %.2fs\n",
		res.FilesProcessed, total, plural(total, "file", "files"), res.ElapsedSeconds)
	fmt.Printf("Extracted:     %s urls, %s visits\n",
		formatNumber(int64(res.URLsExtracted)), formatNumber(int64(res.VisitsExtracted)))
	if res.URLsExcluded > 0 {
		fmt.Printf("Excluded:      %s urls\n", formatNumber(int64(res.URLsExcluded)))
	}
	fmt.Printf("URLs:          %s new, %s updated\n",
		formatNumber(int64(res.URLsInserted)), formatNumber(int64(res.URLsUpdated)))
	fmt.Printf("Visits:        %s new, %s already stored\n",
		formatNumber(int64(res.VisitsInserted)), formatNumber(int64(res.VisitsSkipped)))

	if len(res.Errors) > 0 {
		fmt.Println()
		fmt.Printf("%d %s:\n", len(res.Errors), plural(int64(len(res.Errors)), "problem", "problems"))
		for _, e := range res.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
