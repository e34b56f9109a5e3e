package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/runnerr0/historian/internal/storage"
)

// Execute implements the go-flags Commander interface for EnrichCommand.
func (c *EnrichCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required")
	}
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithStore(sess.store)
}

// executeWithStore writes enrichment for an existing URL (for testing).
func (c *EnrichCommand) executeWithStore(store storage.Store) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required")
	}
	if c.Summary == "" && c.Keywords == "" && c.Tags == "" && c.Topic == "" {
		return fmt.Errorf("nothing to enrich: give at least one of --summary, --keywords, --tags, --topic")
	}

	ctx := context.Background()
	u, err := store.GetURL(ctx, c.URL)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s has not been ingested", c.URL)
	}
	if err != nil {
		return err
	}

	changed, err := store.MergeMetadata(ctx, storage.MetadataRecord{
		URLID:        u.ID,
		Summary:      c.Summary,
		Keywords:     c.Keywords,
		Tags:         c.Tags,
		TopicCluster: c.Topic,
		IsEnriched:   true,
	})
	if err != nil {
		return fmt.Errorf("enrich failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return writeJSON(map[string]any{
			"url":     u.URL,
			"url_id":  u.ID,
			"updated": changed,
		})
	}
	fmt.Printf("Enriched %s\n", u.URL)
	return nil
}
