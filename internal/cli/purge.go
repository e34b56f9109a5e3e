package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/historian/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithStore(sess.store)
}

// executeWithStore confirms and purges a provided store (for testing).
func (c *PurgeCommand) executeWithStore(store storage.Store) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		if err := c.confirm(); err != nil {
			return err
		}
	}

	if err := store.PurgeAll(context.Background()); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return writeJSON(map[string]any{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. The history store is empty.")
	return nil
}

func (c *PurgeCommand) confirm() error {
	var in io.Reader = os.Stdin
	if c.in != nil {
		in = c.in
	}

	fmt.Println("WARNING: This will permanently delete ALL history data.")
	fmt.Println("  - All URLs")
	fmt.Println("  - All visits")
	fmt.Println("  - All metadata and enrichment")
	fmt.Println()
	fmt.Println("This action cannot be undone.")
	fmt.Println()
	fmt.Print(`Type "PURGE" to confirm: `)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "PURGE" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}
