package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/historian/internal/extract"
	"github.com/runnerr0/historian/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// decodeJSON unmarshals captured command output.
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(output), v), "output: %s", output)
}

// openTestStore returns an empty in-memory store.
func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// writeSafariFile creates a Safari history file in dir with three URLs
// (one on example.com, two on test.org) and six visits between
// 2022-01-01 and 2022-01-05 UTC.
func writeSafariFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE history_items (
			id INTEGER PRIMARY KEY, url TEXT NOT NULL, title TEXT,
			domain TEXT NOT NULL DEFAULT '', visit_count INTEGER,
			visit_time INTEGER, last_visited_time INTEGER
		);
		CREATE TABLE history_visits (
			id INTEGER PRIMARY KEY, history_item INTEGER NOT NULL, visit_time INTEGER NOT NULL
		);
		INSERT INTO history_items (id, url, title, domain, visit_count, visit_time, last_visited_time) VALUES
			(1, 'https://example.com', 'Example Site', 'example.com', 3, 662688000, 662774400),
			(2, 'https://test.org/page1', 'Test Page 1', 'test.org', 1, 662860800, 662860800),
			(3, 'https://test.org/page2', 'Test Page 2', 'test.org', 2, 662947200, 663033600);
		INSERT INTO history_visits (id, history_item, visit_time) VALUES
			(1, 1, 662688000), (2, 1, 662731200), (3, 1, 662774400),
			(4, 2, 662860800), (5, 3, 662947200), (6, 3, 663033600);
	`)
	require.NoError(t, err)
	return path
}

// seededStore returns an in-memory store holding the Safari fixture.
func seededStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store := openTestStore(t)
	path := writeSafariFile(t, t.TempDir(), "History.db")

	b, err := extract.New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)
	_, err = store.IngestBatch(context.Background(), b)
	require.NoError(t, err)
	return store
}
