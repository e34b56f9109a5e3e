package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeSafariFile creates a Safari-shaped history file holding the same
// three URLs and six visits as testBatch.
func writeSafariFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "History.db")
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
