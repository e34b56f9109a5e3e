package extract

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const safariSchema = `
CREATE TABLE history_items (
	id                INTEGER PRIMARY KEY,
	url               TEXT NOT NULL,
	title             TEXT,
	domain            TEXT NOT NULL DEFAULT '',
	visit_count       INTEGER,
	visit_time        INTEGER,
	last_visited_time INTEGER
);
CREATE TABLE history_visits (
	id           INTEGER PRIMARY KEY,
	history_item INTEGER NOT NULL,
	visit_time   INTEGER NOT NULL
);
`

// createSafariDB writes a Safari-shaped history file under t.TempDir and
// returns its path plus an open handle for seeding extra rows.
func createSafariDB(t *testing.T, name string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(safariSchema)
	require.NoError(t, err)
	return path, db
}

// seedSafariDB inserts three URLs and six visits, all resolvable.
func seedSafariDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO history_items (id, url, title, domain, visit_count, visit_time, last_visited_time) VALUES
		(1, 'https://example.com', 'Example Site', 'example.com', 3, 662688000, 662774400),
		(2, 'https://test.org/page1', 'Test Page 1', 'test.org', 1, 662860800, 662860800),
		(3, 'https://test.org/page2', 'Test Page 2', 'test.org', 2, 662947200, 663033600)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO history_visits (id, history_item, visit_time) VALUES
		(1, 1, 662688000),
		(2, 1, 662731200),
		(3, 1, 662774400),
		(4, 2, 662860800),
		(5, 3, 662947200),
		(6, 3, 663033600)
	`)
	require.NoError(t, err)
}

// sequentialIDs returns a deterministic id generator for assertions.
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

// openWritable opens (creating if needed) an arbitrary SQLite file.
func openWritable(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", path)
}
