package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.example.com", "www.example.com"},
		{"http://example.org", "example.org"},
		{"https://sub.domain.net/path?query=value", "sub.domain.net"},
		{"https://192.168.1.1:8080", "192.168.1.1"},
	}
	for _, tc := range tests {
		got, err := extractDomain(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.expected, got, tc.url)
	}

	_, err := extractDomain("not-a-valid-url")
	assert.Error(t, err)
}

func TestSafariValidate_ValidSchema(t *testing.T) {
	path, _ := createSafariDB(t, "History.db")
	db, err := openReadOnly(path)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, SafariSource{}.Validate(context.Background(), db))
}

func TestSafariValidate_MissingTable(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	_, err := raw.Exec("DROP TABLE history_visits")
	require.NoError(t, err)

	db, err := openReadOnly(path)
	require.NoError(t, err)
	defer db.Close()

	err = SafariSource{}.Validate(context.Background(), db)
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "history_visits", schemaErr.Table)
	assert.Contains(t, err.Error(), "history_visits")
}

func TestURLFromItem_DomainFallback(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	_, err := raw.Exec(`INSERT INTO history_items (id, url, title, domain, visit_time, last_visited_time)
		VALUES (1, 'https://news.ycombinator.com/item?id=1', NULL, '', 100, 200)`)
	require.NoError(t, err)

	b, err := New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, b.URLs, 1)
	assert.Equal(t, "news.ycombinator.com", b.URLs[0].Domain)
	assert.Empty(t, b.URLs[0].Title)
	assert.Empty(t, b.Warnings)
}

func TestExtract_BadURLRowBecomesWarning(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	seedSafariDB(t, raw)
	_, err := raw.Exec(`INSERT INTO history_items (id, url, title, domain, visit_time, last_visited_time)
		VALUES (4, 'https://bad.example', 'Bad', 'bad.example', 'garbage', 10)`)
	require.NoError(t, err)
	_, err = raw.Exec(`INSERT INTO history_visits (id, history_item, visit_time) VALUES (7, 4, 663100000)`)
	require.NoError(t, err)

	b, err := New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)

	assert.Len(t, b.URLs, 3)
	assert.Len(t, b.Visits, 6)
	require.Len(t, b.Warnings, 2)
	assert.Contains(t, b.Warnings[0], "url row")
	assert.Contains(t, b.Warnings[1], "unknown url id 4")
}

func TestExtract_OutOfRangeTimestamp(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	_, err := raw.Exec(`INSERT INTO history_items (id, url, title, domain, visit_time, last_visited_time)
		VALUES (1, 'https://far.future', 'Far', 'far.future', 100, 9000000000000000000)`)
	require.NoError(t, err)

	b, err := New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Empty(t, b.URLs)
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], "invalid timestamp")
}

func TestExtract_UnresolvedVisitDropped(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	seedSafariDB(t, raw)
	_, err := raw.Exec(`INSERT INTO history_visits (id, history_item, visit_time) VALUES (7, 99, 663100000)`)
	require.NoError(t, err)

	b, err := New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)

	assert.Len(t, b.URLs, 3)
	assert.Len(t, b.Visits, 6, "all other visits survive")
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], "unknown url id 99")

	known := map[string]bool{}
	for _, u := range b.URLs {
		known[u.ID] = true
	}
	for _, v := range b.Visits {
		assert.True(t, known[v.URLID], "visit %s must reference an extracted url", v.ID)
	}
}

func TestExtract_VisitsOrderedNewestFirst(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	seedSafariDB(t, raw)

	b, err := New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)
	require.Len(t, b.Visits, 6)

	for i := 1; i < len(b.Visits); i++ {
		assert.False(t, b.Visits[i].VisitedAt.After(b.Visits[i-1].VisitedAt))
	}
	assert.Equal(t, time.Unix(663033600+MacEpochOffset, 0).UTC(), b.Visits[0].VisitedAt)
}
