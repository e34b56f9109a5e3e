package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestExtractFile_ThreeURLsSixVisits(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	seedSafariDB(t, raw)

	e := New(WithClock(fixedClock))
	e.newID = sequentialIDs()

	b, err := e.ExtractFile(context.Background(), path, "MacBook")
	require.NoError(t, err)

	assert.Len(t, b.URLs, 3)
	assert.Len(t, b.Visits, 6)
	assert.Empty(t, b.Warnings)
	assert.Equal(t, 9, b.TotalItems())

	assert.Equal(t, path, b.Source.FilePath)
	assert.Equal(t, "MacBook", b.Source.DeviceName)
	assert.Equal(t, "safari", b.Source.Format)
	assert.Equal(t, fixedClock(), b.Source.ExtractedAt)

	first := b.URLs[0]
	assert.Equal(t, "id-001", first.ID)
	assert.Equal(t, "https://example.com", first.URL)
	assert.Equal(t, "Example Site", first.Title)
	assert.Equal(t, "example.com", first.Domain)
	assert.Equal(t, int64(662688000), UTCToMac(first.FirstSeen))
	assert.Equal(t, int64(662774400), UTCToMac(first.LastSeen))

	for _, v := range b.Visits {
		assert.Equal(t, 1, v.VisitCount)
		assert.Equal(t, path, v.SourceFile)
		assert.Equal(t, "MacBook", v.DeviceName)
		assert.Nil(t, v.DurationSec)
	}
}

func TestExtractFile_FreshIDsEachRun(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	seedSafariDB(t, raw)

	e := New()
	b1, err := e.ExtractFile(context.Background(), path, "")
	require.NoError(t, err)
	b2, err := e.ExtractFile(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, b1.URLs[0].URL, b2.URLs[0].URL)
	assert.NotEqual(t, b1.URLs[0].ID, b2.URLs[0].ID)
}

func TestExtractFile_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	other, err := openWritable(path)
	require.NoError(t, err)
	_, err = other.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	other.Close()

	b, err := New().ExtractFile(context.Background(), path, "")
	assert.Nil(t, b)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "history_items", schemaErr.Table)
}

func TestExtractFile_MissingFile(t *testing.T) {
	b, err := New().ExtractFile(context.Background(), filepath.Join(t.TempDir(), "nope.db"), "")
	assert.Nil(t, b)

	var openErr *OpenError
	assert.True(t, errors.As(err, &openErr))
}

func TestExtractFile_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History.db")
	require.NoError(t, os.WriteFile(path, []byte("this is plainly not sqlite, just some text padding it out"), 0644))

	b, err := New().ExtractFile(context.Background(), path, "")
	assert.Nil(t, b)

	var openErr *OpenError
	assert.True(t, errors.As(err, &openErr))
}

func TestExtractFile_DoesNotModifySource(t *testing.T) {
	path, raw := createSafariDB(t, "History.db")
	seedSafariDB(t, raw)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = New().ExtractFile(context.Background(), path, "")
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExtractFiles_MixedBatch(t *testing.T) {
	good1, raw1 := createSafariDB(t, "a.db")
	seedSafariDB(t, raw1)
	good2, raw2 := createSafariDB(t, "b.db")
	seedSafariDB(t, raw2)

	bad := filepath.Join(t.TempDir(), "bad.db")
	other, err := openWritable(bad)
	require.NoError(t, err)
	_, err = other.Exec("CREATE TABLE history_items (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	other.Close()

	out := New(WithConcurrency(2)).ExtractFiles(
		context.Background(),
		[]string{good1, bad, good2},
		[]string{"laptop", "phone"},
	)

	require.Len(t, out.Batches, 2)
	require.Len(t, out.Failed, 1)

	assert.Equal(t, good1, out.Batches[0].Source.FilePath)
	assert.Equal(t, "laptop", out.Batches[0].Source.DeviceName)
	assert.Equal(t, good2, out.Batches[1].Source.FilePath)
	assert.Empty(t, out.Batches[1].Source.DeviceName)

	assert.Equal(t, bad, out.Failed[0].Path)
	var schemaErr *SchemaError
	assert.True(t, errors.As(out.Failed[0].Err, &schemaErr))
	assert.Equal(t, "history_visits", schemaErr.Table)
	assert.Contains(t, out.Failed[0].Description(), "bad.db")
	assert.Equal(t, 0, out.Warnings())

	for _, b := range out.Batches {
		assert.Len(t, b.URLs, 3)
		assert.Len(t, b.Visits, 6)
	}
}

func TestPartition(t *testing.T) {
	b := NewBatch("a.db", "", fixedClock())
	out := Partition([]FileResult{
		{Path: "a.db", Batch: b},
		{Path: "b.db", Err: errors.New("boom")},
	})
	assert.Equal(t, []*Batch{b}, out.Batches)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "b.db", out.Failed[0].Path)
}
