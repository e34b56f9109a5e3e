package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "historian 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "historian 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"ingest", "search", "timeline", "status", "enrich", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	parser, _, _ := buildParser("test")
	_, err := parser.ParseArgs([]string{"nonexistent"})
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestIngestRequiresFile(t *testing.T) {
	err := RunWithArgs("test", []string{"ingest"})
	require.Error(t, err)
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all flag for safety")
}

func TestEnrichRequiresURL(t *testing.T) {
	err := RunWithArgs("test", []string{"enrich", "--summary", "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url is required")
}

// parseOnly parses args without running the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands) {
	t.Helper()
	p, globals, cmds := buildParser("test")
	p.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := p.ParseArgs(args)
	require.NoError(t, err)
	return globals, cmds
}

func TestIngestFlags(t *testing.T) {
	_, c := parseOnly(t, "ingest", "--device", "mac", "--device", "phone", "--concurrency", "2", "a.db", "b.db")

	assert.Equal(t, []string{"mac", "phone"}, c.Ingest.Device)
	assert.Equal(t, 2, c.Ingest.Concurrency)
	assert.Equal(t, []string{"a.db", "b.db"}, c.Ingest.Args.Files)
}

func TestSearchFlagsDefaults(t *testing.T) {
	_, c := parseOnly(t, "search", "my", "query")

	assert.Empty(t, c.Search.Since)
	assert.Equal(t, 0, c.Search.Limit, "0 means use the configured default")
	assert.Equal(t, 0, c.Search.Offset)
}

func TestSearchFilterFlags(t *testing.T) {
	_, c := parseOnly(t, "search", "--domain", "github.com", "--start", "2024-01-01",
		"--end", "2024-01-31", "--limit", "5", "--offset", "10", "query")

	assert.Equal(t, "github.com", c.Search.Domain)
	assert.Equal(t, "2024-01-01", c.Search.Start)
	assert.Equal(t, "2024-01-31", c.Search.End)
	assert.Equal(t, 5, c.Search.Limit)
	assert.Equal(t, 10, c.Search.Offset)
}

func TestTimelineFlags(t *testing.T) {
	_, c := parseOnly(t, "timeline")
	assert.Equal(t, "day", c.Timeline.GroupBy)

	_, c = parseOnly(t, "timeline", "--group-by", "hour", "--domain", "example.com")
	assert.Equal(t, "hour", c.Timeline.GroupBy)
	assert.Equal(t, "example.com", c.Timeline.Domain)
}

func TestEnrichFlags(t *testing.T) {
	_, c := parseOnly(t, "enrich", "--url", "https://example.com", "--tags", "a,b", "--topic", "web")

	assert.Equal(t, "https://example.com", c.Enrich.URL)
	assert.Equal(t, "a,b", c.Enrich.Tags)
	assert.Equal(t, "web", c.Enrich.Topic)
}

func TestPurgeFlags(t *testing.T) {
	_, c := parseOnly(t, "purge", "--all", "--force")
	assert.True(t, c.Purge.All)
	assert.True(t, c.Purge.Force)
}

func TestGlobalFlags(t *testing.T) {
	globals, _ := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "--db-path", "/tmp/h.db", "status")

	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/h.db", globals.DBPath)
}

func TestRunWithArgs_StatusEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "data", "historian.db")
	history := writeSafariFile(t, dir, "History.db")

	output := captureOutput(t, func() {
		require.NoError(t, RunWithArgs("test", []string{"--config", cfgPath, "--db-path", dbPath, "--json", "ingest", history}))
	})
	var ingest ingestResult
	decodeJSON(t, output, &ingest)
	assert.Equal(t, 1, ingest.FilesProcessed)

	output = captureOutput(t, func() {
		require.NoError(t, RunWithArgs("test", []string{"--config", cfgPath, "--db-path", dbPath, "--json", "status"}))
	})
	var status statusJSON
	decodeJSON(t, output, &status)
	assert.Equal(t, dbPath, status.DatabasePath)
	assert.Equal(t, int64(3), status.URLs)
	assert.Equal(t, int64(6), status.Visits)
	assert.Positive(t, status.DatabaseSizeBytes)

	_, err := os.Stat(cfgPath)
	assert.NoError(t, err, "config file is created on first use")
}
