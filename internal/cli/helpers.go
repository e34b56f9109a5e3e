package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/historian/internal/config"
	"github.com/runnerr0/historian/internal/storage"
)

// session bundles what every command needs: loaded config, the resolved
// database path and an open store.
type session struct {
	cfg    *config.Config
	dbPath string
	store  *storage.SQLiteStore
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
	_ = zap.L().Sync()
}

// loadConfig reads --config if given, otherwise the default config file,
// creating it with defaults on first use.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.LoadOrCreateAt(globals.Config)
	}
	return config.LoadOrCreate()
}

// resolveDBPath applies the priority --db-path > config file > defaults.
func resolveDBPath(globals *GlobalFlags, cfg *config.Config) (string, error) {
	if globals != nil && globals.DBPath != "" {
		return globals.DBPath, nil
	}
	return cfg.DBPath()
}

// openSession loads config, initialises logging and opens the store.
func openSession(globals *GlobalFlags) (*session, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logging
	if globals != nil && globals.Verbose {
		logCfg.Level = "debug"
	}
	if err := config.InitLogger(logCfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbPath, err := resolveDBPath(globals, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	store, err := storage.Open(dbPath,
		storage.WithMkdirAll(),
		storage.WithJournalMode(cfg.Storage.SQLiteJournalMode),
	)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dbPath, err)
	}
	zap.L().Debug("store opened", zap.String("path", dbPath))

	return &session{cfg: cfg, dbPath: dbPath, store: store}, nil
}

func jsonOutput(globals *GlobalFlags) bool {
	return globals != nil && globals.JSON
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// parseBound parses an RFC 3339 timestamp or a YYYY-MM-DD date (UTC). A
// bare date used as an upper bound covers the whole day.
func parseBound(s string, upper bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use RFC 3339 or YYYY-MM-DD)", s)
	}
	if upper {
		return d.Add(24*time.Hour - time.Second), nil
	}
	return d, nil
}

// parseRange parses --start/--end and rejects an inverted range.
func parseRange(start, end string) (time.Time, time.Time, error) {
	from, err := parseBound(start, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
	}
	to, err := parseBound(end, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return from, to, nil
}

// formatTime renders a timestamp for JSON output; the zero time is "".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
