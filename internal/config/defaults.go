package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:              "~/.config/historian",
			SQLiteFile:        "historian.db",
			SQLiteJournalMode: "wal",
		},
		Ingest: IngestConfig{
			Concurrency:      4,
			DefaultDevice:    "",
			ExcludeDomains:   []string{},
			ExcludeSensitive: false,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			File:   "",
		},
	}
}
