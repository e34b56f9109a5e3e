package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Override the database path from config"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// IngestCommand extracts history files and merges them into the store.
type IngestCommand struct {
	Device      []string `long:"device" description:"Device label for the file at the same position (repeatable)"`
	Concurrency int      `long:"concurrency" description:"Files extracted in parallel (default from config)"`
	Args        struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string

	defaultDevice string
	exclude       []string
}

// SearchCommand runs a substring, domain and date search over the store.
type SearchCommand struct {
	Domain string `long:"domain" description:"Only URLs on this exact domain"`
	Start  string `long:"start" description:"Only visits at or after this time (RFC 3339 or YYYY-MM-DD)"`
	End    string `long:"end" description:"Only visits at or before this time (RFC 3339 or YYYY-MM-DD, whole day)"`
	Since  string `long:"since" description:"Only visits newer than duration (e.g., 7d, 24h, 2w)"`
	Limit  int    `long:"limit" description:"Maximum results (default from config, 0 with --offset for all)"`
	Offset int    `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
}

// TimelineCommand buckets visits by hour of day, day or domain.
type TimelineCommand struct {
	GroupBy string `long:"group-by" description:"Bucket by hour | day | domain" default:"day"`
	Start   string `long:"start" description:"Only visits at or after this time (RFC 3339 or YYYY-MM-DD)"`
	End     string `long:"end" description:"Only visits at or before this time (RFC 3339 or YYYY-MM-DD, whole day)"`
	Domain  string `long:"domain" description:"Only visits on this exact domain"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows store statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string

	dbPath string
}

// EnrichCommand attaches summary, keywords, tags or topic to a URL.
type EnrichCommand struct {
	URL      string `long:"url" description:"URL to enrich (required)"`
	Summary  string `long:"summary" description:"Short summary of the page"`
	Keywords string `long:"keywords" description:"Comma-separated keywords"`
	Tags     string `long:"tags" description:"Comma-separated tags"`
	Topic    string `long:"topic" description:"Topic cluster label"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL history data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	in      io.Reader // confirmation input; nil means os.Stdin
}
