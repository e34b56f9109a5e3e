package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Ingest   *IngestCommand
	Search   *SearchCommand
	Timeline *TimelineCommand
	Status   *StatusCommand
	Enrich   *EnrichCommand
	Purge    *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "historian"
	parser.LongDescription = "Import browser history databases into one local store and search it."

	cmds := &commands{
		Ingest:   &IngestCommand{globals: &globals, version: version},
		Search:   &SearchCommand{globals: &globals, version: version},
		Timeline: &TimelineCommand{globals: &globals, version: version},
		Status:   &StatusCommand{globals: &globals, version: version},
		Enrich:   &EnrichCommand{globals: &globals, version: version},
		Purge:    &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("ingest", "Import history files", "Extract one or more Safari History.db files and merge them into the store.", cmds.Ingest)
	parser.AddCommand("search", "Search visited URLs", "Search URLs by substring over url, title and metadata, with domain and date filters.", cmds.Search)
	parser.AddCommand("timeline", "Show visits over time", "Group visits by hour of day, calendar day (UTC) or domain.", cmds.Timeline)
	parser.AddCommand("status", "Show store statistics", "Show database location, counts, time range and top domains.", cmds.Status)
	parser.AddCommand("enrich", "Attach metadata to a URL", "Attach a summary, keywords, tags or topic to a stored URL.", cmds.Enrich)
	parser.AddCommand("purge", "Delete ALL history data", "Delete ALL history data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the historian CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("historian %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
