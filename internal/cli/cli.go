package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Add     *AddCommand
	Search  *SearchCommand
	Options *OptionsCommand
	Status  *StatusCommand
	Prune   *PruneCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "histry"
	parser.LongDescription = "Local activity/audit log: append events, then browse, filter, and page through the history."

	cmds := &commands{
		Add:     &AddCommand{globals: &globals, version: version},
		Search:  &SearchCommand{globals: &globals, version: version},
		Options: &OptionsCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Prune:   &PruneCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("add", "Append an event", "Append an immutable event row to the log.", cmds.Add)
	parser.AddCommand("search", "Browse the event log", "Browse the event log with filters, paging, and occasion expansion.", cmds.Search)
	parser.AddCommand("options", "Show the search surface", "Show available months, levels, initiators, and the default page size.", cmds.Options)
	parser.AddCommand("status", "Show log statistics", "Show event counts, time range, and top loggers.", cmds.Status)
	parser.AddCommand("prune", "Apply retention pruning", "Delete events older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL histry data", "Delete ALL histry data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the histry CLI using os.Args.
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
			fmt.Printf("histry %s\n", version)
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
