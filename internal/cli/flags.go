package cli

import "database/sql"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// AddCommand — append an event to the log.
type AddCommand struct {
	Logger    string   `long:"logger" description:"Subsystem that records the event (required)"`
	Level     string   `long:"level" description:"Severity level" default:"info"`
	Message   string   `long:"message" description:"Event message (required)"`
	Initiator string   `long:"initiator" description:"Actor kind: user | web_user | cli | system | other" default:"cli"`
	UserID    int64    `long:"user-id" description:"Initiating user id (implies --initiator user)"`
	Context   []string `long:"context" description:"Context pair key=value (repeatable)"`
	Occasion  string   `long:"occasion" description:"Explicit occasion token (overrides the computed fingerprint)"`

	globals *GlobalFlags
	version string
}

// SearchCommand — browse the event log with filters and paging.
type SearchCommand struct {
	PerPage   int      `long:"per-page" description:"Events per page"`
	Page      int      `long:"page" description:"Page number" default:"1"`
	Levels    []string `long:"level" description:"Filter by level (repeatable)"`
	Loggers   []string `long:"logger" description:"Filter by logger (repeatable)"`
	Users     []int64  `long:"user" description:"Filter by initiating user id (repeatable)"`
	Dates     string   `long:"dates" description:"Date shorthand: allDates | lastdays:N | month:YYYY-MM"`
	From      string   `long:"from" description:"Explicit lower date bound (YYYY-MM-DD or RFC3339)"`
	To        string   `long:"to" description:"Explicit upper date bound (YYYY-MM-DD or RFC3339)"`
	SinceID   int64    `long:"since-id" description:"Only events with id greater than this"`
	Occasions int64    `long:"occasions-of" description:"Expand the collapsed run of this event id"`
	Count     int      `long:"occasions-count" description:"How many hidden rows to expand"`

	globals *GlobalFlags
	version string
}

// OptionsCommand — print the search surface (months, levels, paging).
type OptionsCommand struct {
	globals *GlobalFlags
	version string
}

// StatusCommand — show event log statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PruneCommand — delete events older than the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g. 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand — delete ALL histry data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open default DB
}
