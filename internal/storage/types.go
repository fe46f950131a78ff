package storage

import (
	"fmt"
	"time"
)

// Level is the severity of an event, following the usual syslog-ish
// ladder. Values are validated when an event is written so readers can
// rely on the set being closed.
type Level string

const (
	LevelDebug     Level = "debug"
	LevelInfo      Level = "info"
	LevelNotice    Level = "notice"
	LevelWarning   Level = "warning"
	LevelError     Level = "error"
	LevelCritical  Level = "critical"
	LevelAlert     Level = "alert"
	LevelEmergency Level = "emergency"
)

// Levels lists all valid levels, most verbose first.
func Levels() []Level {
	return []Level{
		LevelDebug, LevelInfo, LevelNotice, LevelWarning,
		LevelError, LevelCritical, LevelAlert, LevelEmergency,
	}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelNotice, LevelWarning,
		LevelError, LevelCritical, LevelAlert, LevelEmergency:
		return true
	}
	return false
}

// Initiator identifies the kind of actor that caused an event.
type Initiator string

const (
	// InitiatorUser is a logged-in user; InitiatorUserID carries the id.
	InitiatorUser Initiator = "user"
	// InitiatorWebUser is an anonymous web visitor.
	InitiatorWebUser Initiator = "web_user"
	// InitiatorCLI is a command-line invocation.
	InitiatorCLI Initiator = "cli"
	// InitiatorSystem is the host application itself (cron jobs, updates).
	InitiatorSystem Initiator = "system"
	// InitiatorOther is anything that does not fit the above.
	InitiatorOther Initiator = "other"
)

// Initiators lists all valid initiators.
func Initiators() []Initiator {
	return []Initiator{
		InitiatorUser, InitiatorWebUser, InitiatorCLI,
		InitiatorSystem, InitiatorOther,
	}
}

// Valid reports whether i is one of the known initiators.
func (i Initiator) Valid() bool {
	switch i {
	case InitiatorUser, InitiatorWebUser, InitiatorCLI,
		InitiatorSystem, InitiatorOther:
		return true
	}
	return false
}

// Event is a single audit-log entry. Rows are immutable once written;
// ID is assigned by the store on insert and is strictly increasing.
type Event struct {
	ID              int64
	Date            time.Time
	Logger          string
	Level           Level
	Message         string
	Initiator       Initiator
	InitiatorUserID int64 // 0 when the initiator is not a user
	OccasionsID     string
	Context         map[string]string
}

// Stats holds aggregate statistics about the event log.
type Stats struct {
	TotalEvents int64
	OldestEvent time.Time
	NewestEvent time.Time
	LevelCounts []LevelCount
	TopLoggers  []LoggerCount
}

// LevelCount pairs a level with its event count.
type LevelCount struct {
	Level Level
	Count int64
}

// LoggerCount pairs a logger name with its event count.
type LoggerCount struct {
	Logger string
	Count  int64
}

// MonthCount pairs a "YYYY-MM" month with its event count.
type MonthCount struct {
	Month string
	Count int64
}

// ValidationError reports an event that failed write-boundary
// validation.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event %s: %q", e.Field, e.Value)
}
