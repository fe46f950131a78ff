package storage

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// OccasionKey is the reserved context key that overrides the computed
// occasion fingerprint. It is consumed by the write path and not stored
// as a regular context pair.
const OccasionKey = "_occasion"

// Store defines the interface for histry data operations. The query
// engine reads the tables directly; everything that writes or aggregates
// goes through here.
type Store interface {
	AddEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id int64) (*Event, error)
	Months(ctx context.Context) ([]MonthCount, error)
	PruneBefore(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertEvent   *sql.Stmt
	insertContext *sql.Stmt
	getEvent      *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

// DB exposes the underlying database handle for the query engine.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEvent, err = s.db.Prepare(`
		INSERT INTO events (date, logger, level, message, initiator, initiator_user_id, occasions_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertContext, err = s.db.Prepare(`
		INSERT INTO event_contexts (event_id, key, value)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getEvent, err = s.db.Prepare(`
		SELECT id, date, logger, level, message, initiator, initiator_user_id, occasions_id
		FROM events WHERE id = ?
	`)
	if err != nil {
		return err
	}

	return nil
}

// occasionFingerprint computes the occasion id for an event: the md5 of
// logger, level, message, initiator and the context pairs, so that
// logically repeated events land in the same occasion. Context keys
// starting with "_" are internal and excluded from the fingerprint.
// A caller-supplied OccasionKey context value replaces the whole
// fingerprint input.
func occasionFingerprint(e *Event) string {
	if v, ok := e.Context[OccasionKey]; ok {
		sum := md5.Sum([]byte(v))
		return hex.EncodeToString(sum[:])
	}

	var b strings.Builder
	b.WriteString(e.Logger)
	b.WriteByte('|')
	b.WriteString(string(e.Level))
	b.WriteByte('|')
	b.WriteString(e.Message)
	b.WriteByte('|')
	b.WriteString(string(e.Initiator))

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.Context[k])
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ParseTimestamp tries several common SQLite timestamp formats.
func ParseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// AddEvent appends an event and its context pairs in a single
// transaction. The event's ID and OccasionsID fields are populated.
// Level and Initiator are validated here, at the write boundary, so
// readers can treat both as closed sets. Empty Level defaults to info,
// empty Initiator to other.
func (s *SQLiteStore) AddEvent(ctx context.Context, event *Event) error {
	if event.Logger == "" {
		return &ValidationError{Field: "logger", Value: ""}
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}
	if !event.Level.Valid() {
		return &ValidationError{Field: "level", Value: string(event.Level)}
	}
	if event.Initiator == "" {
		event.Initiator = InitiatorOther
	}
	if !event.Initiator.Valid() {
		return &ValidationError{Field: "initiator", Value: string(event.Initiator)}
	}

	if event.Date.IsZero() {
		event.Date = time.Now()
	}
	if event.OccasionsID == "" {
		event.OccasionsID = occasionFingerprint(event)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	dateFormatted := event.Date.UTC().Format(time.RFC3339)
	res, err := tx.StmtContext(ctx, s.insertEvent).ExecContext(ctx,
		dateFormatted, event.Logger, string(event.Level), event.Message,
		string(event.Initiator), event.InitiatorUserID, event.OccasionsID,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	event.ID = id

	// Context keys are stored sorted so repeated reads are deterministic.
	keys := make([]string, 0, len(event.Context))
	for k := range event.Context {
		if k == OccasionKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err = tx.StmtContext(ctx, s.insertContext).ExecContext(ctx, id, k, event.Context[k])
		if err != nil {
			return fmt.Errorf("insert context %q: %w", k, err)
		}
	}

	return tx.Commit()
}

// GetEvent retrieves a single event by id, including its context.
func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*Event, error) {
	var e Event
	var dateStr, level, initiator string

	err := s.getEvent.QueryRowContext(ctx, id).Scan(
		&e.ID, &dateStr, &e.Logger, &level, &e.Message,
		&initiator, &e.InitiatorUserID, &e.OccasionsID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %d not found", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	e.Date, _ = ParseTimestamp(dateStr)
	e.Level = Level(level)
	e.Initiator = Initiator(initiator)

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM event_contexts WHERE event_id = ? ORDER BY key", id,
	)
	if err != nil {
		return nil, fmt.Errorf("get context: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan context: %w", err)
		}
		if e.Context == nil {
			e.Context = make(map[string]string)
		}
		e.Context[k] = v
	}

	return &e, rows.Err()
}

// Months returns the distinct months that contain events, newest first,
// with per-month counts. Consumed by the search-options surface to
// populate date filter widgets.
func (s *SQLiteStore) Months(ctx context.Context) ([]MonthCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', date) AS ym, COUNT(*)
		FROM events
		GROUP BY ym
		ORDER BY ym DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query months: %w", err)
	}
	defer rows.Close()

	var months []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, mc)
	}

	return months, rows.Err()
}

// PruneBefore deletes events dated before olderThan. Context rows are
// cascade-deleted by the schema. Returns the number of events removed.
func (s *SQLiteStore) PruneBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	dateFormatted := olderThan.UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE date < ?", dateFormatted)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}

	return res.RowsAffected()
}

// CountBefore reports how many events are dated before olderThan,
// without deleting anything. Used for prune dry runs.
func (s *SQLiteStore) CountBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	dateFormatted := olderThan.UTC().Format(time.RFC3339)

	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE date < ?", dateFormatted,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// PurgeAll deletes all events and contexts.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM event_contexts",
		"DELETE FROM events",
		"DELETE FROM sqlite_sequence WHERE name IN ('events', 'event_contexts')",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// GetStats returns aggregate statistics about the event log.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	// Oldest and newest (handle empty log)
	if stats.TotalEvents > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(date), MAX(date) FROM events").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		stats.OldestEvent, _ = ParseTimestamp(oldestStr)
		stats.NewestEvent, _ = ParseTimestamp(newestStr)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT level, COUNT(*) as cnt FROM events GROUP BY level ORDER BY cnt DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("level counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lc LevelCount
		if err := rows.Scan(&lc.Level, &lc.Count); err != nil {
			return nil, err
		}
		stats.LevelCounts = append(stats.LevelCounts, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	loggerRows, err := s.db.QueryContext(ctx,
		"SELECT logger, COUNT(*) as cnt FROM events GROUP BY logger ORDER BY cnt DESC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top loggers: %w", err)
	}
	defer loggerRows.Close()

	for loggerRows.Next() {
		var lc LoggerCount
		if err := loggerRows.Scan(&lc.Logger, &lc.Count); err != nil {
			return nil, err
		}
		stats.TopLoggers = append(stats.TopLoggers, lc)
	}

	return stats, loggerRows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed — that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertEvent, s.insertContext, s.getEvent,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
