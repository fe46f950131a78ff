package storage

import "database/sql"

// migrateV001 creates the initial histry schema: the append-only events
// table, the per-event context table, and all indexes the query engine
// relies on. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS events (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			date              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			logger            TEXT NOT NULL,
			level             TEXT NOT NULL DEFAULT 'info',
			message           TEXT NOT NULL,
			initiator         TEXT NOT NULL DEFAULT 'other',
			initiator_user_id INTEGER NOT NULL DEFAULT 0,
			occasions_id      TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS event_contexts (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			key      TEXT NOT NULL,
			value    TEXT NOT NULL
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_events_date         ON events(date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_occasions_id ON events(occasions_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_logger       ON events(logger)`,
		`CREATE INDEX IF NOT EXISTS idx_events_level        ON events(level)`,
		`CREATE INDEX IF NOT EXISTS idx_events_initiator    ON events(initiator, initiator_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_event_id   ON event_contexts(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_key        ON event_contexts(key)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
