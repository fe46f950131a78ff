package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/svanstrom/histry/internal/storage"
)

// DefaultPerPage is the page size used when a Filter leaves PerPage
// unset and no engine override is configured.
const DefaultPerPage = 10

// eventColumns is the raw column list shared by all event selects.
const eventColumns = "e.id, e.date, e.logger, e.level, e.message, e.initiator, e.initiator_user_id, e.occasions_id"

// Engine is the query facade over the append-only events table. It
// compiles a Filter into predicates, runs the count/bounds/row queries,
// collapses occasion runs, and memoizes results. An Engine is safe for
// concurrent use once construction and extender registration are done.
type Engine struct {
	db        *sql.DB
	cache     Cache
	log       hclog.Logger
	now       func() time.Time
	perPage   int
	extenders []PredicateExtender
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache replaces the default TTL-LRU result cache. Use NopCache to
// disable caching.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the engine logger; the default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithNow overrides the clock used to resolve date shorthands.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPerPage sets the default page size applied when a Filter leaves
// PerPage unset.
func WithPerPage(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.perPage = n
		}
	}
}

// New creates an Engine over an already-migrated database.
func New(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		cache:   NewLRUCache(DefaultCacheSize, DefaultCacheTTL),
		log:     hclog.NewNullLogger(),
		now:     time.Now,
		perPage: DefaultPerPage,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterExtender appends a predicate extender. Extenders run on every
// compiled query, in registration order. Register before the engine is
// shared across goroutines.
func (e *Engine) RegisterExtender(ext PredicateExtender) {
	e.extenders = append(e.extenders, ext)
}

// Query runs one filtered query and returns a structured result. An
// empty match set is a success with zero rows, not an error. Results
// may be served from the cache; cache faults are logged and recovered
// by executing directly.
func (e *Engine) Query(ctx context.Context, f Filter) (*Result, error) {
	nf, err := f.normalize(e.perPage)
	if err != nil {
		return nil, err
	}

	preds, err := compile(nf, e.now())
	if err != nil {
		return nil, err
	}
	preds, err = applyExtenders(preds, nf, e.extenders)
	if err != nil {
		return nil, err
	}

	key := signature(preds, nf)
	if res, ok, cacheErr := e.cache.Get(key); cacheErr != nil {
		e.log.Warn("result cache read failed", "error", cacheErr)
	} else if ok {
		e.log.Debug("result cache hit", "key", key)
		return res, nil
	}

	start := time.Now()
	var res *Result
	if nf.Occasions != nil {
		res, err = e.executeOccasions(ctx, nf, preds)
	} else {
		res, err = e.execute(ctx, nf, preds)
	}
	if err != nil {
		return nil, err
	}
	e.log.Debug("query executed",
		"rows", res.LogRowsCount, "total", res.TotalRowCount,
		"elapsed", time.Since(start))

	if cacheErr := e.cache.Set(key, res); cacheErr != nil {
		e.log.Warn("result cache write failed", "error", cacheErr)
	}

	return res, nil
}

// execute runs the browse-mode query: collapsed-run count, raw id
// bounds, and one page of collapsed rows.
func (e *Engine) execute(ctx context.Context, f Filter, preds []Predicate) (*Result, error) {
	where, args := whereClause(preds)

	// Total = number of occasion runs. A run starts wherever the
	// occasion id differs from the previous row in descending-id order.
	countSQL := `
		SELECT COUNT(*) FROM (
			SELECT CASE WHEN e.occasions_id = LAG(e.occasions_id) OVER (ORDER BY e.id DESC)
			            THEN 0 ELSE 1 END AS head
			FROM events e` + where + `
		) WHERE head = 1`

	var total int
	if err := e.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, storeErr("count rows", err)
	}

	// Id bounds over the full filtered set, independent of paging.
	boundsSQL := "SELECT COALESCE(MIN(e.id), 0), COALESCE(MAX(e.id), 0) FROM events e" + where

	var minID, maxID int64
	if err := e.db.QueryRowContext(ctx, boundsSQL, args...).Scan(&minID, &maxID); err != nil {
		return nil, storeErr("id bounds", err)
	}

	// One page of collapsed runs. Runs are numbered with a running sum
	// over the head markers; GROUP BY run with max(id) keeps the newest
	// row of each run as the representative (SQLite bare-column
	// semantics) and COUNT(*) is its run length.
	rowsSQL := `
		SELECT max(id) AS id, date, logger, level, message, initiator, initiator_user_id, occasions_id,
		       COUNT(*) AS subsequent_occasions
		FROM (
			SELECT marked.*, SUM(head) OVER (ORDER BY id DESC) AS run
			FROM (
				SELECT ` + eventColumns + `,
				       CASE WHEN e.occasions_id = LAG(e.occasions_id) OVER (ORDER BY e.id DESC)
				            THEN 0 ELSE 1 END AS head
				FROM events e` + where + `
			) AS marked
		) AS runs
		GROUP BY run
		ORDER BY id DESC
		LIMIT ? OFFSET ?`

	offset := (f.Page - 1) * f.PerPage
	rowArgs := append(append([]any{}, args...), f.PerPage, offset)

	logRows, err := e.scanRows(ctx, rowsSQL, rowArgs...)
	if err != nil {
		return nil, err
	}
	if err := e.attachContexts(ctx, logRows); err != nil {
		return nil, err
	}

	res := &Result{
		TotalRowCount: total,
		PagesCount:    (total + f.PerPage - 1) / f.PerPage,
		PageCurrent:   f.Page,
		MaxID:         maxID,
		MinID:         minID,
		LogRowsCount:  len(logRows),
		LogRows:       logRows,
	}
	if len(logRows) > 0 {
		res.PageRowsFrom = offset + 1
		res.PageRowsTo = offset + len(logRows)
	}

	return res, nil
}

// executeOccasions expands one collapsed run: the rows hidden under a
// displayed occasion, newest first, each reported as a run of one.
func (e *Engine) executeOccasions(ctx context.Context, f Filter, preds []Predicate) (*Result, error) {
	where, args := whereClause(preds)

	countSQL := "SELECT COUNT(*) FROM events e" + where

	var total int
	if err := e.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, storeErr("count occasions", err)
	}

	boundsSQL := "SELECT COALESCE(MIN(e.id), 0), COALESCE(MAX(e.id), 0) FROM events e" + where

	var minID, maxID int64
	if err := e.db.QueryRowContext(ctx, boundsSQL, args...).Scan(&minID, &maxID); err != nil {
		return nil, storeErr("occasion id bounds", err)
	}

	rowsSQL := "SELECT " + eventColumns + ", 1 AS subsequent_occasions FROM events e" +
		where + " ORDER BY e.id DESC LIMIT ?"
	rowArgs := append(append([]any{}, args...), f.Occasions.Count)

	logRows, err := e.scanRows(ctx, rowsSQL, rowArgs...)
	if err != nil {
		return nil, err
	}
	if err := e.attachContexts(ctx, logRows); err != nil {
		return nil, err
	}

	res := &Result{
		TotalRowCount: total,
		PagesCount:    1,
		PageCurrent:   1,
		MaxID:         maxID,
		MinID:         minID,
		LogRowsCount:  len(logRows),
		LogRows:       logRows,
	}
	if len(logRows) > 0 {
		res.PageRowsFrom = 1
		res.PageRowsTo = len(logRows)
	}

	return res, nil
}

// scanRows executes a row query and scans results into Row slices.
func (e *Engine) scanRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query rows", err)
	}
	defer rows.Close()

	// Empty slice rather than nil so callers can range and encode it.
	logRows := []Row{}
	for rows.Next() {
		var r Row
		var dateStr, level, initiator string
		if err := rows.Scan(
			&r.ID, &dateStr, &r.Logger, &level, &r.Message,
			&initiator, &r.InitiatorUserID, &r.OccasionsID,
			&r.SubsequentOccasions,
		); err != nil {
			return nil, storeErr("scan row", err)
		}
		r.Date, _ = storage.ParseTimestamp(dateStr)
		r.Level = storage.Level(level)
		r.Initiator = storage.Initiator(initiator)
		logRows = append(logRows, r)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate rows", err)
	}

	return logRows, nil
}

// attachContexts loads the context pairs for one page of rows with a
// single IN query.
func (e *Engine) attachContexts(ctx context.Context, logRows []Row) error {
	if len(logRows) == 0 {
		return nil
	}

	ids := make([]any, len(logRows))
	byID := make(map[int64]*Row, len(logRows))
	for i := range logRows {
		ids[i] = logRows[i].ID
		byID[logRows[i].ID] = &logRows[i]
	}

	contextSQL := "SELECT event_id, key, value FROM event_contexts WHERE event_id IN (" +
		placeholders(len(ids)) + ") ORDER BY event_id, key"

	rows, err := e.db.QueryContext(ctx, contextSQL, ids...)
	if err != nil {
		return storeErr("query contexts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var k, v string
		if err := rows.Scan(&id, &k, &v); err != nil {
			return storeErr("scan context", err)
		}
		r, ok := byID[id]
		if !ok {
			continue
		}
		if r.Context == nil {
			r.Context = make(map[string]string)
		}
		r.Context[k] = v
	}

	return rows.Err()
}
