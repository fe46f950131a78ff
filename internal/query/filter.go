package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/svanstrom/histry/internal/storage"
)

// Date shorthand values accepted in Filter.Dates. LastDaysPrefix and
// MonthPrefix carry a suffix: "lastdays:30", "month:2026-09".
const (
	AllDates       = "allDates"
	LastDaysPrefix = "lastdays:"
	MonthPrefix    = "month:"
)

// OccasionsRequest asks for the hidden rows of a collapsed occasion
// run: up to Count rows sharing OccasionsID with ids below LogRowID.
type OccasionsRequest struct {
	LogRowID    int64
	OccasionsID string
	Count       int
}

// Filter is the per-call query request. The zero value asks for the
// first page of everything at the engine's default page size. Absent or
// empty set fields impose no restriction.
type Filter struct {
	// Paging. Zero values take defaults; negative values are invalid.
	PerPage int
	Page    int

	// Date bounds. Dates holds a shorthand (AllDates, "lastdays:N",
	// "month:YYYY-MM"); explicit DateFrom/DateTo override it.
	Dates    string
	DateFrom time.Time
	DateTo   time.Time

	// Free-text search over message and context values. Whitespace-only
	// search is treated as absent.
	Search string

	// Set filters.
	Levels  []storage.Level
	Loggers []string
	UserIDs []int64

	// SinceID restricts to rows with id > SinceID, for incremental
	// "what's new" polling.
	SinceID int64

	// Occasions, when set, switches the query to occasions mode: the
	// generic filters above are ignored and the hidden rows of one
	// collapsed run are returned instead.
	Occasions *OccasionsRequest
}

// normalize validates f and fills in paging defaults, returning a copy
// safe for the engine to use.
func (f Filter) normalize(defaultPerPage int) (Filter, error) {
	if f.PerPage < 0 {
		return f, invalidFilterf("per_page must be positive, got %d", f.PerPage)
	}
	if f.Page < 0 {
		return f, invalidFilterf("page must be positive, got %d", f.Page)
	}
	if f.PerPage == 0 {
		f.PerPage = defaultPerPage
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.SinceID < 0 {
		return f, invalidFilterf("since_id must not be negative, got %d", f.SinceID)
	}

	if o := f.Occasions; o != nil {
		if o.LogRowID <= 0 {
			return f, invalidFilterf("occasions request needs a log row id")
		}
		if o.OccasionsID == "" {
			return f, invalidFilterf("occasions request needs an occasions id")
		}
		if o.Count < 0 {
			return f, invalidFilterf("occasions count must not be negative, got %d", o.Count)
		}
	}

	f.Search = strings.TrimSpace(f.Search)

	return f, nil
}

// dateBounds resolves the date restriction to concrete from/to bounds
// (either may be zero, meaning unbounded). Explicit DateFrom/DateTo win
// over the Dates shorthand.
func (f Filter) dateBounds(now time.Time) (from, to time.Time, err error) {
	from, to = f.DateFrom, f.DateTo
	if !from.IsZero() || !to.IsZero() {
		return from, to, nil
	}

	switch {
	case f.Dates == "" || f.Dates == AllDates:
		return time.Time{}, time.Time{}, nil

	case strings.HasPrefix(f.Dates, LastDaysPrefix):
		days, convErr := strconv.Atoi(f.Dates[len(LastDaysPrefix):])
		if convErr != nil || days <= 0 {
			return from, to, invalidFilterf("bad date shorthand %q", f.Dates)
		}
		return now.AddDate(0, 0, -days), time.Time{}, nil

	case strings.HasPrefix(f.Dates, MonthPrefix):
		start, convErr := time.Parse("2006-01", f.Dates[len(MonthPrefix):])
		if convErr != nil {
			return from, to, invalidFilterf("bad date shorthand %q", f.Dates)
		}
		// Inclusive bounds covering the whole month at second precision.
		return start, start.AddDate(0, 1, 0).Add(-time.Second), nil

	default:
		return from, to, invalidFilterf("unknown date shorthand %q", f.Dates)
	}
}
