package query

import "github.com/svanstrom/histry/internal/storage"

// Row is one returned event annotated with its collapsed-run length:
// SubsequentOccasions is 1 for a unique event, N when N contiguous rows
// (by descending id) share its occasion.
type Row struct {
	storage.Event
	SubsequentOccasions int
}

// Result is the outcome of one query. Totals and id bounds describe the
// entire filtered set, not just the returned page, so they stay stable
// while paging. The displayed unit is the collapsed occasion run:
// TotalRowCount, PagesCount and the page bounds all count runs.
type Result struct {
	TotalRowCount int
	PagesCount    int
	PageCurrent   int
	PageRowsFrom  int
	PageRowsTo    int
	MaxID         int64
	MinID         int64
	LogRowsCount  int
	LogRows       []Row
}
