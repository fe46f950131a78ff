package query

import (
	"context"

	"github.com/svanstrom/histry/internal/storage"
)

// MonthLister supplies the months that contain events, normally a
// *storage.SQLiteStore.
type MonthLister interface {
	Months(ctx context.Context) ([]storage.MonthCount, error)
}

// Options describes the search surface: the values a filter UI needs to
// populate its widgets.
type Options struct {
	Months     []storage.MonthCount
	PerPage    int
	Levels     []storage.Level
	Initiators []storage.Initiator
}

// SearchOptions returns the current search surface.
func (e *Engine) SearchOptions(ctx context.Context, store MonthLister) (*Options, error) {
	months, err := store.Months(ctx)
	if err != nil {
		return nil, storeErr("list months", err)
	}

	return &Options{
		Months:     months,
		PerPage:    e.perPage,
		Levels:     storage.Levels(),
		Initiators: storage.Initiators(),
	}, nil
}
