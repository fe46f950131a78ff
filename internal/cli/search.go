package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/svanstrom/histry/internal/query"
	"github.com/svanstrom/histry/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	cfg, err := c.globals.loadConfig()
	if err != nil {
		return err
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	log := newLogger(cfg, c.globals.Verbose)
	engine := newEngine(db, cfg, log)

	return c.executeWithEngine(engine, store, cfg.Query.PerPage, args)
}

// executeWithEngine runs the search against a provided engine and store
// (for testing).
func (c *SearchCommand) executeWithEngine(engine *query.Engine, store *storage.SQLiteStore, defaultPerPage int, args []string) error {
	ctx := context.Background()

	f, err := c.buildFilter(ctx, store, defaultPerPage, args)
	if err != nil {
		return err
	}

	result, err := engine.Query(ctx, f)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printResultJSON(result)
	}
	return c.printHuman(result)
}

// buildFilter assembles the query filter from flags. Positional args
// are joined into the search text. The --occasions-of flag switches to
// occasions mode, resolving the target row's occasion id first.
func (c *SearchCommand) buildFilter(ctx context.Context, store *storage.SQLiteStore, defaultPerPage int, args []string) (query.Filter, error) {
	f := query.Filter{
		PerPage: c.PerPage,
		Page:    c.Page,
		Search:  strings.Join(args, " "),
		Dates:   c.Dates,
		SinceID: c.SinceID,
		Loggers: c.Loggers,
		UserIDs: c.Users,
	}

	for _, l := range c.Levels {
		f.Levels = append(f.Levels, storage.Level(l))
	}

	var err error
	if f.DateFrom, err = parseDateBound(c.From); err != nil {
		return f, err
	}
	if f.DateTo, err = parseDateBound(c.To); err != nil {
		return f, err
	}

	if c.Occasions > 0 {
		event, err := store.GetEvent(ctx, c.Occasions)
		if err != nil {
			return f, fmt.Errorf("resolve occasion row: %w", err)
		}
		count := c.Count
		if count <= 0 {
			count = defaultPerPage
		}
		f.Occasions = &query.OccasionsRequest{
			LogRowID:    event.ID,
			OccasionsID: event.OccasionsID,
			Count:       count,
		}
	}

	return f, nil
}

func (c *SearchCommand) printHuman(result *query.Result) error {
	if result.LogRowsCount == 0 {
		fmt.Println("No events found")
		return nil
	}

	for i, row := range result.LogRows {
		fmt.Printf("%d. [%s] %s — %s", result.PageRowsFrom+i, row.Level, row.Logger, row.Message)
		if row.SubsequentOccasions > 1 {
			fmt.Printf(" ×%d", row.SubsequentOccasions)
		}
		fmt.Println()

		meta := row.Date.Local().Format("2006-01-02 15:04:05")
		meta += " · " + string(row.Initiator)
		if row.InitiatorUserID > 0 {
			meta += fmt.Sprintf(":%d", row.InitiatorUserID)
		}
		meta += fmt.Sprintf(" · id %d", row.ID)
		fmt.Printf("   %s\n", meta)

		if len(row.Context) > 0 {
			var pairs []string
			for k, v := range row.Context {
				pairs = append(pairs, k+"="+v)
			}
			fmt.Printf("   %s\n", strings.Join(pairs, " "))
		}
	}

	eventWord := "events"
	if result.TotalRowCount == 1 {
		eventWord = "event"
	}
	fmt.Println()
	fmt.Printf("Page %d/%d · %d %s · showing %d–%d\n",
		result.PageCurrent, result.PagesCount,
		result.TotalRowCount, eventWord,
		result.PageRowsFrom, result.PageRowsTo)

	return nil
}

type jsonRow struct {
	ID                  int64             `json:"id"`
	Date                string            `json:"date"`
	Logger              string            `json:"logger"`
	Level               string            `json:"level"`
	Message             string            `json:"message"`
	Initiator           string            `json:"initiator"`
	InitiatorUserID     int64             `json:"initiator_user_id,omitempty"`
	OccasionsID         string            `json:"occasions_id"`
	SubsequentOccasions int               `json:"subsequent_occasions"`
	Context             map[string]string `json:"context,omitempty"`
}

type jsonSearchOutput struct {
	TotalRowCount int       `json:"total_row_count"`
	PagesCount    int       `json:"pages_count"`
	PageCurrent   int       `json:"page_current"`
	PageRowsFrom  int       `json:"page_rows_from"`
	PageRowsTo    int       `json:"page_rows_to"`
	MaxID         int64     `json:"max_id"`
	MinID         int64     `json:"min_id"`
	LogRowsCount  int       `json:"log_rows_count"`
	LogRows       []jsonRow `json:"log_rows"`
}

func printResultJSON(result *query.Result) error {
	out := jsonSearchOutput{
		TotalRowCount: result.TotalRowCount,
		PagesCount:    result.PagesCount,
		PageCurrent:   result.PageCurrent,
		PageRowsFrom:  result.PageRowsFrom,
		PageRowsTo:    result.PageRowsTo,
		MaxID:         result.MaxID,
		MinID:         result.MinID,
		LogRowsCount:  result.LogRowsCount,
		LogRows:       make([]jsonRow, len(result.LogRows)),
	}

	for i, row := range result.LogRows {
		out.LogRows[i] = jsonRow{
			ID:                  row.ID,
			Date:                row.Date.UTC().Format(time.RFC3339),
			Logger:              row.Logger,
			Level:               string(row.Level),
			Message:             row.Message,
			Initiator:           string(row.Initiator),
			InitiatorUserID:     row.InitiatorUserID,
			OccasionsID:         row.OccasionsID,
			SubsequentOccasions: row.SubsequentOccasions,
			Context:             row.Context,
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
