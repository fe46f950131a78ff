package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/svanstrom/histry/internal/query"
	"github.com/svanstrom/histry/internal/storage"
)

// Execute implements the go-flags Commander interface for OptionsCommand.
func (c *OptionsCommand) Execute(args []string) error {
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

	return c.executeWithEngine(engine, store)
}

// executeWithEngine prints the search surface (for testing with an
// injected engine and store).
func (c *OptionsCommand) executeWithEngine(engine *query.Engine, store *storage.SQLiteStore) error {
	opts, err := engine.SearchOptions(context.Background(), store)
	if err != nil {
		return fmt.Errorf("search options: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printOptionsJSON(opts)
	}
	return printOptionsHuman(opts)
}

func printOptionsHuman(opts *query.Options) error {
	fmt.Printf("Events per page: %d\n", opts.PerPage)

	fmt.Print("Levels:          ")
	for i, l := range opts.Levels {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(string(l))
	}
	fmt.Println()

	fmt.Print("Initiators:      ")
	for i, in := range opts.Initiators {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(string(in))
	}
	fmt.Println()

	if len(opts.Months) > 0 {
		fmt.Println()
		fmt.Println("Months with events:")
		for _, m := range opts.Months {
			fmt.Printf("  %s  %d\n", m.Month, m.Count)
		}
	}

	return nil
}

type jsonMonth struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type jsonOptionsOutput struct {
	PerPage    int         `json:"per_page"`
	Levels     []string    `json:"levels"`
	Initiators []string    `json:"initiators"`
	Months     []jsonMonth `json:"months"`
}

func printOptionsJSON(opts *query.Options) error {
	out := jsonOptionsOutput{
		PerPage: opts.PerPage,
		Months:  make([]jsonMonth, len(opts.Months)),
	}
	for _, l := range opts.Levels {
		out.Levels = append(out.Levels, string(l))
	}
	for _, i := range opts.Initiators {
		out.Initiators = append(out.Initiators, string(i))
	}
	for i, m := range opts.Months {
		out.Months[i] = jsonMonth{Month: m.Month, Count: m.Count}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
