package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/svanstrom/histry/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.Logger == "" {
		return fmt.Errorf("--logger is required for add command")
	}
	if c.Message == "" {
		return fmt.Errorf("--message is required for add command")
	}

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

	return c.executeWithStore(store)
}

// executeWithStore runs the add logic against a provided store (used by tests).
func (c *AddCommand) executeWithStore(store *storage.SQLiteStore) error {
	eventContext, err := parseContextPairs(c.Context)
	if err != nil {
		return err
	}
	if c.Occasion != "" {
		if eventContext == nil {
			eventContext = make(map[string]string)
		}
		eventContext[storage.OccasionKey] = c.Occasion
	}

	initiator := storage.Initiator(c.Initiator)
	if c.UserID > 0 {
		initiator = storage.InitiatorUser
	}

	event := &storage.Event{
		Logger:          c.Logger,
		Level:           storage.Level(c.Level),
		Message:         c.Message,
		Initiator:       initiator,
		InitiatorUserID: c.UserID,
		Context:         eventContext,
	}

	ctx := context.Background()
	if err := store.AddEvent(ctx, event); err != nil {
		return fmt.Errorf("storing event: %w", err)
	}

	if c.globals.JSON {
		out := map[string]interface{}{
			"id":           event.ID,
			"date":         event.Date.UTC().Format(time.RFC3339),
			"logger":       event.Logger,
			"level":        string(event.Level),
			"message":      event.Message,
			"occasions_id": event.OccasionsID,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Added event %d (%s)\n", event.ID, event.Date.Format(time.RFC3339))
	fmt.Printf("  Logger: %s\n", event.Logger)
	fmt.Printf("  Level: %s\n", event.Level)
	fmt.Printf("  Message: %s\n", event.Message)
	fmt.Printf("  Occasion: %s\n", event.OccasionsID)

	return nil
}
