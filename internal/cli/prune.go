package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/svanstrom/histry/internal/storage"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
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

	return c.executeWithStore(store, cfg.Retention.Days)
}

// executeWithStore runs pruning against a provided store (for testing).
func (c *PruneCommand) executeWithStore(store *storage.SQLiteStore, retentionDays int) error {
	days := retentionDays
	if c.OlderThan != "" {
		parsed, err := parseRetention(c.OlderThan)
		if err != nil {
			return err
		}
		days = parsed
	}
	if days <= 0 {
		return fmt.Errorf("retention must be positive, got %d days", days)
	}

	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -days)

	var pruned int64
	var err error
	if c.DryRun {
		pruned, err = store.CountBefore(ctx, cutoff)
	} else {
		pruned, err = store.PruneBefore(ctx, cutoff)
	}
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"pruned":  pruned,
			"dry_run": c.DryRun,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	if c.DryRun {
		fmt.Printf("Would prune %d events older than %d days\n", pruned, days)
	} else {
		fmt.Printf("Pruned %d events older than %d days\n", pruned, days)
	}

	return nil
}

// parseRetention parses a retention override like "30d" into days.
func parseRetention(s string) (int, error) {
	if len(s) < 2 || s[len(s)-1] != 'd' {
		return 0, fmt.Errorf("invalid retention %q (want e.g. 30d)", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid retention %q (want e.g. 30d)", s)
	}
	return n, nil
}
