package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/svanstrom/histry/internal/config"
	"github.com/svanstrom/histry/internal/query"
	"github.com/svanstrom/histry/internal/storage"
)

// loadConfig resolves the effective config: an explicit --config path,
// or the default path created with defaults on first run.
func (g *GlobalFlags) loadConfig() (*config.Config, error) {
	if g.Config != "" {
		return config.Load(g.Config)
	}
	return config.LoadOrCreate()
}

// newLogger builds the CLI logger from config; --verbose forces debug.
func newLogger(cfg *config.Config, verbose bool) hclog.Logger {
	level := hclog.LevelFromString(cfg.Logging.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "histry",
		Level:  level,
		Output: os.Stderr,
	})
}

// openStore opens the configured SQLite database, runs migrations, and
// returns a ready-to-use store and the underlying *sql.DB.
func openStore(cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve database path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}

	return store, db, nil
}

// newEngine builds a query engine from config.
func newEngine(db *sql.DB, cfg *config.Config, log hclog.Logger) *query.Engine {
	ttl := time.Duration(cfg.Query.CacheTTLSeconds) * time.Second
	return query.New(db,
		query.WithPerPage(cfg.Query.PerPage),
		query.WithCache(query.NewLRUCache(cfg.Query.CacheSize, ttl)),
		query.WithLogger(log.Named("query")),
	)
}

// parseContextPairs parses repeated key=value flags into a context map.
func parseContextPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ctx := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context pair %q (want key=value)", p)
		}
		ctx[key] = value
	}
	return ctx, nil
}

// parseDateBound parses an explicit date bound flag: a plain date or an
// RFC3339 timestamp.
func parseDateBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", s)
	}
	return t, nil
}
