package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// --- AddEvent + GetEvent roundtrip ---

func TestAddEvent_GetEvent_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	event := &Event{
		Logger:    "user-logins",
		Level:     LevelWarning,
		Message:   "Failed login attempt",
		Initiator: InitiatorWebUser,
		Context: map[string]string{
			"username": "admin",
			"ip":       "10.0.0.7",
		},
	}

	err := store.AddEvent(ctx, event)
	require.NoError(t, err)

	// ID and occasion id should be populated
	assert.Greater(t, event.ID, int64(0), "event ID should be populated")
	assert.Len(t, event.OccasionsID, 32, "occasion id should be an md5 hex digest")
	assert.False(t, event.Date.IsZero(), "date should be set")

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "user-logins", got.Logger)
	assert.Equal(t, LevelWarning, got.Level)
	assert.Equal(t, "Failed login attempt", got.Message)
	assert.Equal(t, InitiatorWebUser, got.Initiator)
	assert.Equal(t, event.OccasionsID, got.OccasionsID)
	assert.Equal(t, map[string]string{"username": "admin", "ip": "10.0.0.7"}, got.Context)
}

func TestAddEvent_IDsStrictlyIncrease(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		e := &Event{Logger: "core", Message: "tick"}
		require.NoError(t, store.AddEvent(ctx, e))
		assert.Greater(t, e.ID, last)
		last = e.ID
	}
}

func TestAddEvent_OccasionFingerprint(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Same logger/level/message/context fingerprint to the same occasion.
	e1 := &Event{Logger: "core", Message: "Plugin updated", Context: map[string]string{"plugin": "foo"}}
	e2 := &Event{Logger: "core", Message: "Plugin updated", Context: map[string]string{"plugin": "foo"}}
	require.NoError(t, store.AddEvent(ctx, e1))
	require.NoError(t, store.AddEvent(ctx, e2))
	assert.Equal(t, e1.OccasionsID, e2.OccasionsID)

	// A differing context value changes the fingerprint.
	e3 := &Event{Logger: "core", Message: "Plugin updated", Context: map[string]string{"plugin": "bar"}}
	require.NoError(t, store.AddEvent(ctx, e3))
	assert.NotEqual(t, e1.OccasionsID, e3.OccasionsID)

	// Underscore-prefixed context keys are not part of the fingerprint.
	e4 := &Event{Logger: "core", Message: "Plugin updated", Context: map[string]string{"plugin": "foo", "_request": "abc123"}}
	require.NoError(t, store.AddEvent(ctx, e4))
	assert.Equal(t, e1.OccasionsID, e4.OccasionsID)
}

func TestAddEvent_ExplicitOccasionOverride(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Different messages, same explicit occasion token.
	e1 := &Event{Logger: "core", Message: "first", Context: map[string]string{OccasionKey: "my-occasion"}}
	e2 := &Event{Logger: "core", Message: "second", Context: map[string]string{OccasionKey: "my-occasion"}}
	require.NoError(t, store.AddEvent(ctx, e1))
	require.NoError(t, store.AddEvent(ctx, e2))
	assert.Equal(t, e1.OccasionsID, e2.OccasionsID)

	// The reserved key is consumed, not stored as context.
	got, err := store.GetEvent(ctx, e1.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Context, OccasionKey)
}

func TestAddEvent_Validation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.AddEvent(ctx, &Event{Message: "no logger"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "logger", verr.Field)

	err = store.AddEvent(ctx, &Event{Logger: "core", Message: "m", Level: "loud"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "level", verr.Field)

	err = store.AddEvent(ctx, &Event{Logger: "core", Message: "m", Initiator: "martian"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "initiator", verr.Field)
}

func TestAddEvent_Defaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := &Event{Logger: "core", Message: "m"}
	require.NoError(t, store.AddEvent(ctx, e))
	assert.Equal(t, LevelInfo, e.Level)
	assert.Equal(t, InitiatorOther, e.Initiator)
}

func TestGetEvent_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetEvent(context.Background(), 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Months ---

func TestMonths(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	dates := []time.Time{
		time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 20, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		require.NoError(t, store.AddEvent(ctx, &Event{Logger: "core", Message: "m", Date: d}))
	}

	months, err := store.Months(ctx)
	require.NoError(t, err)
	require.Len(t, months, 2)

	// Newest first.
	assert.Equal(t, "2026-09", months[0].Month)
	assert.Equal(t, int64(1), months[0].Count)
	assert.Equal(t, "2026-07", months[1].Month)
	assert.Equal(t, int64(2), months[1].Count)
}

// --- Prune / Purge ---

func TestPruneBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := &Event{Logger: "core", Message: "old", Date: time.Now().AddDate(0, 0, -90)}
	recent := &Event{Logger: "core", Message: "recent"}
	require.NoError(t, store.AddEvent(ctx, old))
	require.NoError(t, store.AddEvent(ctx, recent))

	cutoff := time.Now().AddDate(0, 0, -30)

	n, err := store.CountBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pruned, err := store.PruneBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = store.GetEvent(ctx, old.ID)
	assert.Error(t, err, "pruned event should be gone")
	_, err = store.GetEvent(ctx, recent.ID)
	assert.NoError(t, err, "recent event should survive")
}

func TestPurgeAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := &Event{Logger: "core", Message: "m", Context: map[string]string{"k": "v"}}
	require.NoError(t, store.AddEvent(ctx, e))

	require.NoError(t, store.PurgeAll(ctx))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEvents)
}

// --- Stats ---

func TestGetStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddEvent(ctx, &Event{Logger: "user-logins", Level: LevelWarning, Message: "a"}))
	require.NoError(t, store.AddEvent(ctx, &Event{Logger: "user-logins", Level: LevelWarning, Message: "b"}))
	require.NoError(t, store.AddEvent(ctx, &Event{Logger: "core", Level: LevelInfo, Message: "c"}))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.False(t, stats.OldestEvent.IsZero())
	assert.False(t, stats.NewestEvent.IsZero())

	require.NotEmpty(t, stats.LevelCounts)
	assert.Equal(t, LevelWarning, stats.LevelCounts[0].Level)
	assert.Equal(t, int64(2), stats.LevelCounts[0].Count)

	require.NotEmpty(t, stats.TopLoggers)
	assert.Equal(t, "user-logins", stats.TopLoggers[0].Logger)
	assert.Equal(t, int64(2), stats.TopLoggers[0].Count)
}

func TestGetStats_EmptyLog(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEvents)
	assert.True(t, stats.OldestEvent.IsZero())
}
