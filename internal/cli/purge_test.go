package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanstrom/histry/internal/storage"
)

func TestPurge_WithoutAllFlag_Errors(t *testing.T) {
	cmd := &PurgeCommand{globals: &GlobalFlags{}}

	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all flag")
}

func TestPurge_WithAllAndForce_Succeeds(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddEvent(ctx, &storage.Event{
		Logger: "core", Message: "about to vanish",
		Context: map[string]string{"key": "value"},
	}))

	cmd := &PurgeCommand{
		All:     true,
		Force:   true,
		globals: &GlobalFlags{},
	}
	cmd.setDB(db)

	output := captureOutput(t, func() {
		err := cmd.Execute(nil)
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Purged all data")

	var eventCount, contextCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events").Scan(&eventCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM event_contexts").Scan(&contextCount))
	assert.Equal(t, 0, eventCount, "events table should be empty")
	assert.Equal(t, 0, contextCount, "context table should be empty")
}

func TestPurge_JSONOutput(t *testing.T) {
	_, db := openTestStore(t)

	cmd := &PurgeCommand{
		All:     true,
		Force:   true,
		globals: &GlobalFlags{JSON: true},
	}
	cmd.setDB(db)

	output := captureOutput(t, func() {
		err := cmd.Execute(nil)
		require.NoError(t, err)
	})

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result), "output should be valid JSON: %s", output)
	assert.Equal(t, true, result["purged"])
	assert.Equal(t, "all data deleted", result["message"])
}

func TestPurge_IDsRestartAfterPurge(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AddEvent(ctx, &storage.Event{Logger: "core", Message: "m"}))
	}

	cmd := &PurgeCommand{
		All:     true,
		Force:   true,
		globals: &GlobalFlags{},
	}
	cmd.setDB(db)

	captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	event := &storage.Event{Logger: "core", Message: "fresh start"}
	require.NoError(t, store.AddEvent(ctx, event))
	assert.Equal(t, int64(1), event.ID)
}
