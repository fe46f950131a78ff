package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanstrom/histry/internal/storage"
)

func TestAdd_BasicEvent(t *testing.T) {
	store, _ := openTestStore(t)

	cmd := &AddCommand{
		Logger:    "user-logins",
		Level:     "warning",
		Message:   "Failed login attempt",
		Initiator: "cli",
		globals:   &GlobalFlags{},
	}

	output := captureOutput(t, func() {
		err := cmd.executeWithStore(store)
		require.NoError(t, err)
	})

	assert.Contains(t, output, "Added event 1")
	assert.Contains(t, output, "Logger: user-logins")
	assert.Contains(t, output, "Level: warning")
	assert.Contains(t, output, "Message: Failed login attempt")

	event, err := store.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, storage.LevelWarning, event.Level)
	assert.Equal(t, storage.InitiatorCLI, event.Initiator)
	assert.Len(t, event.OccasionsID, 32)
}

func TestAdd_JSONOutput(t *testing.T) {
	store, _ := openTestStore(t)

	cmd := &AddCommand{
		Logger:    "core",
		Level:     "info",
		Message:   "Plugin updated",
		Initiator: "system",
		globals:   &GlobalFlags{JSON: true},
	}

	output := captureOutput(t, func() {
		err := cmd.executeWithStore(store)
		require.NoError(t, err)
	})

	var result map[string]interface{}
	err := json.Unmarshal([]byte(output), &result)
	require.NoError(t, err, "output should be valid JSON: %s", output)
	assert.Equal(t, float64(1), result["id"])
	assert.Equal(t, "core", result["logger"])
	assert.Equal(t, "info", result["level"])
	assert.Equal(t, "Plugin updated", result["message"])
	assert.NotEmpty(t, result["occasions_id"])
}

func TestAdd_ContextPairs(t *testing.T) {
	store, _ := openTestStore(t)

	cmd := &AddCommand{
		Logger:    "user-logins",
		Level:     "info",
		Message:   "Logged in",
		Initiator: "cli",
		Context:   []string{"username=admin", "ip=10.0.0.1"},
		globals:   &GlobalFlags{},
	}

	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store))
	})

	event, err := store.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "admin", event.Context["username"])
	assert.Equal(t, "10.0.0.1", event.Context["ip"])
}

func TestAdd_InvalidContextPair(t *testing.T) {
	store, _ := openTestStore(t)

	cmd := &AddCommand{
		Logger:    "core",
		Message:   "m",
		Initiator: "cli",
		Context:   []string{"missing-equals"},
		globals:   &GlobalFlags{},
	}

	err := cmd.executeWithStore(store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid context pair")
}

func TestAdd_ExplicitOccasionGroupsEvents(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cmd := &AddCommand{
			Logger:    "cron",
			Message:   "different message each time",
			Initiator: "system",
			Occasion:  "nightly-backup",
			globals:   &GlobalFlags{},
		}
		captureOutput(t, func() {
			require.NoError(t, cmd.executeWithStore(store))
		})
	}

	first, err := store.GetEvent(ctx, 1)
	require.NoError(t, err)
	second, err := store.GetEvent(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, first.OccasionsID, second.OccasionsID)
	assert.NotContains(t, first.Context, storage.OccasionKey,
		"the occasion token is consumed, not stored as context")
}

func TestAdd_UserIDImpliesUserInitiator(t *testing.T) {
	store, _ := openTestStore(t)

	cmd := &AddCommand{
		Logger:    "user-logins",
		Message:   "Logged in",
		Initiator: "cli",
		UserID:    42,
		globals:   &GlobalFlags{},
	}

	captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store))
	})

	event, err := store.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, storage.InitiatorUser, event.Initiator)
	assert.Equal(t, int64(42), event.InitiatorUserID)
}

func TestAdd_RejectsUnknownLevel(t *testing.T) {
	store, _ := openTestStore(t)

	cmd := &AddCommand{
		Logger:    "core",
		Level:     "catastrophic",
		Message:   "m",
		Initiator: "cli",
		globals:   &GlobalFlags{},
	}

	err := cmd.executeWithStore(store)
	require.Error(t, err)

	var verr *storage.ValidationError
	assert.ErrorAs(t, err, &verr)
}
