package quota

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_quota_usage.json")
	store := NewFileStore(path)
	ctx := context.Background()

	state := NewState()
	state.Daily["2026-03-10"] = 7
	state.Hourly["2026-03-10-14"] = 3
	state.LastUsage = time.Date(2026, 3, 10, 14, 12, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Daily["2026-03-10"])
	assert.Equal(t, 3, loaded.Hourly["2026-03-10-14"])
	assert.True(t, loaded.LastUsage.Equal(state.LastUsage))
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Daily)
	assert.Empty(t, state.Hourly)
	assert.NotNil(t, state.Daily)
	assert.NotNil(t, state.Hourly)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_quota_usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	state, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, state.Daily)
	assert.NotNil(t, state.Hourly)
}

func TestFileStorePartialFileGetsMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_quota_usage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"daily_usage": {"2026-03-10": 2}}`), 0o644))

	state, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, state.Daily["2026-03-10"])
	assert.NotNil(t, state.Hourly)
}

func TestStatePrune(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	state := NewState()
	state.Daily[dayKey(now)] = 1
	state.Daily[dayKey(now.Add(-6*24*time.Hour))] = 1
	state.Daily[dayKey(now.Add(-8*24*time.Hour))] = 1
	state.Hourly[hourKey(now)] = 1
	state.Hourly[hourKey(now.Add(-23*time.Hour))] = 1
	state.Hourly[hourKey(now.Add(-25*time.Hour))] = 1
	state.Hourly["garbage"] = 1

	state.prune(now)

	assert.Len(t, state.Daily, 2)
	assert.Len(t, state.Hourly, 2)
	assert.NotContains(t, state.Hourly, "garbage")
}
