package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caloriechat/caloriechat/internal/model"
)

func TestCacheGetEmpty(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"))

	snap, err := cache.Get()
	require.NoError(t, err)
	assert.Nil(t, snap, "missing cache file is not an error")
}

func TestCacheRoundTrip(t *testing.T) {
	// The parent directory does not exist yet; Put must create it.
	path := filepath.Join(t.TempDir(), "caloriechat", "cache.json")
	cache := NewCache(path)

	snap := model.NewSnapshot("2024-01-15")
	snap.Settings.TargetCalories = 1650
	snap.CustomFoods = append(snap.CustomFoods, model.CustomFood{
		ID: "cf-1", Name: "overnight oats", Calories: 350, IsCustom: true,
	})
	require.NoError(t, cache.Put(snap))

	got, err := cache.Get()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1650, got.Settings.TargetCalories)
	require.Len(t, got.CustomFoods, 1)
	assert.Equal(t, "overnight oats", got.CustomFoods[0].Name)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCachePutOverwrites(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"))

	first := model.NewSnapshot("2024-01-15")
	first.Settings.Theme = "light"
	require.NoError(t, cache.Put(first))

	second := model.NewSnapshot("2024-01-16")
	second.Settings.Theme = "dark"
	require.NoError(t, cache.Put(second))

	got, err := cache.Get()
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Settings.Theme)
}

func TestCacheGetCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := NewCache(path).Get()
	assert.Error(t, err)
}
