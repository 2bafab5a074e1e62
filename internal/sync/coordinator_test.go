package sync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caloriechat/caloriechat/internal/model"
	"github.com/caloriechat/caloriechat/internal/state"
)

// fakeGateway is a scriptable stand-in for the store gateway.
type fakeGateway struct {
	mu         sync.Mutex
	loadStatus int
	loadSnap   *model.Snapshot
	saveStatus int
	saves      []*model.Snapshot

	srv *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		loadStatus: http.StatusNotFound,
		saveStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/load-data", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		status, snap := g.loadStatus, g.loadSnap
		g.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": "Failed to fetch data"})
			return
		}
		json.NewEncoder(w).Encode(snap)
	})
	mux.HandleFunc("POST /api/save-data", func(w http.ResponseWriter, r *http.Request) {
		var snap model.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		status := g.saveStatus
		if status == http.StatusOK {
			g.saves = append(g.saves, &snap)
		}
		g.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"error": "Failed to save data"})
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.saves)
}

func (g *fakeGateway) lastSave() *model.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.saves) == 0 {
		return nil
	}
	return g.saves[len(g.saves)-1]
}

func newTestCoordinator(t *testing.T, g *fakeGateway, debounce time.Duration) (*Coordinator, *state.Store, *Cache) {
	t.Helper()
	st := state.New()
	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(st, NewClient(g.srv.URL), cache, debounce, logger), st, cache
}

func TestStartLoadsFromServer(t *testing.T) {
	g := newFakeGateway(t)
	snap := model.NewSnapshot("2024-01-01")
	snap.Settings.TargetCalories = 1900
	g.loadStatus = http.StatusOK
	g.loadSnap = snap

	coord, st, cache := newTestCoordinator(t, g, 10*time.Millisecond)
	coord.Start(context.Background())

	got := st.Snapshot()
	assert.Equal(t, 1900, got.Settings.TargetCalories)
	assert.NotEqual(t, "2024-01-01", got.CurrentDate, "stored date must be replaced with today")

	// The cache was refreshed with the server's answer.
	cached, err := cache.Get()
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 1900, cached.Settings.TargetCalories)
}

func TestStartNoServerDataKeepsDefaults(t *testing.T) {
	g := newFakeGateway(t) // load answers 404

	coord, st, _ := newTestCoordinator(t, g, 10*time.Millisecond)
	coord.Start(context.Background())

	got := st.Snapshot()
	assert.Equal(t, 2000, got.Settings.TargetCalories)
	assert.Empty(t, got.DailyEntries)
}

func TestStartFallsBackToCache(t *testing.T) {
	g := newFakeGateway(t)
	g.loadStatus = http.StatusInternalServerError

	coord, st, cache := newTestCoordinator(t, g, 10*time.Millisecond)

	cached := model.NewSnapshot("2024-01-10")
	cached.Settings.TargetCalories = 1500
	require.NoError(t, cache.Put(cached))

	coord.Start(context.Background())

	assert.Equal(t, 1500, st.Snapshot().Settings.TargetCalories)
}

func TestStartServerDownNoCacheStaysOnDefaults(t *testing.T) {
	g := newFakeGateway(t)
	g.loadStatus = http.StatusInternalServerError

	coord, st, _ := newTestCoordinator(t, g, 10*time.Millisecond)
	coord.Start(context.Background())

	assert.Equal(t, 2000, st.Snapshot().Settings.TargetCalories)
}

func TestDebounceCoalescesBurstIntoOneSave(t *testing.T) {
	g := newFakeGateway(t)

	coord, st, _ := newTestCoordinator(t, g, 40*time.Millisecond)
	coord.Start(context.Background())
	defer coord.Close()

	for i := 0; i < 5; i++ {
		st.AddChatMessage("user", "message", nil)
	}

	require.Eventually(t, func() bool { return g.saveCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	// Quiet period: no further saves trickle out.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, g.saveCount())

	// The one save carries the final state, not an intermediate one.
	saved := g.lastSave()
	require.NotNil(t, saved)
	total := 0
	for _, msgs := range saved.ChatHistory {
		total += len(msgs)
	}
	assert.Equal(t, 5, total)
}

func TestSeparateBurstsSaveSeparately(t *testing.T) {
	g := newFakeGateway(t)

	coord, st, _ := newTestCoordinator(t, g, 20*time.Millisecond)
	coord.Start(context.Background())
	defer coord.Close()

	st.AddChatMessage("user", "first", nil)
	require.Eventually(t, func() bool { return g.saveCount() == 1 },
		2*time.Second, 5*time.Millisecond)

	st.AddChatMessage("user", "second", nil)
	require.Eventually(t, func() bool { return g.saveCount() == 2 },
		2*time.Second, 5*time.Millisecond)
}

func TestSaveFailureStillUpdatesLocalCache(t *testing.T) {
	g := newFakeGateway(t)
	g.saveStatus = http.StatusInternalServerError

	coord, st, cache := newTestCoordinator(t, g, 20*time.Millisecond)
	coord.Start(context.Background())
	defer coord.Close()

	food := st.AddCustomFood("trail mix", "30g", 5, 15, 10)

	require.Eventually(t, func() bool {
		cached, err := cache.Get()
		return err == nil && cached != nil && len(cached.CustomFoods) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cached, err := cache.Get()
	require.NoError(t, err)
	assert.Equal(t, food.ID, cached.CustomFoods[0].ID)
	assert.Zero(t, g.saveCount())
}

func TestRefreshCancelsPendingSave(t *testing.T) {
	g := newFakeGateway(t)

	coord, st, _ := newTestCoordinator(t, g, 30*time.Millisecond)
	coord.Start(context.Background())
	defer coord.Close()

	st.AddChatMessage("user", "about to be refreshed away", nil)
	coord.Refresh(context.Background())

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, g.saveCount(), "refresh must cancel the debounced save")

	// Autosave works again after the refresh finishes.
	st.AddChatMessage("user", "after refresh", nil)
	require.Eventually(t, func() bool { return g.saveCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestRefreshReplacesStateFromServer(t *testing.T) {
	g := newFakeGateway(t)

	coord, st, _ := newTestCoordinator(t, g, 10*time.Millisecond)
	coord.Start(context.Background())
	defer coord.Close()

	st.AddChatMessage("user", "local only", nil)

	snap := model.NewSnapshot("2024-02-01")
	snap.Settings.Theme = "dark"
	g.mu.Lock()
	g.loadStatus = http.StatusOK
	g.loadSnap = snap
	g.mu.Unlock()

	coord.Refresh(context.Background())

	got := st.Snapshot()
	assert.Equal(t, "dark", got.Settings.Theme)
	assert.Empty(t, got.ChatHistory, "server state replaces local state wholesale")
}

func TestCloseFlushesPendingSave(t *testing.T) {
	g := newFakeGateway(t)

	// Debounce far longer than the test; only Close can flush.
	coord, st, _ := newTestCoordinator(t, g, time.Hour)
	coord.Start(context.Background())

	st.AddChatMessage("user", "last words", nil)
	coord.Close()

	require.Equal(t, 1, g.saveCount())
	saved := g.lastSave()
	total := 0
	for _, msgs := range saved.ChatHistory {
		total += len(msgs)
	}
	assert.Equal(t, 1, total)
}

func TestCloseWithNothingPendingIsQuiet(t *testing.T) {
	g := newFakeGateway(t)

	coord, _, _ := newTestCoordinator(t, g, time.Hour)
	coord.Start(context.Background())
	coord.Close()

	assert.Zero(t, g.saveCount())
}
