// Package sync keeps the client state store and the store gateway in
// agreement: one load cycle at startup (server wins, cache as fallback),
// then debounced full-snapshot saves after every local change.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/caloriechat/caloriechat/internal/model"
	"github.com/caloriechat/caloriechat/internal/state"
)

// DefaultDebounce is the quiet interval a burst of changes must go
// without a new change before a save is issued.
const DefaultDebounce = 500 * time.Millisecond

// Coordinator owns the sync lifecycle. Exactly one load cycle runs per
// Start; autosave is armed only after it completes (success or exhausted
// fallback).
type Coordinator struct {
	state    *state.Store
	client   *Client
	cache    *Cache
	logger   *slog.Logger
	debounce time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	pending    *model.Snapshot
	armed      bool
	refreshing bool
}

// NewCoordinator wires the coordinator to a state store, gateway client
// and local cache. A zero debounce falls back to DefaultDebounce.
func NewCoordinator(st *state.Store, client *Client, cache *Cache, debounce time.Duration, logger *slog.Logger) *Coordinator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Coordinator{
		state:    st,
		client:   client,
		cache:    cache,
		logger:   logger,
		debounce: debounce,
	}
}

// Start runs the startup load cycle and then arms autosave. The locally
// cached snapshot is never treated as authoritative: the server's answer
// wins, and the cache is consulted only when the server cannot be
// reached. A "no data yet" response keeps the default snapshot — a normal
// first run, not an error.
func (c *Coordinator) Start(ctx context.Context) {
	c.loadCycle(ctx)

	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()

	c.state.OnChange(c.scheduleSave)
}

func (c *Coordinator) loadCycle(ctx context.Context) {
	snap, err := c.client.Load(ctx)
	switch {
	case err == nil:
		c.state.Load(snap)
		if cerr := c.cache.Put(snap); cerr != nil {
			c.logger.Warn("cache refresh failed", "error", cerr)
		}
		c.logger.Info("snapshot loaded from server")

	case errors.Is(err, ErrNotFound):
		c.logger.Info("no saved data on server, starting fresh")

	default:
		c.logger.Warn("server load failed, falling back to local cache", "error", err)
		cached, cerr := c.cache.Get()
		if cerr != nil {
			c.logger.Warn("local cache unreadable", "error", cerr)
			return
		}
		if cached == nil {
			c.logger.Info("no local cache, staying on defaults")
			return
		}
		c.state.Load(cached)
		c.logger.Info("snapshot restored from local cache")
	}
}

// scheduleSave coalesces a burst of changes into one save carrying the
// final snapshot: each change cancels and rearms the timer, so
// intermediate states are never persisted.
func (c *Coordinator) scheduleSave(snap *model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed || c.refreshing {
		return
	}

	c.pending = snap
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.flush)
}

// flush sends the pending snapshot. A failure is logged, not retried; the
// local cache still gets the attempted value so a later crash loses at
// most this one unsynced change, never corrupts anything.
func (c *Coordinator) flush() {
	c.mu.Lock()
	snap := c.pending
	c.pending = nil
	c.timer = nil
	refreshing := c.refreshing
	c.mu.Unlock()

	if snap == nil || refreshing {
		return
	}
	c.save(snap)
}

func (c *Coordinator) save(snap *model.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.client.Save(ctx, snap); err != nil {
		c.logger.Warn("save failed, keeping change locally", "error", err)
	}
	if err := c.cache.Put(snap); err != nil {
		c.logger.Warn("cache update failed", "error", err)
	}
}

// Refresh repeats the load procedure on demand. It is mutually exclusive
// with autosave: any pending save is cancelled first, and the snapshot
// replacement it performs is not interpreted as a user edit (Load never
// fires the change listener).
func (c *Coordinator) Refresh(ctx context.Context) {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.mu.Unlock()

	c.loadCycle(ctx)

	c.mu.Lock()
	c.refreshing = false
	c.mu.Unlock()
}

// Close flushes any pending debounced save synchronously so a clean
// shutdown does not drop the last edit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	snap := c.pending
	c.pending = nil
	c.armed = false
	c.mu.Unlock()

	if snap != nil {
		c.save(snap)
	}
}
