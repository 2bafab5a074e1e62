package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caloriechat/caloriechat/internal/model"
)

// Cache is the client's local snapshot cache: one JSON file, the analogue
// of the browser storage key the original client kept. It is owned
// exclusively by the Coordinator; nothing else reads or writes it.
type Cache struct {
	path string
}

// NewCache creates a cache stored at the given file path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Get returns the cached snapshot, or (nil, nil) when the cache is empty.
func (c *Cache) Get() (*model.Snapshot, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode cache: %w", err)
	}
	return &snap, nil
}

// Put replaces the cached snapshot. The write goes through a temp file and
// rename so a crash mid-write cannot leave a truncated cache.
func (c *Cache) Put(snap *model.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
