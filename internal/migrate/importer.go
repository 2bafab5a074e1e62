// Package migrate implements the one-shot import of the legacy flat-file
// snapshot into the relational store.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caloriechat/caloriechat/internal/model"
	"github.com/caloriechat/caloriechat/internal/store"
)

// LegacyFileName is the flat-file snapshot the pre-SQLite deployment wrote.
const LegacyFileName = "caloriechat.json"

// ErrNoLegacyFile means there is nothing to import. Running the importer
// again after a successful import lands here, which is what makes the
// migration one-shot.
var ErrNoLegacyFile = errors.New("no legacy file found to migrate")

// ErrInvalidLegacyFile wraps parse failures: the file exists but is not a
// valid snapshot document. The store is untouched in this case.
var ErrInvalidLegacyFile = errors.New("legacy file is not a valid snapshot")

// BackupError reports the asymmetric failure mode: the import transaction
// committed but the legacy file could not be renamed out of the way. The
// store holds the imported data; the caller must surface this distinctly
// from an import that failed entirely.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("import committed but backing up %s failed: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// Importer migrates the legacy JSON snapshot through the same replace
// transaction the save handler uses.
type Importer struct {
	store   *store.SnapshotStore
	dataDir string
	logger  *slog.Logger
	now     func() time.Time
}

func NewImporter(st *store.SnapshotStore, dataDir string, logger *slog.Logger) *Importer {
	return &Importer{store: st, dataDir: dataDir, logger: logger, now: time.Now}
}

// Run parses the legacy file, replaces the stored snapshot with its
// contents, and renames the file to <name>.bak.<timestamp>. The store is
// untouched unless the file parses as a snapshot document; a rename
// failure after the commit is returned as *BackupError.
func (i *Importer) Run(ctx context.Context) (backupFile string, err error) {
	legacyPath := filepath.Join(i.dataDir, LegacyFileName)

	raw, err := os.ReadFile(legacyPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoLegacyFile
	}
	if err != nil {
		return "", fmt.Errorf("read legacy file: %w", err)
	}

	// Same validate-then-replace path as a normal save.
	snap, err := model.ParseSnapshot(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLegacyFile, err)
	}

	if err := i.store.ReplaceSnapshot(ctx, snap); err != nil {
		return "", fmt.Errorf("import snapshot: %w", err)
	}

	backupFile = fmt.Sprintf("%s.bak.%d", legacyPath, i.now().UnixMilli())
	if err := os.Rename(legacyPath, backupFile); err != nil {
		return "", &BackupError{Path: legacyPath, Err: err}
	}

	entries, foods, messages := snap.Counts()
	i.logger.Info("legacy data migrated",
		"backup", backupFile,
		"entries", entries,
		"custom_foods", foods,
		"chat_messages", messages,
	)
	return backupFile, nil
}
