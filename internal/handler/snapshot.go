package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/caloriechat/caloriechat/internal/migrate"
	"github.com/caloriechat/caloriechat/internal/model"
	"github.com/caloriechat/caloriechat/internal/store"
	"github.com/caloriechat/caloriechat/internal/websocket"
)

// Payloads are full snapshots; 10 MiB matches the original deployment's
// body limit.
const maxBodyBytes = 10 << 20

// LegacyImporter runs the one-shot flat-file import. Satisfied by
// *migrate.Importer.
type LegacyImporter interface {
	Run(ctx context.Context) (backupFile string, err error)
}

// SnapshotHandler is the store gateway: it translates between the HTTP
// surface and the snapshot store's read/replace operations.
type SnapshotHandler struct {
	store    *store.SnapshotStore
	importer LegacyImporter
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSnapshotHandler(st *store.SnapshotStore, imp LegacyImporter, hub *websocket.Hub, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{store: st, importer: imp, hub: hub, logger: logger}
}

func (h *SnapshotHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Load handles GET /api/load-data. A fresh store is not an error: the
// response carries default settings and empty collections.
func (h *SnapshotHandler) Load(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.ReadSnapshot(r.Context())
	if err != nil {
		h.logger.Error("load snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch data",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, snap)

	entries, foods, messages := snap.Counts()
	h.logger.Info("snapshot loaded", "entries", entries, "custom_foods", foods, "chat_messages", messages)
}

// saveEnvelope is the optional wrapper the legacy browser client sends:
// the snapshot either arrives bare or as {"data": <string-or-object>}.
type saveEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// Save handles POST /api/save-data. The whole replacement is one
// transaction; on failure the prior stored state remains authoritative.
func (h *SnapshotHandler) Save(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	snap, err := decodeSavePayload(body)
	if err != nil {
		h.logger.Warn("invalid save payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid data provided. Expected state object.",
		})
		return
	}

	if err := h.store.ReplaceSnapshot(r.Context(), snap); err != nil {
		h.logger.Error("save snapshot", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to save data",
			"details": err.Error(),
		})
		return
	}

	entries, foods, messages := snap.Counts()
	h.logger.Info("snapshot saved", "entries", entries, "custom_foods", foods, "chat_messages", messages)

	h.broadcast(websocket.NewMessage("snapshot", "saved"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeSavePayload unwraps the optional {"data": ...} envelope, where the
// inner value may itself be a JSON-encoded string, and validates that the
// result is a snapshot object.
func decodeSavePayload(body []byte) (*model.Snapshot, error) {
	var env saveEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if env.Data[0] == '"' {
			var inner string
			if err := json.Unmarshal(env.Data, &inner); err != nil {
				return nil, err
			}
			return model.ParseSnapshot([]byte(inner))
		}
		return model.ParseSnapshot(env.Data)
	}
	return model.ParseSnapshot(body)
}

// Health handles GET /api/health.
func (h *SnapshotHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "database": "SQLite"})
}

// MigrateJSON handles POST /api/migrate-json, running the legacy importer.
func (h *SnapshotHandler) MigrateJSON(w http.ResponseWriter, r *http.Request) {
	backupFile, err := h.importer.Run(r.Context())

	var backupErr *migrate.BackupError
	switch {
	case errors.Is(err, migrate.ErrNoLegacyFile):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No JSON file found to migrate"})
		return
	case errors.As(err, &backupErr):
		// The import itself committed; only the backup rename failed.
		// The legacy file is still in place and would re-import.
		h.logger.Error("legacy backup rename failed", "error", err, "file", backupErr.Path)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Migration succeeded but the legacy file could not be backed up",
			"details": err.Error(),
		})
		return
	case errors.Is(err, migrate.ErrInvalidLegacyFile):
		h.logger.Warn("legacy file invalid", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid JSON data format",
			"details": err.Error(),
		})
		return
	case err != nil:
		h.logger.Error("legacy migration failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Migration failed",
			"details": err.Error(),
		})
		return
	}

	h.broadcast(websocket.NewMessage("snapshot", "migrated"))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Migration from JSON to SQLite completed successfully",
		"backupFile": backupFile,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
