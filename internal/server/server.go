package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/caloriechat/caloriechat/internal/handler"
	"github.com/caloriechat/caloriechat/internal/middleware"
	"github.com/caloriechat/caloriechat/internal/migrate"
	"github.com/caloriechat/caloriechat/internal/store"
	ws "github.com/caloriechat/caloriechat/internal/websocket"
)

// Server wires the snapshot store, the gateway handlers and the
// notification hub behind one router.
type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	snapshotH *handler.SnapshotHandler
	logger    *slog.Logger
}

// New builds the server. dataDir is where the legacy flat file is looked
// for by the migration endpoint.
func New(db *sql.DB, dataDir string, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	snapshotStore := store.NewSnapshotStore(db)
	importer := migrate.NewImporter(snapshotStore, dataDir, logger.With("component", "migrate"))

	return &Server{
		db:        db,
		hub:       hub,
		snapshotH: handler.NewSnapshotHandler(snapshotStore, importer, hub, logger.With("component", "gateway")),
		logger:    logger,
	}
}

// Hub returns the notification hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/load-data", s.snapshotH.Load)
	mux.HandleFunc("POST /api/save-data", s.snapshotH.Save)
	mux.HandleFunc("GET /api/health", s.snapshotH.Health)
	mux.HandleFunc("POST /api/migrate-json", s.snapshotH.MigrateJSON)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.CORS(logged)
}
