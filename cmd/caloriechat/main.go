package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caloriechat/caloriechat/internal/database"
	"github.com/caloriechat/caloriechat/internal/logging"
	"github.com/caloriechat/caloriechat/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CALORIECHAT_LOG_LEVEL"))

	port := os.Getenv("CALORIECHAT_PORT")
	if port == "" {
		port = "3001"
	}

	// Production deployments mount a volume at /app/data; development
	// keeps everything under the working directory.
	dataDir := "./data"
	if os.Getenv("CALORIECHAT_ENV") == "production" {
		dataDir = "/app/data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory %s: %v", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, "caloriechat.db")
	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	logger.Info("database ready", "path", dbPath)

	srv := server.New(db, dataDir, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("CalorieChat persistence service running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
