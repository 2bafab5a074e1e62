// Command migrate triggers the one-shot import of the legacy flat-file
// snapshot into the SQLite store, via the running persistence service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caloriechat/caloriechat/internal/sync"
)

func main() {
	baseURL := flag.String("url", "http://localhost:3001", "base URL of the persistence service")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := sync.NewClient(*baseURL)

	health, err := client.Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach persistence service at %s: %v\n", *baseURL, err)
		fmt.Fprintln(os.Stderr, "make sure the caloriechat server is running")
		os.Exit(1)
	}
	if health.Database != "SQLite" {
		fmt.Fprintf(os.Stderr, "warning: service reports backend %q, expected SQLite\n", health.Database)
	}

	result, err := client.MigrateLegacy(ctx)
	if errors.Is(err, sync.ErrNotFound) {
		fmt.Println("No legacy JSON file found. Nothing to migrate — if this is a fresh install, that is normal.")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.Message)
	fmt.Printf("The original file has been backed up to %s\n", result.BackupFile)
}
