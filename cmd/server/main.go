/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the piecework engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize logger and SQLite store
  3. Seed the stage catalog (and optionally demo data)
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: piecework.db)
              Use ":memory:" for an in-memory database
  -log-level  debug, info, warn, error (default: info)
  -dev        Pretty console logging
  -seed       Load demo data into an empty database and start

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run against the factory database
  ./server -db="./data/rbs.db"

  # Fresh demo instance
  ./server -db=":memory:" -seed -dev

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbstextile/piecework-engine/api"
	"github.com/rbstextile/piecework-engine/logger"
	"github.com/rbstextile/piecework-engine/production"
	"github.com/rbstextile/piecework-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "piecework.db", "SQLite database path")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	dev := flag.Bool("dev", false, "pretty console logging")
	seed := flag.Bool("seed", false, "load demo data into an empty database")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Development: *dev})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalw("failed to initialize database", "path", *dbPath, "error", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := production.SeedStages(ctx, store); err != nil {
		log.Fatalw("failed to seed stage catalog", "error", err)
	}
	if *seed {
		if err := api.SeedDemo(ctx, store); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
		log.Infow("demo data loaded")
	}

	// Initialize handler and router
	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port),
			"db", *dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Infow("server stopped")
}
