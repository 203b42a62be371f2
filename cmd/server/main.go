/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the point engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (environment, then command-line flags)
  2. Set up tracing (only if POINT_OTEL_ENDPOINT is set)
  3. Initialize the store (memory or SQLite)
  4. Create the engine and API handler
  5. Start the idle lock sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080, env POINT_PORT)
  -storage      memory | sqlite (default: memory, env POINT_STORAGE)
  -db           SQLite database path (default: points.db, env POINT_DB_PATH)
                Use ":memory:" for an in-memory database
  -lock-policy  blocking | try (default: blocking, env POINT_LOCK_POLICY)
  -max-balance  balance ceiling (default: 1000000, env POINT_MAX_BALANCE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (POINT_SHUTDOWN_TIMEOUT)
  3. Flush traces, close database
  4. Exit

EXAMPLES:
  # In-memory, blocking per-user locks
  ./server

  # Reject concurrent requests for the same user instead of queueing them
  ./server -lock-policy=try

  # SQLite file
  ./server -storage=sqlite -db=./data/points.db
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/point-engine/api"
	"github.com/warp/point-engine/config"
	"github.com/warp/point-engine/point"
	"github.com/warp/point-engine/point/store"
	"github.com/warp/point-engine/store/sqlite"
	"github.com/warp/point-engine/telemetry"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), "point-engine", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown: %v", err)
		}
	}()

	// Initialize store
	stores, backend, err := openStores(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer backend.Close()

	policy, err := cfg.Policy()
	if err != nil {
		log.Fatalf("Invalid policy: %v", err)
	}

	engine := point.NewEngine(stores, policy)
	handler := api.NewHandler(engine)
	handler.Store = backend
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweeper := api.NewLockSweeper(engine.Locks)
	sweeper.Interval = cfg.LockSweepInterval
	sweeper.Start()
	defer sweeper.Stop()

	// Start server in goroutine
	go func() {
		log.Printf("[Server] Starting on http://localhost:%d (storage=%s lock=%s max=%d)",
			cfg.Port, cfg.Storage, policy.LockPolicy, policy.MaxBalance)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("[Server] Stopped")
}

// storeBackend is what main needs from a store besides the engine-facing views.
type storeBackend interface {
	io.Closer
	api.Resetter
}

func openStores(cfg config.Config) (point.Stores, storeBackend, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return point.Stores{}, nil, err
		}
		return s.Stores(), s, nil
	default:
		mem := store.NewMemory(store.WithLatency(cfg.StoreLatency))
		return mem.Stores(), memoryBackend{mem}, nil
	}
}

type memoryBackend struct{ *store.Memory }

func (memoryBackend) Close() error { return nil }
