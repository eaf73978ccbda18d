/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Marketplace Rules Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Seed the default tier table when no version is active yet
  4. Create API handler with dependencies
  5. Start the payout batch scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: marketplace.db)
             Use ":memory:" for in-memory database
  -interval  Payout batch check interval (default: 15m)

TRANSFER WIRING:
  The payment-transfer and fee-charge collaborators are simulated here.
  Production deployments swap in real processor clients at this seam.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the payout scheduler
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/marketplace.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/warp/marketplace-engine/api"
	"github.com/warp/marketplace-engine/engine"
	"github.com/warp/marketplace-engine/store/sqlite"
	"github.com/warp/marketplace-engine/tiers"
)

// simulatedTransfers stands in for the real payment-transfer client. Every
// transfer succeeds and returns a synthetic reference.
type simulatedTransfers struct{}

func (simulatedTransfers) Transfer(_ context.Context, workerID string, amount engine.Cents, payoutID string) (string, error) {
	log.Printf("[Transfers] Simulated transfer of %d cents to %s (payout %s)", amount, workerID, payoutID)
	return "sim-" + uuid.NewString(), nil
}

// simulatedCharges stands in for the real fee-charge client.
type simulatedCharges struct{}

func (simulatedCharges) ChargeFee(_ context.Context, userID string, amount engine.Cents, reason string) (string, error) {
	log.Printf("[Charges] Simulated charge of %d cents to %s: %s", amount, userID, reason)
	return "sim-" + uuid.NewString(), nil
}

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "marketplace.db", "SQLite database path")
	interval := flag.Duration("interval", 15*time.Minute, "Payout batch check interval")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed the default tier table on first boot
	if err := seedTierConfig(context.Background(), store); err != nil {
		log.Fatalf("Failed to seed tier config: %v", err)
	}

	// Initialize handler
	handler := api.NewHandler(store, simulatedTransfers{}, simulatedCharges{})

	// Start the payout batch scheduler
	scheduler := api.NewPayoutScheduler(handler.Processor)
	scheduler.CheckInterval = *interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// seedTierConfig activates the default bronze->platinum table when the
// database has no active tier config yet (fresh install).
func seedTierConfig(ctx context.Context, store *sqlite.Store) error {
	if _, err := store.ActiveConfig(ctx); err == nil {
		return nil
	} else if !errors.Is(err, engine.ErrNoActiveConfig) {
		return err
	}

	cfg, err := store.ActivateConfig(ctx, tiers.DefaultLevels())
	if err != nil {
		return err
	}
	log.Printf("Seeded default tier config (version %d)", cfg.Version)
	return nil
}
