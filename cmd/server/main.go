/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the org leave policy (JSON file or built-in default)
  3. Initialize SQLite store
  4. Wire the leave service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: leave.db)
           Use ":memory:" for an in-memory database
  -policy  Optional org leave policy JSON file
  -seed    Insert a small demo directory on startup (dev only)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with a custom policy
  ./server -policy="./policy.json"

SEE ALSO:
  - api/server.go: Router configuration
  - config/policy.go: Policy loading
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vodichron/leave-engine/api"
	"github.com/vodichron/leave-engine/config"
	"github.com/vodichron/leave-engine/leave"
	"github.com/vodichron/leave-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "leave.db", "SQLite database path")
	policyPath := flag.String("policy", "", "org leave policy JSON file (optional)")
	seed := flag.Bool("seed", false, "insert a demo employee directory (dev only)")
	flag.Parse()

	// Load the org leave policy
	policy, err := config.LoadPolicy(*policyPath)
	if err != nil {
		log.Fatalf("Failed to load leave policy: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if *seed {
		if err := seedDirectory(store); err != nil {
			log.Fatalf("Failed to seed demo directory: %v", err)
		}
		log.Println("Seeded demo employee directory")
	}

	// Wire the engine: the SQLite store doubles as the directory
	svc := leave.NewService(store, store, &leave.LogNotifier{}, policy)

	// Create router
	router := api.NewRouter(api.NewHandler(svc))

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
		log.Printf("🚀 Leave engine starting on http://localhost:%d", *port)
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

// seedDirectory inserts a small org for manual testing: a director, a
// manager reporting to them, and two employees, one of them on a customer
// engagement with approval rights.
func seedDirectory(store *sqlite.Store) error {
	ctx := context.Background()

	employees := []leave.Employee{
		{ID: "dir-1", Name: "Dinesh Rao", Email: "dinesh@example.com",
			JoiningDate: leave.NewDate(2015, 7, 1)},
		{ID: "mgr-1", Name: "Meera Pillai", Email: "meera@example.com",
			ReportingManagerID: "dir-1", JoiningDate: leave.NewDate(2018, 3, 1)},
		{ID: "emp-1", Name: "Asha Nair", Email: "asha@example.com",
			ReportingManagerID: "mgr-1", JoiningDate: leave.NewDate(2023, 1, 9)},
		{ID: "emp-2", Name: "Ravi Menon", Email: "ravi@example.com",
			ReportingManagerID: "mgr-1", JoiningDate: leave.NewDate(2024, 6, 17)},
	}
	for _, e := range employees {
		if err := store.UpsertEmployee(ctx, e); err != nil {
			return err
		}
	}

	return store.UpsertCustomerAllocation(ctx, "emp-2", leave.CustomerAllocation{
		CustomerID:       "cust-1",
		CustomerName:     "Acme Logistics",
		Email:            "pm@acme.example",
		CustomerApprover: true,
	})
}
