/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the point ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, then load environment config
  2. Configure structured logging
  3. Initialize SQLite store
  4. Build the ledger service and background recomputer
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides LEDGER_PORT)
  -db      SQLite database path (overrides LEDGER_DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the recompute scheduler
  4. Close the database connection
  5. Exit

ENVIRONMENT:
  LEDGER_PORT, LEDGER_DB_PATH, LEDGER_CURRENCY_SYMBOL, LOG_LEVEL,
  LEDGER_RECOMPUTE_SPEC, LEDGER_LOCK_TIMEOUT_SECONDS,
  LEDGER_ALLOWED_ORIGINS, DEV_MODE. A .env file is honored.

SEE ALSO:
  - api/server.go: Router configuration
  - service/service.go: Ledger operations
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/point-ledger/api"
	"github.com/warp/point-ledger/config"
	"github.com/warp/point-ledger/service"
	"github.com/warp/point-ledger/store/sqlite"
)

func main() {
	// Flags override environment config.
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := newLogger(cfg)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	// Build service and background recomputer
	svc := service.New(store, log, cfg.CurrencySymbol,
		service.WithLockTimeout(cfg.LockTimeout))

	recomputer := service.NewRecomputer(svc, log, cfg.RecomputeSpec)
	if err := recomputer.Start(); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.RecomputeSpec).Msg("failed to start recompute scheduler")
	}

	// Create router and server
	router := api.NewRouter(api.NewHandler(svc), cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	recomputer.Stop()

	log.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out = zerolog.New(os.Stderr)
	if cfg.DevMode {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.Level(level).With().Timestamp().Logger()
}
