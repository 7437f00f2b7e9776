/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the EOD reporting server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (file + EOD_* environment)
  3. Initialize logger and SQLite store
  4. Wire engine, handler, router, reminder scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Configuration file path (default: ./config.yaml if present)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reminder scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run with explicit config
  ./server -config=./deploy/config.yaml

  # Override port via environment
  EOD_SERVER_PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/eod-reports/api"
	"github.com/warp/eod-reports/config"
	"github.com/warp/eod-reports/lifecycle"
	"github.com/warp/eod-reports/notify"
	"github.com/warp/eod-reports/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire the engine and handlers
	engine := lifecycle.NewEngine(store, store)
	handler := api.NewHandler(store, engine, logger)
	router := api.NewRouter(handler)

	// Reminder scheduler
	mailer := notify.NewSMTPMailer(cfg.Reminders.SMTPAddr, cfg.Reminders.FromAddress)
	scheduler := api.NewReminderScheduler(store, mailer, logger)
	scheduler.CheckInterval = cfg.Reminders.CheckInterval
	scheduler.Enabled = cfg.Reminders.Enabled
	scheduler.DryRun = cfg.Reminders.DryRun
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
