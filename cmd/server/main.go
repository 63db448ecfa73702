package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calderglen/joinery-imports/internal/config"
	"github.com/calderglen/joinery-imports/internal/history"
	"github.com/calderglen/joinery-imports/internal/importer"
	"github.com/calderglen/joinery-imports/internal/logging"
	_ "github.com/calderglen/joinery-imports/internal/schema" // Register all importers
	"github.com/calderglen/joinery-imports/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend_url", cfg.Backend.URL,
		"upload_max_concurrent", cfg.Upload.MaxConcurrentLoads,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_enabled", cfg.HistoryEnabled(),
	)

	ctx := context.Background()

	// Submission history is optional; the service runs without a database
	var hist *history.Store
	if cfg.HistoryEnabled() {
		hist, err = history.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			slog.Error("failed to open history store", "error", err)
			os.Exit(1)
		}
		defer hist.Close()
		slog.Info("history store ready")
	}

	backend := importer.NewBackendClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout)

	manager := importer.NewManager(backend, importer.ManagerOptions{
		SessionTTL:         cfg.Upload.SessionTTL,
		DoneLinger:         cfg.Upload.DoneLinger,
		MaxConcurrentLoads: cfg.Upload.MaxConcurrentLoads,
		LoadWait:           cfg.Upload.LoadWait,
	})

	slog.Info("importers registered", "count", importer.Count())

	// Create server with config
	server := web.NewServer(manager, hist, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Sweep idle sessions in the background
	go manager.StartSweeper(jobCtx, cfg.Upload.SweepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight file decodes to complete (with timeout)
		status := manager.LoadStatus()
		if status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := manager.WaitForLoads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
