package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-content-conversions/internal/config"
	"github.com/tendant/simple-content-conversions/internal/logging"
	"github.com/tendant/simple-content-conversions/pkg/runner"
)

// Standalone conversion service for local development. Uses filesystem
// storage, an embedded simple-content service and a Pebble job queue, so no
// database is needed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// In-memory repository + filesystem storage
	svc, cleanup, err := presets.NewDevelopment(
		presets.WithDevStorage(filepath.Join(cfg.StorageDir, ".content")),
	)
	if err != nil {
		logger.Error("failed to initialize simple-content service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	r, err := runner.NewLocal(runner.Config{
		QueueName:              cfg.QueueName,
		LocalQueueDir:          cfg.LocalQueueDir,
		LocalQueuePollInterval: cfg.LocalQueuePollInterval,
		ConversionsFile:        cfg.ConversionsFile,
		TempDir:                cfg.TempDir,
		DefaultDisk:            cfg.DefaultDisk,
		StorageDir:             cfg.StorageDir,
		ContentService:         svc,
		LedgerDatabaseURL:      cfg.LedgerDatabaseURL,
		PDFToPPMBin:            cfg.PDFToPPMBin,
		RSVGBin:                cfg.RSVGBin,
		FFmpegBin:              cfg.FFmpegBin,
		Logger:                 logger,
	})
	if err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}
	defer r.Shutdown(10)

	logger.Info("conversion standalone",
		"storage_dir", cfg.StorageDir,
		"queue_dir", cfg.LocalQueueDir,
		"disks", r.Disks().Names(),
		"addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan error, 1)
	go func() { workerDone <- r.Run(ctx) }()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r.Handler("standalone"),
	}

	go func() {
		logger.Info("available endpoints",
			"derived", "POST /v1/derived",
			"jobs", "POST /v1/jobs, GET /v1/jobs/{id}",
			"conversions", "GET /v1/conversions",
			"drivers", "GET /v1/drivers")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := <-workerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("queue worker stopped", "error", err)
	}

	logger.Info("server stopped")
}
