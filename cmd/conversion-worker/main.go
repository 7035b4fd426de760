package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/simple-content-conversions/internal/config"
	"github.com/tendant/simple-content-conversions/internal/logging"
	"github.com/tendant/simple-content-conversions/pkg/runner"
)

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

	// DBOS is required for the worker
	if cfg.DBOSDatabaseURL == "" {
		logger.Error("DBOS_SYSTEM_DATABASE_URL is required")
		os.Exit(1)
	}

	var extraQueues []string
	if cfg.QueueName != "" && cfg.QueueName != cfg.DBOSQueueName {
		extraQueues = append(extraQueues, cfg.QueueName)
	}

	r, err := runner.New(runner.Config{
		DatabaseURL:        cfg.DBOSDatabaseURL,
		AppName:            cfg.DBOSAppName,
		QueueName:          cfg.DBOSQueueName,
		ExtraQueues:        extraQueues,
		Concurrency:        cfg.DBOSConcurrency,
		ApplicationVersion: cfg.DBOSAppVersion,
		ConversionsFile:    cfg.ConversionsFile,
		TempDir:            cfg.TempDir,
		DefaultDisk:        cfg.DefaultDisk,
		StorageDir:         cfg.StorageDir,
		S3Bucket:           cfg.S3.Bucket,
		S3Region:           cfg.S3.Region,
		S3AccessKeyID:      cfg.S3.AccessKeyID,
		S3SecretAccessKey:  cfg.S3.SecretAccessKey,
		S3Endpoint:         cfg.S3.Endpoint,
		S3UsePathStyle:     cfg.S3.UsePathStyle,
		GCSBucket:          cfg.GCSBucket,
		GCSCredentialsFile: cfg.GCSCredFile,
		LedgerDatabaseURL:  cfg.LedgerDatabaseURL,
		PDFToPPMBin:        cfg.PDFToPPMBin,
		RSVGBin:            cfg.RSVGBin,
		FFmpegBin:          cfg.FFmpegBin,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}
	defer r.Shutdown(10)

	logger.Info("storage disks ready", "disks", r.Disks().Names(), "default", cfg.DefaultDisk)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r.Handler("worker"),
	}

	go func() {
		logger.Info("conversion worker starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
