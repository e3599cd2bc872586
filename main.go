package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/transcriptops/redactor/pkg/batch"
	"github.com/transcriptops/redactor/pkg/config"
	"github.com/transcriptops/redactor/pkg/health"
	"github.com/transcriptops/redactor/pkg/logger"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := batch.NewService(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to create batch service: %v", err)
	}

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		appLogger.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Expose health, status and metrics while the run is in progress
	healthServer := health.NewServer(cfg.MetricsPort, service.Summary())
	go healthServer.Start()

	summary, err := service.Run(ctx)
	if err != nil {
		log.Fatalf("Batch run aborted: %v", err)
	}
	if summary.HasFailures() {
		os.Exit(1)
	}
}
