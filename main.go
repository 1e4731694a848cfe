package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shapeCluster/config"
	"shapeCluster/internal/adapters/logger"
	"shapeCluster/internal/app"
	"shapeCluster/internal/handler/api"
	"shapeCluster/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Load the price snapshot once; every request reads it
	snapshot, err := app.LoadSnapshot(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to load price snapshot")
		log.Fatalf("FATAL: Failed to load price snapshot: %v", err)
	}

	// 4. Initialize Application Service
	recorder := metrics.New()
	service, err := app.NewClusteringService(cfg, appLogger, recorder, snapshot)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize clustering service")
		log.Fatalf("FATAL: Failed to initialize clustering service: %v", err)
	}

	// 5. HTTP API
	handler, err := api.New(api.Config{
		Service:        service,
		Logger:         appLogger,
		Metrics:        recorder.Handler(),
		DefaultClasses: cfg.DefaultClasses,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize API handler")
		log.Fatalf("FATAL: Failed to initialize API handler: %v", err)
	}
	server := api.NewServer(handler)

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := server.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(ctx, err, "HTTP server stopped with error")
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info(context.Background(), "Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "Error during HTTP server shutdown")
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
