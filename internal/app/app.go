// Package app contains the shared, reusable logic for starting and stopping the service.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/realtimeservice"
)

// Run executes the main application lifecycle for the realtime service. It
// starts the API service, the websocket hub, and the liveness sweeper,
// listens for OS signals, and performs a graceful shutdown of all three.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	apiService *realtimeservice.Wrapper,
	hub *realtime.Hub,
	sweeper *realtime.Sweeper,
) {
	var wg sync.WaitGroup
	wg.Add(3)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start the services in separate goroutines.
	go func() {
		defer wg.Done()
		logger.Info("Starting API Service...")
		err := apiService.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("API Service failed", "err", err)
			cancel() // Trigger shutdown of other services.
		}
	}()

	go func() {
		defer wg.Done()
		logger.Info("Starting WebSocket Hub...")
		err := hub.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("WebSocket Hub failed", "err", err)
			cancel()
		}
	}()

	go func() {
		defer wg.Done()
		logger.Info("Starting liveness sweeper...")
		err := sweeper.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Liveness sweeper failed", "err", err)
			cancel()
		}
	}()

	// Wait for a shutdown signal.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-shutdown:
		logger.Info("Received shutdown signal.", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown.")
	}

	// Execute graceful shutdown. Cancelling the context stops the sweeper.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down API Service...")
	err := apiService.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("API Service shutdown failed.", "err", err)
	}

	logger.Info("Shutting down WebSocket Hub...")
	err = hub.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error("WebSocket Hub shutdown failed.", "err", err)
	}

	wg.Wait()
	logger.Info("All services shut down gracefully.")
}
