// Package realtimeservice wires the HTTP API and the order-event pipeline
// into a single runnable service. The websocket hub runs alongside it as a
// separate listener; see cmd/realtimeservice.
package realtimeservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/rs/zerolog"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"

	"github.com/saiyanhack13/geopressci-realtime/internal/api"
	"github.com/saiyanhack13/geopressci-realtime/internal/notify"
	"github.com/saiyanhack13/geopressci-realtime/internal/pipeline"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
	"github.com/saiyanhack13/geopressci-realtime/realtimeservice/config"
)

// Wrapper embeds BaseServer to get standard server functionality.
type Wrapper struct {
	*microservice.BaseServer
	processingService *messagepipeline.StreamingService[presence.OrderEvent]
	apiHandler        *api.API
	logger            *slog.Logger
	httpReadyChan     chan struct{}
}

// New creates and wires up the API service using the base server.
func New(
	cfg *config.AppConfig,
	dependencies *presence.ServiceDependencies,
	stats api.StatsSource,
	notifier *notify.Notifier,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// The base server expects a zerolog.Logger. We pass zerolog.Nop() as our
	// service-wide logger is slog.
	baseServer := microservice.NewBaseServer(zerolog.Nop(), ":"+cfg.APIPort)

	httpReadyChan := make(chan struct{})
	baseServer.SetReadyChannel(httpReadyChan)

	apiHandler := api.NewAPI(
		dependencies.EventProducer,
		stats,
		logger.With("component", "API"),
	)

	processingService, err := newProcessingService(cfg, dependencies, notifier, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create processing service: %w", err)
	}

	mux := baseServer.Mux()

	newOrderHandler := http.HandlerFunc(apiHandler.NewOrderHandler)
	orderStatusHandler := http.HandlerFunc(apiHandler.OrderStatusHandler)
	statsHandler := http.HandlerFunc(apiHandler.StatsHandler)

	mux.Handle("POST /api/notify/new-order", authMiddleware(newOrderHandler))
	mux.Handle("POST /api/notify/order-status", authMiddleware(orderStatusHandler))
	mux.Handle("GET /api/stats", authMiddleware(statsHandler))

	return &Wrapper{
		BaseServer:        baseServer,
		processingService: processingService,
		apiHandler:        apiHandler,
		logger:            logger,
		httpReadyChan:     httpReadyChan,
	}, nil
}

// newProcessingService builds the order-event fan-out pipeline.
func newProcessingService(
	cfg *config.AppConfig,
	dependencies *presence.ServiceDependencies,
	notifier *notify.Notifier,
	logger *slog.Logger,
) (*messagepipeline.StreamingService[presence.OrderEvent], error) {

	processor := pipeline.NewEventProcessor(notifier, logger.With("component", "EventProcessor"))

	// The pipeline library expects a zerolog.Logger; see above.
	return messagepipeline.NewStreamingService[presence.OrderEvent](
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		dependencies.EventConsumer,
		pipeline.OrderEventTransformer,
		processor,
		zerolog.Nop(),
	)
}

// Start runs the service's background components before starting the base HTTP server.
func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Order-event pipeline starting...")
	if err := w.processingService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}

	serverErrChan := make(chan error, 1)
	go func() {
		if err := w.BaseServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("HTTP server failed", "err", err)
			serverErrChan <- err
		}
		close(serverErrChan)
	}()

	// Wait for EITHER the server to be ready OR for it to fail on startup.
	select {
	case <-w.httpReadyChan:
		// Closed by BaseServer.Start() after net.Listen() succeeds.
		w.logger.Info("HTTP listener is active.")
		w.SetReady(true)
		w.logger.Info("Service is now ready.")

	case err := <-serverErrChan:
		return fmt.Errorf("HTTP server failed to start: %w", err)

	case <-ctx.Done():
		return ctx.Err()
	}

	// Wait for the server goroutine to exit (which happens on Shutdown).
	if err := <-serverErrChan; err != nil {
		return err
	}

	return nil
}

// Shutdown gracefully stops all service components in the correct order.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error

	if err := w.processingService.Stop(ctx); err != nil {
		w.logger.Error("Processing service shutdown failed.", "err", err)
		finalErr = err
	}

	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}

	w.logger.Info("All components shut down.")
	return finalErr
}
