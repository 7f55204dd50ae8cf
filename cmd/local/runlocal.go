/*
File: cmd/local/runlocal.go
Description: Local development entrypoint. Runs the full service against
in-memory fakes so no GCP or Redis infrastructure is needed.
*/
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/saiyanhack13/geopressci-realtime/internal/app"
	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/internal/fakes"
	"github.com/saiyanhack13/geopressci-realtime/internal/notify"
	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
	"github.com/saiyanhack13/geopressci-realtime/realtimeservice"
	"github.com/saiyanhack13/geopressci-realtime/realtimeservice/config"
)

const localJWTSecret = "local-dev-secret"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})).With("service", "geopressci-realtime-local")
	slog.SetDefault(logger)

	cfg := &config.AppConfig{
		ProjectID:            "local-dev",
		RunMode:              "local",
		APIPort:              "8080",
		WebSocketPort:        "8081",
		JWTSecret:            localJWTSecret,
		NumPipelineWorkers:   2,
		SweepIntervalSeconds: 10,
	}

	deps := &presence.ServiceDependencies{
		EventProducer:     fakes.NewEventProducer(),
		EventConsumer:     fakes.NewInMemoryConsumer(32, zerolog.Nop()),
		SubscriptionStore: fakes.NewSubscriptionStore(),
		PushSender:        fakes.NewPushSender(),
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Error("Failed to initialize token verifier", "err", err)
		os.Exit(1)
	}

	hub, err := realtime.NewHub(
		":"+cfg.WebSocketPort,
		verifier.WebsocketMiddleware(logger),
		deps.SubscriptionStore,
		logger.With("component", "Hub"),
	)
	if err != nil {
		logger.Error("Failed to create WebSocket hub", "err", err)
		os.Exit(1)
	}

	router := realtime.NewRouter(hub, logger)
	notifier, err := notify.NewNotifier(router, deps.PushSender, logger.With("component", "Notifier"))
	if err != nil {
		logger.Error("Failed to create notifier", "err", err)
		os.Exit(1)
	}
	hub.SetOrderUpdateFunc(notifier.HandleInboundUpdate)

	sweeper := realtime.NewSweeper(hub, time.Duration(cfg.SweepIntervalSeconds)*time.Second, logger)

	apiService, err := realtimeservice.New(
		cfg,
		deps,
		hub,
		notifier,
		verifier.Middleware(logger),
		logger.With("component", "ApiService"),
	)
	if err != nil {
		logger.Error("Failed to create API service", "err", err)
		os.Exit(1)
	}

	app.Run(context.Background(), logger, apiService, hub, sweeper)
}
