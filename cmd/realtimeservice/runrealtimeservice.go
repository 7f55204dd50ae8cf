/*
File: cmd/realtimeservice/runrealtimeservice.go
Description: Main entrypoint for the realtime service.
Handles config loading, dependency injection, and starting the application.
*/
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog" // Required for interoperability with some libs DO NOT REMOVE
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	"github.com/saiyanhack13/geopressci-realtime/internal/app"
	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/internal/notify"
	"github.com/saiyanhack13/geopressci-realtime/internal/platform/persistence"
	psub "github.com/saiyanhack13/geopressci-realtime/internal/platform/pubsub"
	"github.com/saiyanhack13/geopressci-realtime/internal/platform/push"
	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
	"github.com/saiyanhack13/geopressci-realtime/realtimeservice"
	"github.com/saiyanhack13/geopressci-realtime/realtimeservice/config"
)

//go:embed config.yaml
var configFile []byte

func main() {
	// --- 1. Setup structured logging (slog) ---
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "geopressci-realtime")

	slog.SetDefault(logger)

	// --- 2. Load Configuration (Stage 0: Unmarshal) ---
	var yamlCfg config.YamlConfig
	err := yaml.Unmarshal(configFile, &yamlCfg)
	if err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}

	// --- 3. Build Base Config (Stage 1: YAML to Base Struct) ---
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Failed to build base configuration from YAML", "err", err)
		os.Exit(1)
	}

	// --- 4. Apply Overrides & Validate (Stage 2: Env Vars) ---
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Failed to finalize configuration with environment overrides", "err", err)
		os.Exit(1)
	}

	// Convert topic/sub IDs to full GCP resource names
	cfg.IngressTopicID = convertPubsub(cfg.ProjectID, cfg.IngressTopicID, Pub)
	cfg.IngressSubscriptionID = convertPubsub(cfg.ProjectID, cfg.IngressSubscriptionID, Sub)
	cfg.IngressTopicDLQID = convertPubsub(cfg.ProjectID, cfg.IngressTopicDLQID, Pub)
	cfg.PushNotificationsTopicID = convertPubsub(cfg.ProjectID, cfg.PushNotificationsTopicID, Pub)

	// --- 5. Create dependencies ---
	ctx := context.Background()

	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dependencies", "err", err)
		os.Exit(1)
	}

	// --- 6. Create Authentication Middlewares ---
	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Error("Failed to initialize token verifier", "err", err)
		os.Exit(1)
	}
	httpAuthMiddleware := verifier.Middleware(logger)
	wsAuthMiddleware := verifier.WebsocketMiddleware(logger)

	// --- 7. Assemble the hub, router, and notifier ---
	hub, err := realtime.NewHub(
		":"+cfg.WebSocketPort,
		wsAuthMiddleware,
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
	// Client-originated order_update frames relay through the notifier.
	hub.SetOrderUpdateFunc(notifier.HandleInboundUpdate)

	sweeper := realtime.NewSweeper(hub, time.Duration(cfg.SweepIntervalSeconds)*time.Second, logger)

	// --- 8. Create the API service ---
	apiService, err := realtimeservice.New(
		cfg,
		deps,
		hub,
		notifier,
		httpAuthMiddleware,
		logger.With("component", "ApiService"),
	)
	if err != nil {
		logger.Error("Failed to create API service", "err", err)
		os.Exit(1)
	}

	// --- 9. Run the application ---
	app.Run(ctx, logger, apiService, hub, sweeper)
}

// newDependencies builds the service dependency container.
func newDependencies(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*presence.ServiceDependencies, error) {
	// Always builds production dependencies.
	// Emulators are handled via environment variables, not a config flag.
	logger.Debug("Connecting to PubSub", "project_id", cfg.ProjectID)
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pubsub: %w", err)
	}

	err = ensureTopics(ctx, cfg, psClient, logger)
	if err != nil {
		return nil, err
	}

	subscriptionStore, err := newSubscriptionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Creating ingestion producer", "topic", cfg.IngressTopicID)
	eventProducer := psub.NewProducer(psClient.Publisher(cfg.IngressTopicID))

	eventConsumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
	if err != nil {
		return nil, err
	}
	pushSender, err := newPushSender(cfg, psClient, subscriptionStore, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("All production dependencies initialized")

	return &presence.ServiceDependencies{
		EventProducer:     eventProducer,
		EventConsumer:     eventConsumer,
		SubscriptionStore: subscriptionStore,
		PushSender:        pushSender,
	}, nil
}

// newSubscriptionStore creates the pluggable push-subscription store based on config.
func newSubscriptionStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (presence.SubscriptionStore, error) {
	storeType := cfg.SubscriptionStore.Type
	logger.Info("Initializing push-subscription store...", "type", storeType)

	switch storeType {
	case "firestore":
		collection := cfg.SubscriptionStore.Firestore.CollectionName
		if collection == "" {
			logger.Error("subscription_store type is firestore but no collection name is configured")
			return nil, fmt.Errorf("subscription_store type is firestore but no collection name is configured")
		}
		logger.Debug("Connecting to Firestore", "project_id", cfg.ProjectID, "collection", collection)
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to firestore: %w", err)
		}
		return persistence.NewFirestoreSubscriptionStore(fsClient, collection, logger)

	case "redis":
		redisAddr := cfg.SubscriptionStore.Redis.Addr
		if redisAddr == "" {
			logger.Error("subscription_store type is redis but no address is configured (check REDIS_ADDR env var)")
			return nil, fmt.Errorf("subscription_store type is redis but no address is configured (check REDIS_ADDR env var)")
		}
		logger.Debug("Connecting to Redis subscription store", "addr", redisAddr)
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
		// Test the connection
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to connect to redis subscription store", "addr", redisAddr, "err", err)
			return nil, fmt.Errorf("failed to connect to redis subscription store at %s: %w", redisAddr, err)
		}
		logger.Info("Connected to Redis subscription store", "addr", redisAddr)
		return persistence.NewRedisSubscriptionStore(rdb, logger)

	default:
		return nil, fmt.Errorf("invalid subscription_store type: %s (must be 'firestore' or 'redis')", storeType)
	}
}

// ensureTopics creates Pub/Sub topics if they don't already exist.
func ensureTopics(ctx context.Context, cfg *config.AppConfig, psClient *pubsub.Client, logger *slog.Logger) error {
	for _, topicName := range []string{cfg.IngressTopicID, cfg.IngressTopicDLQID, cfg.PushNotificationsTopicID} {
		topic := &pubsubpb.Topic{
			Name: topicName,
		}
		logger.Debug("Ensuring topic exists", "topic", topicName)
		_, err := psClient.TopicAdminClient.CreateTopic(ctx, topic)
		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				logger.Debug("Topic already exists, skipping creation", "topic", topicName)
			} else {
				logger.Error("Failed to create topic", "topic", topicName, "err", err)
				return fmt.Errorf("could not create topic: %s", topicName)
			}
		}
	}
	return nil
}

// newIngestionConsumer creates the Pub/Sub subscription and consumer.
func newIngestionConsumer(ctx context.Context, cfg *config.AppConfig, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	subConfig := &pubsubpb.Subscription{
		Name:               cfg.IngressSubscriptionID,
		Topic:              cfg.IngressTopicID,
		AckDeadlineSeconds: 10,
		DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     cfg.IngressTopicDLQID,
			MaxDeliveryAttempts: 5,
		},
		EnableMessageOrdering: false,
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", cfg.IngressSubscriptionID)
		}
	}

	// This external library expects a zerolog.Logger. We pass zerolog.Nop()
	// as our service-wide logger is slog.
	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, zerolog.Nop(),
	)
}

// newPushSender creates the producer for sending push-notification commands.
func newPushSender(cfg *config.AppConfig, psClient *pubsub.Client, store presence.SubscriptionStore, logger *slog.Logger) (presence.PushSender, error) {
	logger.Debug("Initializing push command producer", "topic", cfg.PushNotificationsTopicID)

	// This external library also expects a zerolog.Logger. We pass Nop.
	pushProducer, err := messagepipeline.NewGooglePubsubProducer(
		messagepipeline.NewGooglePubsubProducerDefaults(cfg.PushNotificationsTopicID), psClient, zerolog.Nop(),
	)
	if err != nil {
		return nil, err
	}
	return push.NewSender(pushProducer, store, logger)
}

// PS is a type for Pub/Sub resource types (Topic or Subscription).
type PS string

const (
	// Sub identifies a subscription resource.
	Sub PS = "subscriptions"
	// Pub identifies a topic resource.
	Pub PS = "topics"
)

// convertPubsub formats a short ID into a full GCP resource name.
func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
