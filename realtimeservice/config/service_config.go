package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// AppConfig is the canonical, validated configuration object used throughout
// the application. It is created by NewConfigFromYaml (Stage 1) and
// finalized by UpdateConfigWithEnvOverrides (Stage 2).
type AppConfig struct {
	ProjectID                string
	RunMode                  string
	APIPort                  string
	WebSocketPort            string
	JWTSecret                string
	CorsConfig               middleware.CorsConfig
	SubscriptionStore        YamlSubscriptionStoreConfig
	IngressTopicID           string
	IngressSubscriptionID    string
	IngressTopicDLQID        string
	PushNotificationsTopicID string
	NumPipelineWorkers       int
	SweepIntervalSeconds     int
}

// UpdateConfigWithEnvOverrides takes the base configuration (created from
// YAML) and completes it by applying environment variables and final
// validation. This completes "Stage 2" of configuration loading.
func UpdateConfigWithEnvOverrides(cfg *AppConfig, logger *slog.Logger) (*AppConfig, error) {
	logger.Debug("Applying environment variable overrides...")

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		logger.Debug("Overriding config value", "key", "GCP_PROJECT_ID", "source", "env")
		cfg.ProjectID = projectID
	}
	if port := os.Getenv("API_PORT"); port != "" {
		logger.Debug("Overriding config value", "key", "API_PORT", "source", "env")
		cfg.APIPort = port
	}
	if port := os.Getenv("WEBSOCKET_PORT"); port != "" {
		logger.Debug("Overriding config value", "key", "WEBSOCKET_PORT", "source", "env")
		cfg.WebSocketPort = port
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		// Never log the value itself.
		logger.Debug("Overriding config value", "key", "JWT_SECRET", "source", "env")
		cfg.JWTSecret = secret
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		logger.Debug("Overriding config value", "key", "REDIS_ADDR", "source", "env")
		cfg.SubscriptionStore.Redis.Addr = redisAddr
	}
	if sweepSeconds := os.Getenv("SWEEP_INTERVAL_SECONDS"); sweepSeconds != "" {
		parsed, err := strconv.Atoi(sweepSeconds)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("SWEEP_INTERVAL_SECONDS must be a positive integer, got %q", sweepSeconds)
		}
		logger.Debug("Overriding config value", "key", "SWEEP_INTERVAL_SECONDS", "source", "env")
		cfg.SweepIntervalSeconds = parsed
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	if cfg.ProjectID == "" {
		logger.Error("Final config validation failed", "error", "GCP_PROJECT_ID is not set")
		return nil, fmt.Errorf("GCP_PROJECT_ID is not set in config or env var")
	}
	if cfg.JWTSecret == "" {
		logger.Error("Final config validation failed", "error", "JWT_SECRET is not set")
		return nil, fmt.Errorf("JWT_SECRET is not set in config or env var")
	}
	if cfg.SweepIntervalSeconds <= 0 {
		cfg.SweepIntervalSeconds = 30
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 5
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
