// Package config implements the service's two-stage configuration: an
// embedded YAML file provides the base values (Stage 1), and environment
// variables override and validate them (Stage 2).
package config

import (
	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// --- YAML-Specific Structs ---

type YamlRedisConfig struct {
	Addr string `yaml:"addr"`
}

type YamlFirestoreConfig struct {
	CollectionName string `yaml:"collection_name"`
}

// YamlSubscriptionStoreConfig selects the push-subscription backend.
type YamlSubscriptionStoreConfig struct {
	Type      string              `yaml:"type"` // "firestore" or "redis"
	Redis     YamlRedisConfig     `yaml:"redis"`
	Firestore YamlFirestoreConfig `yaml:"firestore"`
}

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

// YamlConfig defines the structure for unmarshaling the embedded config.yaml file.
type YamlConfig struct {
	ProjectID                string                      `yaml:"project_id"`
	RunMode                  string                      `yaml:"run_mode"`
	APIPort                  string                      `yaml:"api_port"`
	WebSocketPort            string                      `yaml:"websocket_port"`
	JWTSecret                string                      `yaml:"jwt_secret"`
	Cors                     YamlCorsConfig              `yaml:"cors"`
	SubscriptionStore        YamlSubscriptionStoreConfig `yaml:"subscription_store"`
	IngressTopicID           string                      `yaml:"ingress_topic_id"`
	IngressSubscriptionID    string                      `yaml:"ingress_subscription_id"`
	IngressTopicDLQID        string                      `yaml:"ingress_topic_dlq_id"`
	PushNotificationsTopicID string                      `yaml:"push_notifications_topic_id"`
	NumPipelineWorkers       int                         `yaml:"num_pipeline_workers"`
	SweepIntervalSeconds     int                         `yaml:"sweep_interval_seconds"`
}

// NewConfigFromYaml converts the raw unmarshaled data (YamlConfig) into a
// clean, base AppConfig struct. Stage 1 complete: the AppConfig struct now
// exists, but without environment overrides.
func NewConfigFromYaml(yamlCfg *YamlConfig, logger *slog.Logger) (*AppConfig, error) {
	logger.Debug("Mapping YAML config to base config struct")

	appCfg := &AppConfig{
		ProjectID:     yamlCfg.ProjectID,
		RunMode:       yamlCfg.RunMode,
		APIPort:       yamlCfg.APIPort,
		WebSocketPort: yamlCfg.WebSocketPort,
		JWTSecret:     yamlCfg.JWTSecret,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: yamlCfg.Cors.AllowedOrigins,
			Role:           middleware.CorsRole(yamlCfg.Cors.Role),
		},
		SubscriptionStore:        yamlCfg.SubscriptionStore,
		IngressTopicID:           yamlCfg.IngressTopicID,
		IngressSubscriptionID:    yamlCfg.IngressSubscriptionID,
		IngressTopicDLQID:        yamlCfg.IngressTopicDLQID,
		PushNotificationsTopicID: yamlCfg.PushNotificationsTopicID,
		NumPipelineWorkers:       yamlCfg.NumPipelineWorkers,
		SweepIntervalSeconds:     yamlCfg.SweepIntervalSeconds,
	}

	logger.Debug("YAML config mapping complete",
		"project_id", appCfg.ProjectID,
		"api_port", appCfg.APIPort,
		"websocket_port", appCfg.WebSocketPort,
		"subscription_store_type", appCfg.SubscriptionStore.Type,
	)

	return appCfg, nil
}
