package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// redisClient defines the interface we need from go-redis.
type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// storedSubscription is the value we store as a JSON string in the user's
// Redis hash, keyed by endpoint.
type storedSubscription struct {
	Role         string                    `json:"role"`
	Subscription presence.PushSubscription `json:"subscription"`
}

// RedisSubscriptionStore implements the presence.SubscriptionStore interface
// using Redis. It keeps one hash per user, field-per-endpoint, so repeated
// registration of the same endpoint overwrites in place.
type RedisSubscriptionStore struct {
	client redisClient
	logger *slog.Logger
}

// NewRedisSubscriptionStore is the constructor for the Redis-backed store.
func NewRedisSubscriptionStore(client redisClient, logger *slog.Logger) (*RedisSubscriptionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisSubscriptionStore{
		client: client,
		logger: logger.With("component", "redis_subscription_store"),
	}, nil
}

// Save writes the subscription into the user's hash under its endpoint.
func (s *RedisSubscriptionStore) Save(ctx context.Context, userID string, role presence.Role, sub *presence.PushSubscription) error {
	log := s.logger.With("user_id", userID)

	payload, err := json.Marshal(storedSubscription{
		Role:         string(role),
		Subscription: *sub,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push subscription: %w", err)
	}

	key := userSubscriptionsKey(userID)
	if err := s.client.HSet(ctx, key, sub.Endpoint, payload).Err(); err != nil {
		log.Error("Failed to hset push subscription", "key", key, "err", err)
		return fmt.Errorf("failed to hset push subscription: %w", err)
	}

	log.Debug("Saved push subscription", "key", key, "endpoint", sub.Endpoint)
	return nil
}

// Fetch returns all subscriptions in the user's hash. Entries that fail to
// unmarshal are skipped rather than failing the whole fetch.
func (s *RedisSubscriptionStore) Fetch(ctx context.Context, userID string) ([]presence.PushSubscription, error) {
	key := userSubscriptionsKey(userID)

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hgetall push subscriptions: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	subs := make([]presence.PushSubscription, 0, len(fields))
	for endpoint, payload := range fields {
		var stored storedSubscription
		if err := json.Unmarshal([]byte(payload), &stored); err != nil {
			s.logger.Warn("Skipping malformed stored subscription", "key", key, "endpoint", endpoint, "err", err)
			continue
		}
		subs = append(subs, stored.Subscription)
	}
	return subs, nil
}

// Close releases the underlying Redis client.
func (s *RedisSubscriptionStore) Close() error {
	return s.client.Close()
}

func userSubscriptionsKey(userID string) string {
	return fmt.Sprintf("push-subs:%s", userID)
}
