package presence

import (
	"context"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// EventProducer publishes a domain event into the notification pipeline.
type EventProducer interface {
	Publish(ctx context.Context, event *OrderEvent) error
}

// PushSender hands a templated push notification to the external push
// collaborator. Failures are expected to be logged by callers, never
// propagated into the in-process fan-out.
type PushSender interface {
	SendTemplated(ctx context.Context, template string, userID string, data map[string]string) error
}

// SubscriptionStore persists the web-push subscriptions registered by
// connected devices via subscribe_push messages.
type SubscriptionStore interface {
	Save(ctx context.Context, userID string, role Role, sub *PushSubscription) error
	Fetch(ctx context.Context, userID string) ([]PushSubscription, error)
	Close() error
}

// ServiceDependencies holds all the external services the realtime service
// needs to operate. This struct is used for dependency injection.
type ServiceDependencies struct {
	// --- Producers ---
	EventProducer EventProducer

	// --- Consumers ---
	EventConsumer messagepipeline.MessageConsumer

	// --- Storage ---
	SubscriptionStore SubscriptionStore

	// --- Notifiers ---
	PushSender PushSender
}
