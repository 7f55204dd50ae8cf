// Package push publishes templated push-notification commands for users who
// are not reachable over a live websocket. Delivery itself is owned by the
// downstream notification service; this adapter only enqueues commands.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// EventProducer defines the interface for publishing a message.
type EventProducer interface {
	Publish(ctx context.Context, data messagepipeline.MessageData) (string, error)
}

// pushCommand is the wire format consumed by the notification service.
type pushCommand struct {
	Template      string                      `json:"template"`
	UserID        string                      `json:"userId"`
	Data          map[string]string           `json:"data,omitempty"`
	Subscriptions []presence.PushSubscription `json:"subscriptions"`
}

// Sender implements the presence.PushSender interface on top of a Pub/Sub
// producer and the push-subscription store.
type Sender struct {
	producer EventProducer
	store    presence.SubscriptionStore
	logger   *slog.Logger
}

// NewSender is the constructor for the push sender.
func NewSender(producer EventProducer, store presence.SubscriptionStore, logger *slog.Logger) (*Sender, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("subscription store cannot be nil")
	}
	return &Sender{
		producer: producer,
		store:    store,
		logger:   logger.With("component", "PushSender"),
	}, nil
}

// SendTemplated looks up the user's registered browser subscriptions and
// publishes one command covering all of them. A user with no subscriptions
// is not an error; there is simply nothing to deliver to.
func (s *Sender) SendTemplated(ctx context.Context, template string, userID string, data map[string]string) error {
	subs, err := s.store.Fetch(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to fetch push subscriptions for %s: %w", userID, err)
	}
	if len(subs) == 0 {
		s.logger.Debug("No push subscriptions registered, skipping", "user_id", userID, "template", template)
		return nil
	}

	command := pushCommand{
		Template:      template,
		UserID:        userID,
		Data:          data,
		Subscriptions: subs,
	}

	payloadBytes, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("failed to marshal push command: %w", err)
	}

	messageData := messagepipeline.MessageData{
		ID:      uuid.NewString(),
		Payload: payloadBytes,
	}

	s.logger.Debug("Publishing push command",
		"user_id", userID,
		"template", template,
		"subscriptions", len(subs),
		"msg_id", messageData.ID,
	)

	_, err = s.producer.Publish(ctx, messageData)
	if err != nil {
		return fmt.Errorf("failed to publish push command: %w", err)
	}
	return nil
}
