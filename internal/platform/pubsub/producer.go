// Package pubsub contains concrete adapters for interacting with Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// pubsubTopicClient defines the interface for the underlying pubsub topic.
// This allows us to use a mock for testing.
type pubsubTopicClient interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Producer implements the presence.EventProducer interface. It acts as an
// adapter, serializing an OrderEvent and publishing it to a Google Cloud
// Pub/Sub topic.
type Producer struct {
	topic pubsubTopicClient
}

// NewProducer is the constructor for the Pub/Sub producer.
// It takes a topic client that it will publish messages to.
func NewProducer(topic pubsubTopicClient) *Producer {
	return &Producer{
		topic: topic,
	}
}

// Publish serializes the order event and sends it to the message bus.
// It conforms to the presence.EventProducer interface.
func (p *Producer) Publish(ctx context.Context, event *presence.OrderEvent) error {
	payloadBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event for publishing: %w", err)
	}

	message := &pubsub.Message{
		Data: payloadBytes,
		Attributes: map[string]string{
			"event_type": string(event.Type),
		},
	}

	// Publish the message and wait for the result.
	result := p.topic.Publish(ctx, message)
	_, err = result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	return nil
}
