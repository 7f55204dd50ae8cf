// Package pipeline adapts the domain-event stream to the notification
// producers: a transformer stage validates raw bus payloads and a processor
// stage hands the typed events to the notifier.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// OrderEventTransformer is a dataflow Transformer stage that safely
// unmarshals a raw message payload from the event bus into a validated
// presence.OrderEvent. On failure the message is marked for skipping so the
// StreamingService can Nack it.
func OrderEventTransformer(_ context.Context, msg *messagepipeline.Message) (*presence.OrderEvent, bool, error) {
	var event presence.OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("Failed to unmarshal order event", "err", err, "msg_id", msg.ID)
		return nil, true, fmt.Errorf("failed to unmarshal order event from message %s: %w", msg.ID, err)
	}

	if err := event.Validate(); err != nil {
		slog.Error("Rejected invalid order event", "err", err, "msg_id", msg.ID)
		return nil, true, fmt.Errorf("invalid order event in message %s: %w", msg.ID, err)
	}

	return &event, false, nil
}
