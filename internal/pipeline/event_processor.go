package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/saiyanhack13/geopressci-realtime/internal/notify"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// NewEventProcessor builds the pipeline stage that dispatches validated
// domain events to the notification producers.
func NewEventProcessor(notifier *notify.Notifier, logger *slog.Logger) messagepipeline.StreamProcessor[presence.OrderEvent] {
	return func(ctx context.Context, msg messagepipeline.Message, event *presence.OrderEvent) error {
		procLogger := logger.With(
			"msg_id", msg.ID,
			"event", event.Type,
			"order", event.Order.ID,
		)

		switch event.Type {
		case presence.EventNewOrder:
			procLogger.Info("Processing new order event")
			return notifier.NotifyNewOrder(ctx, event.Order)

		case presence.EventOrderStatusUpdate:
			procLogger.Info("Processing order status update event")
			return notifier.NotifyOrderStatusUpdate(ctx, event.Order, event.PreviousStatus)

		default:
			// The transformer validates event types; reaching this is a bug.
			procLogger.Error("Unhandled event type reached processor")
			return fmt.Errorf("unhandled event type %q in message %s", event.Type, msg.ID)
		}
	}
}
