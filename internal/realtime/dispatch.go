package realtime

import (
	"context"
	"encoding/json"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// dispatch handles one inbound message while the connection is active. A
// malformed payload or unrecognized type produces a non-fatal error reply;
// the connection is never closed for a bad message.
func (h *Hub) dispatch(ctx context.Context, c *Connection, payload []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.logger.Warn("Dropping malformed message.", "user", c.identity.UserID, "err", err)
		c.sendEnvelope(errorEnvelope("invalid message format"))
		return
	}

	switch msg.Type {
	case TypePing:
		c.sendEnvelope(NewEnvelope(TypePong, nil))

	case TypeJoinRoom:
		if msg.Room == "" {
			c.sendEnvelope(errorEnvelope("join_room requires a room"))
			return
		}
		h.join(c.identity.UserID, msg.Room)

	case TypeLeaveRoom:
		if msg.Room == "" {
			c.sendEnvelope(errorEnvelope("leave_room requires a room"))
			return
		}
		h.leave(c.identity.UserID, msg.Room)

	case TypeSubscribePush:
		h.handleSubscribePush(ctx, c, msg.Subscription)

	case TypeOrderUpdate:
		h.handleOrderUpdate(ctx, c, msg.Data)

	default:
		h.logger.Warn("Unrecognized message type.", "user", c.identity.UserID, "type", msg.Type)
		c.sendEnvelope(errorEnvelope("unknown message type"))
	}
}

// handleSubscribePush persists a device's web-push subscription and reports
// the outcome to the sender. Store failures stay local to this connection.
func (h *Hub) handleSubscribePush(ctx context.Context, c *Connection, raw json.RawMessage) {
	var sub presence.PushSubscription
	if err := json.Unmarshal(raw, &sub); err != nil || sub.Endpoint == "" {
		c.sendEnvelope(NewEnvelope(TypePushSubError, map[string]string{
			"reason": "invalid subscription payload",
		}))
		return
	}

	if err := h.subscriptions.Save(ctx, c.identity.UserID, c.identity.Role, &sub); err != nil {
		h.logger.Error("Failed to save push subscription.", "user", c.identity.UserID, "err", err)
		c.sendEnvelope(NewEnvelope(TypePushSubError, map[string]string{
			"reason": "subscription could not be saved",
		}))
		return
	}

	c.sendEnvelope(NewEnvelope(TypePushSubSuccess, map[string]string{
		"endpoint": sub.Endpoint,
	}))
}

// handleOrderUpdate forwards an inbound status change to the notification
// producers using the order identifiers embedded in the message.
func (h *Hub) handleOrderUpdate(ctx context.Context, c *Connection, raw json.RawMessage) {
	if h.orderUpdates == nil {
		c.sendEnvelope(errorEnvelope("order updates are not enabled"))
		return
	}

	var update OrderUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		c.sendEnvelope(errorEnvelope("invalid order_update payload"))
		return
	}
	if update.OrderID == "" || update.CustomerID == "" || update.PressingID == "" {
		c.sendEnvelope(errorEnvelope("order_update requires orderId, customerId and pressingId"))
		return
	}

	if err := h.orderUpdates(ctx, c.identity, update); err != nil {
		h.logger.Error("Failed to fan out order update.", "user", c.identity.UserID, "order", update.OrderID, "err", err)
		c.sendEnvelope(errorEnvelope("order update could not be delivered"))
	}
}
