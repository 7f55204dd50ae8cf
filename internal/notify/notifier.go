// Package notify translates marketplace domain events into routed realtime
// messages and fire-and-forget push notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/internal/realtime"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// Push notification templates understood by the downstream sender.
const (
	TemplateNewOrder          = "new_order"
	TemplateOrderStatusUpdate = "order_status_update"
)

// Router is the subset of the realtime router the producers use.
type Router interface {
	SendToUser(userID string, env *realtime.Envelope) bool
	SendToRoom(roomID string, env *realtime.Envelope, excludeUserID string) int
}

// Notifier is the producers' public entry point. It is read-only with
// respect to the registries and stateless itself.
type Notifier struct {
	router Router
	push   presence.PushSender
	logger *slog.Logger
}

// NewNotifier wires the producers to the router and push collaborator.
func NewNotifier(router Router, push presence.PushSender, logger *slog.Logger) (*Notifier, error) {
	if router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}
	if push == nil {
		return nil, fmt.Errorf("push sender cannot be nil")
	}
	return &Notifier{
		router: router,
		push:   push,
		logger: logger.With("component", "Notifier"),
	}, nil
}

// orderSummary is the structured payload carried by order envelopes.
type orderSummary struct {
	OrderID        string `json:"orderId"`
	Reference      string `json:"reference,omitempty"`
	CustomerID     string `json:"customerId"`
	PressingID     string `json:"pressingId"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	AmountXof      int64  `json:"amountXof,omitempty"`
}

func summarize(order presence.Order, previousStatus string) orderSummary {
	return orderSummary{
		OrderID:        order.ID,
		Reference:      order.Reference,
		CustomerID:     order.CustomerID,
		PressingID:     order.PressingID,
		Status:         order.Status,
		PreviousStatus: previousStatus,
		AmountXof:      order.AmountXof,
	}
}

// NotifyNewOrder announces a freshly placed order to the pressing's private
// room and to the admins room. When no device of the pressing is live, the
// external push collaborator is invoked instead; its failure is logged and
// never rolls back the room notifications already delivered.
func (n *Notifier) NotifyNewOrder(ctx context.Context, order presence.Order) error {
	log := n.logger.With("order", order.ID, "pressing", order.PressingID)

	env := realtime.NewEnvelope(realtime.TypeNewOrder, summarize(order, ""))

	pressingRoom := realtime.PrivateRoom(presence.RolePressing, order.PressingID)
	reached := n.router.SendToRoom(pressingRoom, env, "")
	n.router.SendToRoom(realtime.RoomAdmins, env, "")

	log.Info("New order routed.", "pressing_reached", reached)

	if reached == 0 {
		n.sendPush(ctx, TemplateNewOrder, order.PressingID, map[string]string{
			"orderId":   order.ID,
			"reference": order.Reference,
		})
	}
	return nil
}

// NotifyOrderStatusUpdate announces a status change to the order's customer
// and pressing private rooms and to the admins room. The customer gets a
// push notification when offline.
func (n *Notifier) NotifyOrderStatusUpdate(ctx context.Context, order presence.Order, previousStatus string) error {
	log := n.logger.With("order", order.ID, "status", order.Status, "previous", previousStatus)

	env := realtime.NewEnvelope(realtime.TypeOrderStatusUpdate, summarize(order, previousStatus))

	customerRoom := realtime.PrivateRoom(presence.RoleClient, order.CustomerID)
	customerReached := n.router.SendToRoom(customerRoom, env, "")
	n.router.SendToRoom(realtime.PrivateRoom(presence.RolePressing, order.PressingID), env, "")
	n.router.SendToRoom(realtime.RoomAdmins, env, "")

	log.Info("Order status update routed.", "customer_reached", customerReached)

	if customerReached == 0 {
		n.sendPush(ctx, TemplateOrderStatusUpdate, order.CustomerID, map[string]string{
			"orderId":   order.ID,
			"reference": order.Reference,
			"status":    order.Status,
		})
	}
	return nil
}

// HandleInboundUpdate fans out an order_update received over a socket,
// typically a pressing device reporting progress. The sender's own devices
// are excluded from the relay.
func (n *Notifier) HandleInboundUpdate(ctx context.Context, from auth.Identity, update realtime.OrderUpdate) error {
	env := realtime.NewEnvelope(realtime.TypeOrderUpdate, orderSummary{
		OrderID:        update.OrderID,
		CustomerID:     update.CustomerID,
		PressingID:     update.PressingID,
		Status:         update.Status,
		PreviousStatus: update.PreviousStatus,
	})

	n.router.SendToRoom(realtime.PrivateRoom(presence.RoleClient, update.CustomerID), env, from.UserID)
	n.router.SendToRoom(realtime.PrivateRoom(presence.RolePressing, update.PressingID), env, from.UserID)
	n.router.SendToRoom(realtime.RoomAdmins, env, from.UserID)

	n.logger.Info("Inbound order update relayed.", "order", update.OrderID, "from", from.UserID)
	return nil
}

// sendPush invokes the external push collaborator. Rejections are logged and
// swallowed: the in-process notification is independent and already out.
func (n *Notifier) sendPush(ctx context.Context, template, userID string, data map[string]string) {
	if err := n.push.SendTemplated(ctx, template, userID, data); err != nil {
		n.logger.Error("Push collaborator rejected notification.", "template", template, "user", userID, "err", err)
	}
}
