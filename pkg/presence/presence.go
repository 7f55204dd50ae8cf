// Package presence contains the public domain models, collaborator
// interfaces, and dependency container for the realtime service. It defines
// the contract for interacting with the service.
package presence

import (
	"fmt"
	"time"
)

// Role classifies an authenticated marketplace user.
type Role string

const (
	RoleClient   Role = "client"
	RolePressing Role = "pressing"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a raw role string, e.g. one taken from a JWT claim.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RolePressing, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Order is the subset of a marketplace order the realtime layer needs to
// address and describe notifications. The order services own the full record.
type Order struct {
	ID         string    `json:"id"`
	Reference  string    `json:"reference,omitempty"`
	CustomerID string    `json:"customerId"`
	PressingID string    `json:"pressingId"`
	Status     string    `json:"status"`
	AmountXof  int64     `json:"amountXof,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// EventType discriminates the domain events the pipeline understands.
type EventType string

const (
	EventNewOrder          EventType = "new_order"
	EventOrderStatusUpdate EventType = "order_status_update"
)

// OrderEvent is the domain event published by the order services and consumed
// by the notification pipeline.
type OrderEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Order          Order     `json:"order"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	OccurredAt     time.Time `json:"occurredAt,omitempty"`
}

// Validate checks the fields the notification producers depend on.
func (e *OrderEvent) Validate() error {
	switch e.Type {
	case EventNewOrder, EventOrderStatusUpdate:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Order.ID == "" {
		return fmt.Errorf("event %s has no order id", e.Type)
	}
	if e.Order.CustomerID == "" || e.Order.PressingID == "" {
		return fmt.Errorf("event %s for order %s is missing participant ids", e.Type, e.Order.ID)
	}
	return nil
}

// PushSubscription is an opaque web-push subscription exactly as supplied by
// a client device. The realtime service stores and forwards it; only the
// downstream push sender interprets it.
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys,omitempty"`
}
