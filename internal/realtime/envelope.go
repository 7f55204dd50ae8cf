package realtime

import (
	"encoding/json"
	"time"
)

// Inbound message types accepted from connected clients.
const (
	TypePing          = "ping"
	TypeJoinRoom      = "join_room"
	TypeLeaveRoom     = "leave_room"
	TypeSubscribePush = "subscribe_push"
	TypeOrderUpdate   = "order_update"
)

// Outbound message types emitted to connected clients.
const (
	TypeConnection        = "connection"
	TypePong              = "pong"
	TypePushSubSuccess    = "push_subscription_success"
	TypePushSubError      = "push_subscription_error"
	TypeNewOrder          = "new_order"
	TypeOrderStatusUpdate = "order_status_update"
	TypeError             = "error"
)

// inboundMessage is the discriminated envelope read off the wire. Only the
// fields relevant to the declared type are populated.
type inboundMessage struct {
	Type         string          `json:"type"`
	Room         string          `json:"room,omitempty"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Envelope is the outbound message envelope. Timestamps are UTC and
// marshal to RFC 3339.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope builds an outbound envelope carrying a data payload.
func NewEnvelope(msgType string, data any) *Envelope {
	return &Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// errorEnvelope builds the in-band error reply used for malformed or
// unrecognized messages. The connection stays open; this is informational.
func errorEnvelope(msg string) *Envelope {
	return &Envelope{
		Type:      TypeError,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Envelope) encode() ([]byte, error) {
	return json.Marshal(e)
}

// OrderUpdate is the payload of an inbound order_update message, sent by a
// pressing device reporting a status change directly over its socket.
type OrderUpdate struct {
	OrderID        string `json:"orderId"`
	CustomerID     string `json:"customerId"`
	PressingID     string `json:"pressingId"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus,omitempty"`
}
