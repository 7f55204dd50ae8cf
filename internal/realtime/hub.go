// Package realtime implements the core of the service: the connection and
// room registries, the connection lifecycle, message dispatch, fan-out
// routing, and liveness sweeping for websocket clients.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// OrderUpdateFunc receives order_update messages arriving over a socket and
// fans them out. It is wired after construction to avoid a dependency cycle
// between the hub and the notification producers.
type OrderUpdateFunc func(ctx context.Context, from auth.Identity, update OrderUpdate) error

// Stats is the read-only snapshot served to external ops tooling.
type Stats struct {
	Connections int            `json:"connections"`
	OnlineUsers int            `json:"onlineUsers"`
	Rooms       int            `json:"rooms"`
	RoomMembers map[string]int `json:"roomMembers"`
}

// Hub owns the two registries and drives every connection's lifecycle. It
// runs its own dedicated HTTP server for websocket upgrades.
//
// A single coarse lock guards both registries, keeping them mutually
// consistent: no reader can observe a user registered but still absent from
// its default rooms, or vice versa.
type Hub struct {
	server   *http.Server
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns *connectionRegistry
	rooms *roomRegistry

	subscriptions presence.SubscriptionStore
	orderUpdates  OrderUpdateFunc

	portMu    sync.Mutex
	boundAddr string

	logger     *slog.Logger
	instanceID string
}

// NewHub creates and wires up the websocket hub listening on addr. The auth
// middleware must place an auth.Identity in the request context; upgrades
// without one are refused.
func NewHub(
	addr string,
	authMiddleware func(http.Handler) http.Handler,
	subscriptions presence.SubscriptionStore,
	logger *slog.Logger,
) (*Hub, error) {
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription store cannot be nil")
	}

	instanceID := uuid.NewString()
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to the marketplace web origins once they are
				// carried in config alongside the CORS list.
				return true
			},
		},
		conns:         newConnectionRegistry(),
		rooms:         newRoomRegistry(),
		subscriptions: subscriptions,
		logger:        logger.With("component", "Hub", "instance", instanceID),
		instanceID:    instanceID,
	}

	mux := http.NewServeMux()
	mux.Handle("/connect", authMiddleware(http.HandlerFunc(h.connectHandler)))
	h.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return h, nil
}

// SetOrderUpdateFunc installs the sink for inbound order_update messages.
// Must be called before Start.
func (h *Hub) SetOrderUpdateFunc(fn OrderUpdateFunc) {
	h.orderUpdates = fn
}

// Start runs the HTTP server accepting websocket connections. It blocks
// until the server stops. Port 0 binds an ephemeral port, readable via
// GetWebsocketPort once Start is running.
func (h *Hub) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("websocket server failed to listen on %s: %w", h.server.Addr, err)
	}

	boundAddr := ln.Addr().String()
	h.portMu.Lock()
	h.boundAddr = boundAddr
	h.portMu.Unlock()

	h.logger.Info("Websocket server starting...", "addr", boundAddr)
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// GetWebsocketPort returns the bound listener port as ":port". It returns
// the empty string until Start has bound the listener.
func (h *Hub) GetWebsocketPort() string {
	h.portMu.Lock()
	defer h.portMu.Unlock()
	if h.boundAddr == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(h.boundAddr)
	if err != nil {
		return ""
	}
	return ":" + port
}

// Shutdown stops accepting upgrades, then closes every live connection with
// a clean close frame. Registry state is torn down by each connection's own
// lifecycle cleanup as its read loop exits.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("Shutting down websocket service...")
	var finalErr error

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("Websocket server shutdown failed.", "err", err)
		finalErr = err
	}

	h.mu.RLock()
	conns := h.conns.all()
	h.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}

	h.logger.Info("Websocket service shut down.", "connections_closed", len(conns))
	return finalErr
}

// connectHandler upgrades an authenticated request and runs the connection's
// read loop until it closes.
func (h *Hub) connectHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection.", "err", err)
		return
	}

	c := newConnection(identity, ws)
	defer func() {
		c.close()
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		h.markAlive(c)
		return nil
	})

	rooms := h.register(c)
	defer h.deregister(c)

	go c.writePump()

	log := h.logger.With("user", identity.UserID, "role", identity.Role, "conn", c.id)
	log.Info("User connected.")

	c.sendEnvelope(NewEnvelope(TypeConnection, map[string]any{
		"userId": identity.UserID,
		"role":   identity.Role,
		"rooms":  rooms,
	}))

	// Read loop: one inbound message is processed to completion before the
	// next is read, so dispatch for a single connection is strictly
	// sequential.
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Connection read failed.", "err", err)
			}
			break
		}
		h.dispatch(r.Context(), c, payload)
	}

	log.Info("User disconnected.")
}

// register adds the connection to the registry and joins its default rooms,
// returning the rooms joined.
func (h *Hub) register(c *Connection) []string {
	rooms := defaultRooms(c.identity)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns.register(c)
	for _, roomID := range rooms {
		h.rooms.join(c.identity.UserID, roomID)
	}
	return rooms
}

// deregister removes the connection; if it was the user's last one, all of
// the user's room memberships are purged.
func (h *Hub) deregister(c *Connection) {
	h.mu.Lock()
	last := h.conns.deregister(c)
	if last {
		h.rooms.leaveAll(c.identity.UserID)
	}
	h.mu.Unlock()

	if last {
		h.logger.Info("Last connection closed, room membership purged.", "user", c.identity.UserID)
	}
}

// Join adds the user to a room. Exposed for the dispatch path; a connection
// may only ever alter its own user's membership.
func (h *Hub) join(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms.join(userID, roomID)
}

func (h *Hub) leave(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms.leave(userID, roomID)
}

// MembersOf returns the current member user IDs of a room; empty for a room
// that does not exist.
func (h *Hub) MembersOf(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.membersOf(roomID)
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns.isOnline(userID)
}

func (h *Hub) markAlive(c *Connection) {
	h.mu.Lock()
	c.alive = true
	h.mu.Unlock()
}

// Stats returns a consistent snapshot of both registries.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		Connections: h.conns.connectionCount(),
		OnlineUsers: h.conns.userCount(),
		Rooms:       h.rooms.roomCount(),
		RoomMembers: h.rooms.memberCounts(),
	}
}
