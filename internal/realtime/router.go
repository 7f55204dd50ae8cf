package realtime

import (
	"log/slog"
)

// Router resolves rooms and users to live connections and pushes payloads to
// them. It is read-only with respect to the registries: a dead connection
// encountered during a send is skipped, never purged inline; reaping is the
// sweeper's job.
type Router struct {
	hub    *Hub
	logger *slog.Logger
}

// NewRouter creates a router over the hub's registries.
func NewRouter(hub *Hub, logger *slog.Logger) *Router {
	return &Router{
		hub:    hub,
		logger: logger.With("component", "Router"),
	}
}

// SendToConnection delivers to a single connection if its transport is still
// open; otherwise the payload is silently dropped. Disconnection is expected
// here and handled by the lifecycle, not the router.
func (r *Router) SendToConnection(c *Connection, env *Envelope) {
	payload, err := env.encode()
	if err != nil {
		r.logger.Error("Failed to encode envelope.", "type", env.Type, "err", err)
		return
	}
	c.trySend(payload)
}

// SendToUser delivers to every live connection of the user and reports
// whether at least one connection received it. Producers use the result to
// decide whether an out-of-band push is needed for an offline user.
func (r *Router) SendToUser(userID string, env *Envelope) bool {
	payload, err := env.encode()
	if err != nil {
		r.logger.Error("Failed to encode envelope.", "type", env.Type, "err", err)
		return false
	}

	r.hub.mu.RLock()
	conns := r.hub.conns.connectionsOf(userID)
	r.hub.mu.RUnlock()

	delivered := false
	for _, c := range conns {
		if c.trySend(payload) {
			delivered = true
		}
	}
	return delivered
}

// SendToRoom delivers to every member of the room except the optional
// excluded sender, and returns the number of distinct users reached. A user
// with several connections counts once no matter how many of its devices
// received the payload. No ordering is guaranteed across recipients.
func (r *Router) SendToRoom(roomID string, env *Envelope, excludeUserID string) int {
	payload, err := env.encode()
	if err != nil {
		r.logger.Error("Failed to encode envelope.", "type", env.Type, "err", err)
		return 0
	}

	r.hub.mu.RLock()
	members := r.hub.rooms.membersOf(roomID)
	targets := make(map[string][]*Connection, len(members))
	for _, userID := range members {
		if userID == excludeUserID {
			continue
		}
		if conns := r.hub.conns.connectionsOf(userID); len(conns) > 0 {
			targets[userID] = conns
		}
	}
	r.hub.mu.RUnlock()

	reached := 0
	for _, conns := range targets {
		delivered := false
		for _, c := range conns {
			if c.trySend(payload) {
				delivered = true
			}
		}
		if delivered {
			reached++
		}
	}
	return reached
}

// Broadcast delivers to every member of the global room.
func (r *Router) Broadcast(env *Envelope, excludeUserID string) int {
	return r.SendToRoom(RoomGlobal, env, excludeUserID)
}
