package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Connection is one live websocket channel to an authenticated user. It is
// created only after the handshake is authenticated and reaches a terminal
// closed state on transport close, transport error, or forced termination
// by the sweeper; a reconnecting client always gets a fresh Connection.
type Connection struct {
	id          string
	identity    auth.Identity
	ws          *websocket.Conn
	connectedAt time.Time

	// alive is the two-state liveness flag: cleared by each sweep cycle,
	// set again by the next pong. Guarded by the hub lock.
	alive bool

	send      chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

func newConnection(id auth.Identity, ws *websocket.Conn) *Connection {
	return &Connection{
		id:          uuid.NewString(),
		identity:    id,
		ws:          ws,
		connectedAt: time.Now().UTC(),
		alive:       true,
		send:        make(chan []byte, sendBufferSize),
		quit:        make(chan struct{}),
	}
}

// UserID returns the owning user's ID.
func (c *Connection) UserID() string { return c.identity.UserID }

// trySend queues a payload for delivery without blocking. It reports false
// when the connection is closing or its buffer is full; a backed-up
// connection is treated as unreachable and left for the sweeper to reap.
func (c *Connection) trySend(payload []byte) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.quit:
		return false
	default:
		return false
	}
}

// sendEnvelope is the convenience path used by the dispatch loop for direct
// replies to this connection.
func (c *Connection) sendEnvelope(env *Envelope) bool {
	payload, err := env.encode()
	if err != nil {
		return false
	}
	return c.trySend(payload)
}

// ping writes a transport-level ping probe. WriteControl is safe to call
// concurrently with the write pump.
func (c *Connection) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close tears the connection down exactly once: the write pump is told to
// send a close frame, and closing the underlying socket unblocks the read
// loop, which performs registry cleanup.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
}

// writePump serializes all data writes to the socket. Messages queued on the
// send channel are delivered in order; the pump exits when the connection is
// closed or a write fails.
func (c *Connection) writePump() {
	defer func() {
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-c.quit:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
