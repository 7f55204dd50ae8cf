package realtime

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically probes every open connection and reaps the ones that
// did not answer the previous cycle's probe. It never blocks message flow:
// each cycle takes the hub lock only long enough to snapshot and flip
// liveness flags, and performs all socket I/O outside it.
type Sweeper struct {
	hub      *Hub
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper with the configured probe interval. A
// connection that misses one full cycle is terminated on the next.
func NewSweeper(hub *Hub, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		hub:      hub,
		interval: interval,
		logger:   logger.With("component", "Sweeper"),
	}
}

// Start runs sweep cycles until the context is cancelled. It blocks, so run
// it on its own goroutine.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Liveness sweeper starting.", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			s.logger.Info("Liveness sweeper stopping.")
			return nil
		}
	}
}

// sweep executes one cycle: terminate connections whose liveness flag is
// still cleared, clear the flag on the rest and probe them, then reconcile
// the room registry against users with no connections left.
func (s *Sweeper) sweep() {
	var stale, live []*Connection

	s.hub.mu.Lock()
	for _, c := range s.hub.conns.all() {
		if !c.alive {
			stale = append(stale, c)
			continue
		}
		c.alive = false
		live = append(live, c)
	}
	s.hub.mu.Unlock()

	for _, c := range stale {
		s.logger.Warn("Terminating unresponsive connection.", "user", c.identity.UserID, "conn", c.id)
		c.close()
		// Closing the socket unblocks the read loop, which runs the normal
		// Active -> Closed cleanup path.
		_ = c.ws.Close()
	}

	for _, c := range live {
		if err := c.ping(); err != nil {
			// The probe could not be written; the flag stays cleared and the
			// connection is reaped on the next cycle.
			s.logger.Debug("Liveness probe failed.", "user", c.identity.UserID, "conn", c.id, "err", err)
		}
	}

	s.reconcile()

	if len(stale) > 0 {
		s.logger.Info("Sweep cycle complete.", "terminated", len(stale), "probed", len(live))
	}
}

// reconcile purges room membership for any user with zero connections. The
// lifecycle already does this on last-connection close; this is the
// defensive double-cleanup for abnormal terminations that skipped it.
func (s *Sweeper) reconcile() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	for userID := range s.hub.rooms.allMembers() {
		if !s.hub.conns.isOnline(userID) {
			s.logger.Warn("Reconciling orphaned room membership.", "user", userID)
			s.hub.rooms.leaveAll(userID)
		}
	}
}
