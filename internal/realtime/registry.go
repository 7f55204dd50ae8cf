package realtime

// connectionRegistry maps user IDs to their set of live connections. A user
// may hold several simultaneous connections (multi-device). It is not safe
// for concurrent use; the hub serializes access under its lock.
//
// Invariant: a user ID key exists only while its set is non-empty.
type connectionRegistry struct {
	users map[string]map[*Connection]struct{}
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{users: make(map[string]map[*Connection]struct{})}
}

// register adds a connection to its owner's set, creating the set if absent.
// Registering the same connection twice is a no-op.
func (r *connectionRegistry) register(c *Connection) {
	set, ok := r.users[c.identity.UserID]
	if !ok {
		set = make(map[*Connection]struct{})
		r.users[c.identity.UserID] = set
	}
	set[c] = struct{}{}
}

// deregister removes a connection and reports whether it was its owner's
// last one. The user key is removed eagerly when the set becomes empty.
func (r *connectionRegistry) deregister(c *Connection) (last bool) {
	set, ok := r.users[c.identity.UserID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.users, c.identity.UserID)
		return true
	}
	return false
}

// connectionsOf returns a snapshot of the user's live connections. Callers
// may iterate it after the hub lock is released.
func (r *connectionRegistry) connectionsOf(userID string) []*Connection {
	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (r *connectionRegistry) isOnline(userID string) bool {
	return len(r.users[userID]) > 0
}

// all returns a snapshot of every live connection; used by the sweeper.
func (r *connectionRegistry) all() []*Connection {
	var conns []*Connection
	for _, set := range r.users {
		for c := range set {
			conns = append(conns, c)
		}
	}
	return conns
}

func (r *connectionRegistry) userCount() int {
	return len(r.users)
}

func (r *connectionRegistry) connectionCount() int {
	n := 0
	for _, set := range r.users {
		n += len(set)
	}
	return n
}
