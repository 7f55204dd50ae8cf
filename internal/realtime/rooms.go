package realtime

import (
	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// Predefined rooms. Everything else is created lazily on first join and
// destroyed on last leave.
const (
	RoomGlobal    = "global"
	RoomClients   = "clients"
	RoomPressings = "pressings"
	RoomAdmins    = "admins"
)

// PrivateRoom names the per-user room used to address one specific user
// regardless of how many devices they have connected.
func PrivateRoom(role presence.Role, userID string) string {
	return string(role) + "_" + userID
}

// defaultRooms lists the rooms a connection joins on registration: the
// global room, its role class room, and its private room. Admins also join
// both class rooms so they receive all traffic.
func defaultRooms(id auth.Identity) []string {
	rooms := []string{RoomGlobal}
	switch id.Role {
	case presence.RoleClient:
		rooms = append(rooms, RoomClients)
	case presence.RolePressing:
		rooms = append(rooms, RoomPressings)
	case presence.RoleAdmin:
		rooms = append(rooms, RoomAdmins, RoomClients, RoomPressings)
	}
	return append(rooms, PrivateRoom(id.Role, id.UserID))
}

// roomRegistry maps room IDs to member user IDs. Membership is by user, not
// by connection: it survives a user's connection churn and is purged only
// when the user's last connection closes. Not safe for concurrent use; the
// hub serializes access under its lock.
type roomRegistry struct {
	rooms map[string]map[string]struct{}
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{rooms: make(map[string]map[string]struct{})}
}

// join adds the user to the room, creating the room if absent. It reports
// whether the user was newly added; re-joining is idempotent.
func (r *roomRegistry) join(userID, roomID string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	if _, ok := members[userID]; ok {
		return false
	}
	members[userID] = struct{}{}
	return true
}

// leave removes the user from the room and deletes the room if it becomes
// empty. Leaving a room the user is not in is a no-op.
func (r *roomRegistry) leave(userID, roomID string) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// leaveAll removes the user from every room, deleting rooms left empty.
// Invoked when a user's last connection closes.
func (r *roomRegistry) leaveAll(userID string) {
	for roomID, members := range r.rooms {
		if _, ok := members[userID]; !ok {
			continue
		}
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// membersOf returns a snapshot of the room's member user IDs, or nil for a
// room that does not exist. A missing room is never an error.
func (r *roomRegistry) membersOf(roomID string) []string {
	members := r.rooms[roomID]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for userID := range members {
		out = append(out, userID)
	}
	return out
}

// allMembers returns the set of user IDs that appear in at least one room;
// used by the sweeper's defensive reconciliation.
func (r *roomRegistry) allMembers() map[string]struct{} {
	out := make(map[string]struct{})
	for _, members := range r.rooms {
		for userID := range members {
			out[userID] = struct{}{}
		}
	}
	return out
}

func (r *roomRegistry) roomCount() int {
	return len(r.rooms)
}

// memberCounts reports per-room membership for the stats endpoint.
func (r *roomRegistry) memberCounts() map[string]int {
	out := make(map[string]int, len(r.rooms))
	for roomID, members := range r.rooms {
		out[roomID] = len(members)
	}
	return out
}
