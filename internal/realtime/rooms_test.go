package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saiyanhack13/geopressci-realtime/internal/auth"
	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

func TestDefaultRooms(t *testing.T) {
	t.Run("client", func(t *testing.T) {
		rooms := defaultRooms(auth.Identity{UserID: "u1", Role: presence.RoleClient})
		assert.ElementsMatch(t, []string{RoomGlobal, RoomClients, "client_u1"}, rooms)
	})

	t.Run("pressing", func(t *testing.T) {
		rooms := defaultRooms(auth.Identity{UserID: "p1", Role: presence.RolePressing})
		assert.ElementsMatch(t, []string{RoomGlobal, RoomPressings, "pressing_p1"}, rooms)
	})

	t.Run("admin joins both class rooms", func(t *testing.T) {
		rooms := defaultRooms(auth.Identity{UserID: "a1", Role: presence.RoleAdmin})
		assert.ElementsMatch(t,
			[]string{RoomGlobal, RoomAdmins, RoomClients, RoomPressings, "admin_a1"},
			rooms)
	})
}

func TestPrivateRoom(t *testing.T) {
	assert.Equal(t, "pressing_p-9", PrivateRoom(presence.RolePressing, "p-9"))
	assert.Equal(t, "client_c-1", PrivateRoom(presence.RoleClient, "c-1"))
}

func TestRoomRegistry_JoinIsIdempotent(t *testing.T) {
	r := newRoomRegistry()

	assert.True(t, r.join("u1", "orders"), "first join reports newly added")
	assert.False(t, r.join("u1", "orders"), "re-join is a no-op")
	assert.Equal(t, 1, r.roomCount())
	assert.ElementsMatch(t, []string{"u1"}, r.membersOf("orders"))
}

func TestRoomRegistry_LeaveDestroysEmptyRoom(t *testing.T) {
	r := newRoomRegistry()
	r.join("u1", "orders")
	r.join("u2", "orders")

	r.leave("u1", "orders")
	assert.Equal(t, 1, r.roomCount())
	assert.ElementsMatch(t, []string{"u2"}, r.membersOf("orders"))

	r.leave("u2", "orders")
	assert.Equal(t, 0, r.roomCount(), "empty room must be destroyed")
	assert.Nil(t, r.membersOf("orders"))
}

func TestRoomRegistry_LeaveUnknownIsNoop(t *testing.T) {
	r := newRoomRegistry()
	r.leave("u1", "nope")

	r.join("u1", "orders")
	r.leave("u2", "orders")
	assert.ElementsMatch(t, []string{"u1"}, r.membersOf("orders"))
}

func TestRoomRegistry_LeaveAll(t *testing.T) {
	r := newRoomRegistry()
	r.join("u1", RoomGlobal)
	r.join("u1", RoomClients)
	r.join("u1", "client_u1")
	r.join("u2", RoomGlobal)

	r.leaveAll("u1")

	assert.Nil(t, r.membersOf(RoomClients))
	assert.Nil(t, r.membersOf("client_u1"))
	assert.ElementsMatch(t, []string{"u2"}, r.membersOf(RoomGlobal))
	assert.Equal(t, 1, r.roomCount())
}

func TestRoomRegistry_Counts(t *testing.T) {
	r := newRoomRegistry()
	r.join("u1", RoomGlobal)
	r.join("u2", RoomGlobal)
	r.join("u1", RoomClients)

	assert.Equal(t, map[string]int{RoomGlobal: 2, RoomClients: 1}, r.memberCounts())

	members := r.allMembers()
	assert.Len(t, members, 2)
	assert.Contains(t, members, "u1")
	assert.Contains(t, members, "u2")
}
