package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbazhin/studyhub/internal/core"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []core.Frame
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) sent() []core.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestRegistryBindReflectsLiveMembers(t *testing.T) {
	r := NewRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")

	changed, members := r.Bind("room-a", "u1", c1)
	require.True(t, changed)
	assert.Equal(t, []string{"u1"}, members)

	changed, members = r.Bind("room-a", "u2", c2)
	require.True(t, changed)
	assert.Equal(t, []string{"u1", "u2"}, members)

	assert.Equal(t, []string{"u1", "u2"}, r.MembersOf("room-a"))
	assert.Empty(t, r.MembersOf("room-b"))
}

func TestRegistryBindIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1")

	changed, _ := r.Bind("room-a", "u1", c)
	require.True(t, changed)

	changed, members := r.Bind("room-a", "u1", c)
	assert.False(t, changed, "re-binding the same triple must not change the set")
	assert.Equal(t, []string{"u1"}, members)
}

func TestRegistryMultiDevicePresence(t *testing.T) {
	r := NewRegistry()
	phone := newFakeConn("phone")
	laptop := newFakeConn("laptop")

	r.Bind("room-a", "u1", phone)
	changed, _ := r.Bind("room-a", "u1", laptop)
	assert.False(t, changed, "second device must not grow the live set")

	changed, members := r.Unbind("room-a", "u1", phone)
	assert.False(t, changed, "user still live through the laptop")
	assert.Equal(t, []string{"u1"}, members)

	changed, members = r.Unbind("room-a", "u1", laptop)
	assert.True(t, changed)
	assert.Empty(t, members)
}

func TestRegistryUnbindAllCoversEveryRoom(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1")
	other := newFakeConn("c2")

	r.Bind("room-a", "u1", c)
	r.Bind("room-b", "u1", c)
	r.Bind("room-a", "u2", other)

	affected := r.UnbindAll(c)

	require.Len(t, affected, 2)
	assert.Equal(t, []string{"u2"}, affected["room-a"])
	assert.Empty(t, affected["room-b"])

	assert.Equal(t, []string{"u2"}, r.MembersOf("room-a"))
	assert.Empty(t, r.MembersOf("room-b"))
}

func TestRegistryPrunesEmptyRooms(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1")

	r.Bind("room-a", "u1", c)
	require.Equal(t, 1, r.RoomCount())

	r.Unbind("room-a", "u1", c)
	assert.Equal(t, 0, r.RoomCount(), "empty room entry must be pruned")
}

func TestRegistryMembersOfIsSnapshot(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1")
	r.Bind("room-a", "u1", c)

	snapshot := r.MembersOf("room-a")
	r.Bind("room-a", "u2", newFakeConn("c2"))

	assert.Equal(t, []string{"u1"}, snapshot, "caller must see a point-in-time copy")
}

func TestRegistryConnsOfDeduplicates(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1")

	// One connection carrying two users of the room must appear once.
	r.Bind("room-a", "u1", c)
	r.Bind("room-a", "u2", c)

	assert.Len(t, r.ConnsOf("room-a"), 1)
}
