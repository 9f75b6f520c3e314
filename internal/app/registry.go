package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/core"
)

type binding struct {
	room string
	user string
}

// Registry tracks which users are live in which rooms, derived purely from
// connection events. It is a cache of presence, not the durable participant
// list; the two may diverge while a client is reloading or offline.
//
// A user may be live through several connections at once (multi-device);
// the user leaves a room's live set only when their last connection in that
// room is unbound. Rooms with no members are pruned to bound memory under
// churn.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]map[core.Conn]struct{}
	conns map[core.Conn][]binding
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]map[core.Conn]struct{}),
		conns: make(map[core.Conn][]binding),
	}
}

// Bind adds user to room's live set through conn. Re-binding the same triple
// is a no-op for the set but re-establishes the connection association.
// changed reports whether the live set actually grew; members is the
// post-bind snapshot.
func (r *Registry) Bind(room, user string, conn core.Conn) (changed bool, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.rooms[room]
	if !ok {
		users = make(map[string]map[core.Conn]struct{})
		r.rooms[room] = users
	}
	conns, ok := users[user]
	if !ok {
		conns = make(map[core.Conn]struct{})
		users[user] = conns
		changed = true
	}
	conns[conn] = struct{}{}

	if !r.hasBinding(conn, room, user) {
		r.conns[conn] = append(r.conns[conn], binding{room: room, user: user})
	}

	log.Info().Str("module", "app.registry").Str("room", room).Str("user", user).Str("conn", conn.ID()).Bool("changed", changed).Msg("bound")
	return changed, r.membersLocked(room)
}

// Unbind removes the (room, user, conn) binding. The user stays live in the
// room while another of their connections remains bound to it.
func (r *Registry) Unbind(room, user string, conn core.Conn) (changed bool, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed = r.unbindLocked(room, user, conn)
	r.dropBinding(conn, room, user)

	log.Info().Str("module", "app.registry").Str("room", room).Str("user", user).Str("conn", conn.ID()).Bool("changed", changed).Msg("unbound")
	return changed, r.membersLocked(room)
}

// UnbindAll removes every binding owned by conn. It is called exactly once,
// on connection close. The result maps each room whose live set changed to
// its post-removal membership.
func (r *Registry) UnbindAll(conn core.Conn) map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := make(map[string][]string)
	for _, b := range r.conns[conn] {
		if r.unbindLocked(b.room, b.user, conn) {
			affected[b.room] = r.membersLocked(b.room)
		}
	}
	delete(r.conns, conn)

	log.Info().Str("module", "app.registry").Str("conn", conn.ID()).Int("rooms", len(affected)).Msg("unbound all")
	return affected
}

// MembersOf returns a point-in-time copy of the room's live user set,
// sorted for deterministic fan-out.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(room)
}

// ConnsOf returns every connection currently bound to the room.
func (r *Registry) ConnsOf(room string) []core.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[core.Conn]struct{})
	var out []core.Conn
	for _, conns := range r.rooms[room] {
		for c := range conns {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// RoomCount reports how many rooms currently have live members.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) unbindLocked(room, user string, conn core.Conn) bool {
	users, ok := r.rooms[room]
	if !ok {
		return false
	}
	conns, ok := users[user]
	if !ok {
		return false
	}
	delete(conns, conn)
	if len(conns) > 0 {
		return false
	}
	delete(users, user)
	if len(users) == 0 {
		delete(r.rooms, room)
	}
	return true
}

func (r *Registry) membersLocked(room string) []string {
	users := r.rooms[room]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) hasBinding(conn core.Conn, room, user string) bool {
	for _, b := range r.conns[conn] {
		if b.room == room && b.user == user {
			return true
		}
	}
	return false
}

func (r *Registry) dropBinding(conn core.Conn, room, user string) {
	list := r.conns[conn]
	for i, b := range list {
		if b.room == room && b.user == user {
			r.conns[conn] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.conns[conn]) == 0 {
		delete(r.conns, conn)
	}
}
