package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/core"
)

// Hub owns the set of open connections and fans events out to them.
// Room-scoped delivery goes through the registry's bindings; global delivery
// covers every registered connection. It implements core.Emitter.
type Hub struct {
	mu       sync.RWMutex
	conns    map[core.Conn]struct{}
	registry *Registry
}

func NewHub(registry *Registry) *Hub {
	return &Hub{
		conns:    make(map[core.Conn]struct{}),
		registry: registry,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Register adds a freshly accepted connection to the hub.
func (h *Hub) Register(conn core.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	log.Info().Str("module", "app.hub").Str("conn", conn.ID()).Msg("connection registered")
}

func (h *Hub) unregister(conn core.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// ConnCount reports the number of open connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Join binds (room, user, conn) and, when the live set changed, announces
// the new membership to the room.
func (h *Hub) Join(room, user string, conn core.Conn) {
	changed, members := h.registry.Bind(room, user, conn)
	if changed {
		h.Emit(room, core.EvtUpdateParticipants, core.ParticipantsPayload{SessionID: room, Participants: members})
	}
}

// Leave unbinds (room, user, conn) and announces the remaining membership
// when the live set changed.
func (h *Hub) Leave(room, user string, conn core.Conn) {
	changed, members := h.registry.Unbind(room, user, conn)
	if changed {
		h.Emit(room, core.EvtUpdateParticipants, core.ParticipantsPayload{SessionID: room, Participants: members})
	}
}

// Emit delivers an event to every connection bound to the room.
// Delivery is at-most-once; a slow consumer's frame is dropped.
func (h *Hub) Emit(room, event string, v any) {
	frame, err := core.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("event", event).Msg("encode failed")
		return
	}
	for _, c := range h.registry.ConnsOf(room) {
		if err := c.TrySend(frame); err != nil {
			log.Warn().Str("module", "app.hub").Str("conn", c.ID()).Str("event", event).Msg("dropped frame")
		}
	}
}

// EmitAll delivers an event to every open connection.
func (h *Hub) EmitAll(event string, v any) {
	h.emitConns(nil, event, v)
}

// EmitExcept delivers an event to every open connection but the sender.
func (h *Hub) EmitExcept(sender core.Conn, event string, v any) {
	h.emitConns(sender, event, v)
}

// EmitTo delivers an event to a single connection.
func (h *Hub) EmitTo(conn core.Conn, event string, v any) {
	frame, err := core.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("event", event).Msg("encode failed")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Str("module", "app.hub").Str("conn", conn.ID()).Str("event", event).Msg("dropped frame")
	}
}

func (h *Hub) emitConns(skip core.Conn, event string, v any) {
	frame, err := core.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("event", event).Msg("encode failed")
		return
	}

	h.mu.RLock()
	conns := make([]core.Conn, 0, len(h.conns))
	for c := range h.conns {
		if c == skip {
			continue
		}
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.TrySend(frame); err != nil {
			log.Warn().Str("module", "app.hub").Str("conn", c.ID()).Str("event", event).Msg("dropped frame")
		}
	}
}
