package app

import (
	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/core"
)

// Disconnect reconciles live presence after a connection goes away without
// an explicit leave. Every room the connection was bound to is rechecked:
// the user drops out of the live set unless another of their connections
// remains bound, and each affected room gets exactly one membership
// broadcast with the post-removal set.
func (h *Hub) Disconnect(conn core.Conn) {
	h.unregister(conn)

	affected := h.registry.UnbindAll(conn)
	for room, members := range affected {
		h.Emit(room, core.EvtUpdateParticipants, core.ParticipantsPayload{SessionID: room, Participants: members})
	}

	log.Info().Str("module", "app.hub").Str("conn", conn.ID()).Int("rooms", len(affected)).Msg("connection reconciled")
}
