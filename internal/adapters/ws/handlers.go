package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/core"
	"github.com/pbazhin/studyhub/internal/domain"
)

type groupRef struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

func (ctl *Controller) handleJoinGroup(_ context.Context, c *Conn, data json.RawMessage) {
	var p groupRef
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad joinGroup payload")
		return
	}
	if !domain.IsValidID(p.SessionID) || !domain.IsValidID(p.UserID) {
		log.Warn().Str("module", "ws").Str("session", p.SessionID).Str("user", p.UserID).Msg("joinGroup with malformed ids")
		return
	}
	ctl.Hub.Join(p.SessionID, p.UserID, c)
}

func (ctl *Controller) handleLeaveGroup(_ context.Context, c *Conn, data json.RawMessage) {
	var p groupRef
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad leaveGroup payload")
		return
	}
	if !domain.IsValidID(p.SessionID) || !domain.IsValidID(p.UserID) {
		log.Warn().Str("module", "ws").Str("session", p.SessionID).Str("user", p.UserID).Msg("leaveGroup with malformed ids")
		return
	}
	ctl.Hub.Leave(p.SessionID, p.UserID, c)
}

// handleMicToggle relays mic state to every other connection process-wide,
// not just the sender's room. That scope matches the shipped behavior; see
// DESIGN.md before narrowing it.
func (ctl *Controller) handleMicToggle(_ context.Context, c *Conn, data json.RawMessage) {
	ctl.Hub.EmitExcept(c, core.EvtMicStatusUpdate, data)
}

// handleGroupMessage fans an ephemeral chat message out to the room with a
// server-stamped timestamp. Nothing is persisted.
func (ctl *Controller) handleGroupMessage(_ context.Context, c *Conn, data json.RawMessage) {
	var p struct {
		SessionID string `json:"sessionId"`
		UserID    string `json:"userId"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad groupMessage payload")
		return
	}
	if p.SessionID == "" || p.UserID == "" || p.Message == "" {
		return
	}
	if ctl.limiter != nil && !ctl.limiter.Allow(p.UserID) {
		ctl.sendError(c, "too many messages, slow down")
		return
	}
	ctl.Hub.Emit(p.SessionID, core.EvtReceiveGroupMessage, core.GroupMessagePayload{
		UserID:    p.UserID,
		Message:   p.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUpdateSession persists a patch arriving over the socket and lets the
// service broadcast sessionUpdated. Failures go back to the sender only.
func (ctl *Controller) handleUpdateSession(ctx context.Context, c *Conn, data json.RawMessage) {
	var p struct {
		SessionID  string              `json:"sessionId"`
		UpdateData domain.SessionPatch `json:"updateData"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad updateSession payload")
		return
	}

	if _, err := ctl.Sessions.Update(ctx, p.SessionID, p.UpdateData); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("session", p.SessionID).Msg("updateSession failed")
		ctl.sendError(c, updateErrMessage(err))
	}
}

func (ctl *Controller) handlePing(_ context.Context, c *Conn, _ json.RawMessage) {
	ctl.Hub.EmitTo(c, core.EvtPong, nil)
}

// updateErrMessage picks a client-safe message; storage internals never
// cross the wire.
func updateErrMessage(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrNoFields),
		errors.Is(err, domain.ErrNotFound):
		return err.Error()
	default:
		return "failed to update session"
	}
}
