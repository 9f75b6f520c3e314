package core

import "encoding/json"

// Inbound client events.
const (
	EvtJoinGroup     = "joinGroup"
	EvtLeaveGroup    = "leaveGroup"
	EvtMicToggle     = "micToggle"
	EvtGroupMessage  = "groupMessage"
	EvtUpdateSession = "updateSession"
	EvtPing          = "ping"
)

// Outbound server events.
const (
	EvtUpdateParticipants  = "updateParticipants"
	EvtNewSession          = "newSession"
	EvtSessionUpdated      = "sessionUpdated"
	EvtRaisedHand          = "raisedHand"
	EvtReceiveGroupMessage = "receiveGroupMessage"
	EvtMicStatusUpdate     = "micStatusUpdate"
	EvtError               = "error"
	EvtPong                = "pong"
)

// Envelope is the wire shape of every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParticipantsPayload announces a room's membership after a change.
type ParticipantsPayload struct {
	SessionID    string   `json:"sessionId"`
	Participants []string `json:"participants"`
}

// RaisedHandPayload announces a single raised hand.
type RaisedHandPayload struct {
	UserID string `json:"userId"`
}

// GroupMessagePayload is an ephemeral chat message, server-stamped.
type GroupMessagePayload struct {
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode wraps an event payload into a wire frame.
func Encode(event string, v any) (Frame, error) {
	var data json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
