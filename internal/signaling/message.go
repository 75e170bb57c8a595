package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Message represents all WebSocket messages between client and server.
// The four call kinds (offer, answer, ice_candidate, end) carry a fixed
// schema; room bookkeeping rides in Payload.
type Message struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`

	// From is the username of the originating peer. The relay stamps it
	// server-side on every forwarded call message, so peers cannot spoof it.
	From string `json:"from,omitempty"`

	// Signal carries the session description for offer/answer messages.
	Signal *webrtc.SessionDescription `json:"signal,omitempty"`

	// Candidate carries the ICE candidate for ice_candidate messages.
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`

	// Payload carries room bookkeeping (peer info, errors).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Client to server.
	MessageTypeCreateRoom = "create_room"
	MessageTypeJoinRoom   = "join_room"

	// Server to client.
	MessageTypeRoomCreated = "room_created"
	MessageTypeJoinSuccess = "join_success"
	MessageTypePeerJoined  = "peer_joined"
	MessageTypePeerLeft    = "peer_left"
	MessageTypeError       = "error"

	// Call signaling, relayed between peers in a room.
	MessageTypeOffer     = "offer"
	MessageTypeAnswer    = "answer"
	MessageTypeCandidate = "ice_candidate"
	MessageTypeEnd       = "end"
)

// PeerInfo contains information about the connected peer
type PeerInfo struct {
	Username string `json:"username"`
}

// ErrorPayload represents error messages from server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// IsCallSignal reports whether t is one of the four peer-to-peer call kinds.
func IsCallSignal(t string) bool {
	switch t {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeCandidate, MessageTypeEnd:
		return true
	}
	return false
}

// Valid checks the fixed schema of a call message. Room bookkeeping
// messages are not validated here.
func (m *Message) Valid() bool {
	if m.RoomID == "" {
		return false
	}
	switch m.Type {
	case MessageTypeOffer, MessageTypeAnswer:
		return m.Signal != nil && m.Signal.SDP != ""
	case MessageTypeCandidate:
		return m.Candidate != nil && m.Candidate.Candidate != ""
	case MessageTypeEnd:
		return true
	}
	return false
}
