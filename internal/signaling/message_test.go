package signaling

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestIsCallSignal(t *testing.T) {
	assert.True(t, IsCallSignal(MessageTypeOffer))
	assert.True(t, IsCallSignal(MessageTypeAnswer))
	assert.True(t, IsCallSignal(MessageTypeCandidate))
	assert.True(t, IsCallSignal(MessageTypeEnd))

	assert.False(t, IsCallSignal(MessageTypeCreateRoom))
	assert.False(t, IsCallSignal(MessageTypePeerJoined))
	assert.False(t, IsCallSignal(""))
}

func TestMessageValid(t *testing.T) {
	sdp := &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0..."}
	candidate := &webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 9 typ host"}

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"offer with sdp", Message{Type: MessageTypeOffer, RoomID: "r", Signal: sdp}, true},
		{"offer without sdp", Message{Type: MessageTypeOffer, RoomID: "r"}, false},
		{"offer with empty sdp", Message{Type: MessageTypeOffer, RoomID: "r", Signal: &webrtc.SessionDescription{}}, false},
		{"offer without room", Message{Type: MessageTypeOffer, Signal: sdp}, false},
		{"answer with sdp", Message{Type: MessageTypeAnswer, RoomID: "r", Signal: sdp}, true},
		{"candidate", Message{Type: MessageTypeCandidate, RoomID: "r", Candidate: candidate}, true},
		{"candidate without payload", Message{Type: MessageTypeCandidate, RoomID: "r"}, false},
		{"end", Message{Type: MessageTypeEnd, RoomID: "r"}, true},
		{"end without room", Message{Type: MessageTypeEnd}, false},
		{"bookkeeping type", Message{Type: MessageTypeJoinRoom, RoomID: "r"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Valid())
		})
	}
}
