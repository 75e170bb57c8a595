package signaling

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHandler(t *testing.T) (chan *Message, *Handler) {
	t.Helper()
	incoming := make(chan *Message, 8)
	handler := NewHandler(incoming)
	go handler.Start()
	t.Cleanup(func() {
		close(incoming)
		handler.Close()
	})
	return incoming, handler
}

func TestHandlerRoutesCallSignals(t *testing.T) {
	incoming, handler := startHandler(t)

	sdp := &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0..."}
	incoming <- &Message{Type: MessageTypeOffer, RoomID: "r1", From: "bob", Signal: sdp}
	incoming <- &Message{Type: MessageTypeEnd, RoomID: "r1"}

	select {
	case msg := <-handler.Offers:
		assert.Equal(t, "r1", msg.RoomID)
		assert.Equal(t, "bob", msg.From)
	case <-time.After(time.Second):
		t.Fatal("offer not routed")
	}

	select {
	case msg := <-handler.Ends:
		assert.Equal(t, "r1", msg.RoomID)
	case <-time.After(time.Second):
		t.Fatal("end not routed")
	}
}

func TestHandlerRejectsMalformedCallSignals(t *testing.T) {
	incoming, handler := startHandler(t)

	// Offer without SDP must be dropped at the boundary.
	incoming <- &Message{Type: MessageTypeOffer, RoomID: "r1"}
	// Candidate without payload likewise.
	incoming <- &Message{Type: MessageTypeCandidate, RoomID: "r1"}
	// A valid end proves the handler is still alive afterwards.
	incoming <- &Message{Type: MessageTypeEnd, RoomID: "r1"}

	select {
	case msg := <-handler.Ends:
		assert.Equal(t, "r1", msg.RoomID)
	case <-time.After(time.Second):
		t.Fatal("end not routed")
	}

	assert.Empty(t, handler.Offers)
	assert.Empty(t, handler.Candidates)
}

func TestHandlerRoutesRoomBookkeeping(t *testing.T) {
	incoming, handler := startHandler(t)

	peerPayload, err := json.Marshal(PeerInfo{Username: "carol"})
	require.NoError(t, err)

	incoming <- &Message{Type: MessageTypeRoomCreated, RoomID: "word-room"}
	incoming <- &Message{Type: MessageTypePeerJoined, Payload: peerPayload}
	incoming <- &Message{Type: MessageTypePeerLeft}

	select {
	case roomID := <-handler.RoomCreated:
		assert.Equal(t, "word-room", roomID)
	case <-time.After(time.Second):
		t.Fatal("room_created not routed")
	}

	select {
	case info := <-handler.PeerJoined:
		assert.Equal(t, "carol", info.Username)
	case <-time.After(time.Second):
		t.Fatal("peer_joined not routed")
	}

	select {
	case <-handler.PeerLeft:
	case <-time.After(time.Second):
		t.Fatal("peer_left not routed")
	}
}

func TestHandlerErrorPayload(t *testing.T) {
	incoming, handler := startHandler(t)

	payload, err := json.Marshal(ErrorPayload{Error: "Room is full"})
	require.NoError(t, err)
	incoming <- &Message{Type: MessageTypeError, Payload: payload}

	select {
	case errMsg := <-handler.Error:
		assert.Equal(t, "Room is full", errMsg)
	case <-time.After(time.Second):
		t.Fatal("error not routed")
	}
}

func TestHandlerCloseIsIdempotent(t *testing.T) {
	handler := NewHandler(make(chan *Message))

	handler.Close()
	handler.Close()
}

func TestHandlerIgnoresMessagesAfterClose(t *testing.T) {
	incoming := make(chan *Message, 4)
	handler := NewHandler(incoming)
	go handler.Start()

	handler.Close()

	// The websocket may still deliver messages in the shutdown window; they
	// must be dropped, never panic the routing loop.
	incoming <- &Message{Type: MessageTypePeerLeft}
	incoming <- &Message{Type: MessageTypeEnd, RoomID: "late-room"}

	time.Sleep(20 * time.Millisecond)
}
