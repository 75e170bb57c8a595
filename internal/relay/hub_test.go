package relay

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpcall/internal/signaling"
)

func startRelay(t *testing.T) *httptest.Server {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(NewServeMux(hub, &HistoryStore{}))
	t.Cleanup(server.Close)
	return server
}

func dialRelay(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *signaling.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg signaling.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func createRoom(t *testing.T, conn *websocket.Conn, username string) string {
	t.Helper()
	payload, _ := json.Marshal(signaling.PeerInfo{Username: username})
	require.NoError(t, conn.WriteJSON(&signaling.Message{
		Type:    signaling.MessageTypeCreateRoom,
		Payload: payload,
	}))

	msg := readMessage(t, conn)
	require.Equal(t, signaling.MessageTypeRoomCreated, msg.Type)
	require.NotEmpty(t, msg.RoomID)
	return msg.RoomID
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID, username string) {
	t.Helper()
	payload, _ := json.Marshal(signaling.PeerInfo{Username: username})
	require.NoError(t, conn.WriteJSON(&signaling.Message{
		Type:    signaling.MessageTypeJoinRoom,
		RoomID:  roomID,
		Payload: payload,
	}))
}

func TestCreateAndJoinRoom(t *testing.T) {
	server := startRelay(t)

	caller := dialRelay(t, server)
	roomID := createRoom(t, caller, "alice")

	callee := dialRelay(t, server)
	joinRoom(t, callee, roomID, "bob")

	// The caller learns who arrived.
	msg := readMessage(t, caller)
	require.Equal(t, signaling.MessageTypePeerJoined, msg.Type)
	var peer signaling.PeerInfo
	require.NoError(t, json.Unmarshal(msg.Payload, &peer))
	assert.Equal(t, "bob", peer.Username)

	// The callee learns who they reached.
	msg = readMessage(t, callee)
	require.Equal(t, signaling.MessageTypeJoinSuccess, msg.Type)
	assert.Equal(t, roomID, msg.RoomID)
	require.NoError(t, json.Unmarshal(msg.Payload, &peer))
	assert.Equal(t, "alice", peer.Username)
}

func TestJoinMissingRoom(t *testing.T) {
	server := startRelay(t)

	conn := dialRelay(t, server)
	joinRoom(t, conn, "no-such-room", "bob")

	msg := readMessage(t, conn)
	require.Equal(t, signaling.MessageTypeError, msg.Type)

	var payload signaling.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "Room not found", payload.Error)
}

func TestJoinFullRoom(t *testing.T) {
	server := startRelay(t)

	caller := dialRelay(t, server)
	roomID := createRoom(t, caller, "alice")

	callee := dialRelay(t, server)
	joinRoom(t, callee, roomID, "bob")
	readMessage(t, callee) // join_success

	intruder := dialRelay(t, server)
	joinRoom(t, intruder, roomID, "carol")

	msg := readMessage(t, intruder)
	require.Equal(t, signaling.MessageTypeError, msg.Type)

	var payload signaling.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "Room is full", payload.Error)
}

func TestCallSignalRelayedWithStampedFrom(t *testing.T) {
	server := startRelay(t)

	caller := dialRelay(t, server)
	roomID := createRoom(t, caller, "alice")

	callee := dialRelay(t, server)
	joinRoom(t, callee, roomID, "bob")
	readMessage(t, caller) // peer_joined
	readMessage(t, callee) // join_success

	// The sender claims to be someone else; the relay stamps the truth.
	require.NoError(t, caller.WriteJSON(&signaling.Message{
		Type:   signaling.MessageTypeOffer,
		RoomID: roomID,
		From:   "mallory",
		Signal: &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0..."},
	}))

	msg := readMessage(t, callee)
	require.Equal(t, signaling.MessageTypeOffer, msg.Type)
	assert.Equal(t, roomID, msg.RoomID)
	assert.Equal(t, "alice", msg.From)
	require.NotNil(t, msg.Signal)
	assert.Equal(t, "v=0...", msg.Signal.SDP)

	// End flows the other way.
	require.NoError(t, callee.WriteJSON(&signaling.Message{
		Type:   signaling.MessageTypeEnd,
		RoomID: roomID,
	}))

	msg = readMessage(t, caller)
	require.Equal(t, signaling.MessageTypeEnd, msg.Type)
	assert.Equal(t, "bob", msg.From)
}

func TestSignalOutsideRoomRejected(t *testing.T) {
	server := startRelay(t)

	conn := dialRelay(t, server)
	require.NoError(t, conn.WriteJSON(&signaling.Message{
		Type:   signaling.MessageTypeEnd,
		RoomID: "lonely-room",
	}))

	msg := readMessage(t, conn)
	require.Equal(t, signaling.MessageTypeError, msg.Type)
}

func TestPeerLeftNotification(t *testing.T) {
	server := startRelay(t)

	caller := dialRelay(t, server)
	roomID := createRoom(t, caller, "alice")

	callee := dialRelay(t, server)
	joinRoom(t, callee, roomID, "bob")
	readMessage(t, caller) // peer_joined

	callee.Close()

	msg := readMessage(t, caller)
	require.Equal(t, signaling.MessageTypePeerLeft, msg.Type)
	assert.Equal(t, roomID, msg.RoomID)
}

func TestGenerateRoomIDFormat(t *testing.T) {
	hub := NewHub()

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		id := hub.generateRoomID()

		parts := strings.Split(id, "-")
		require.Len(t, parts, 4, "room ID %q must be four words", id)
		for _, part := range parts {
			assert.NotEmpty(t, part)
			assert.Equal(t, strings.ToLower(part), part)
		}
		seen[id] = true
	}

	// Collisions in 32 draws from this pool would be astonishing.
	assert.Greater(t, len(seen), 30)
}
