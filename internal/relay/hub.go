package relay

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// Hub is the central brain of the relay.
// It manages all active rooms and clients from a single goroutine.
type Hub struct {
	// Rooms maps room IDs to Room instances.
	Rooms map[string]*Room

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Broadcast is a channel for client messages. The hub processes these.
	Broadcast chan *inbound
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *inbound),
	}
}

// generateRoomID creates a random, memorable room ID using word combinations.
// Format: word-word-word-word (e.g., "kitten-waffle-stardust-happy").
func (h *Hub) generateRoomID() string {
	allWords := [][]string{animals, dishes, names, randomWords, adjectives, extras}

	// Keep generating until we find one that's not in use
	for {
		// Pick 4 random word lists (without replacement)
		selectedLists := make([][]string, 4)
		usedIndices := make(map[int]bool)

		for i := 0; i < 4; i++ {
			var listIndex int
			for {
				listIndex = randomIndex(len(allWords))
				if !usedIndices[listIndex] {
					usedIndices[listIndex] = true
					break
				}
			}
			selectedLists[i] = allWords[listIndex]
		}

		word1 := selectedLists[0][randomIndex(len(selectedLists[0]))]
		word2 := selectedLists[1][randomIndex(len(selectedLists[1]))]
		word3 := selectedLists[2][randomIndex(len(selectedLists[2]))]
		word4 := selectedLists[3][randomIndex(len(selectedLists[3]))]

		id := fmt.Sprintf("%s-%s-%s-%s", word1, word2, word3, word4)

		if _, ok := h.Rooms[id]; !ok {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("failed to generate random index: %v", err))
	}
	return int(n.Int64())
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state (rooms, clients).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// The client is not in a room yet. They need to send a
			// "create_room" or "join_room" message first.
			slog.Info("client registered", "addr", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.removeClient(client)

		case in := <-h.Broadcast:
			h.dispatch(in.client, in.msg)
		}
	}
}

// removeClient drops a disconnected client from its room, notifies the peer
// left behind, and deletes the room once it is empty.
func (h *Hub) removeClient(client *Client) {
	slog.Info("client unregistered", "addr", client.Conn.RemoteAddr())

	if client.RoomID != "" {
		if room, ok := h.Rooms[client.RoomID]; ok {
			otherPeer := room.other(client)

			if room.Caller == client {
				room.Caller = nil
			} else if room.Callee == client {
				room.Callee = nil
			}

			if room.Caller == nil && room.Callee == nil {
				delete(h.Rooms, room.ID)
				slog.Info("room deleted", "room", room.ID)
			} else if otherPeer != nil {
				slog.Info("peer left room", "room", room.ID)
				otherPeer.Send <- &signaling.Message{Type: signaling.MessageTypePeerLeft, RoomID: room.ID}
			}
		}
	}

	// Close the client's send channel to stop its WritePump.
	close(client.Send)
}

// dispatch is the core relay logic for one decoded message.
func (h *Hub) dispatch(client *Client, msg *signaling.Message) {
	slog.Debug("message received", "type", msg.Type, "addr", client.Conn.RemoteAddr())

	if signaling.IsCallSignal(msg.Type) {
		h.relayCallSignal(client, msg)
		return
	}

	switch msg.Type {

	case signaling.MessageTypeCreateRoom:
		client.Username = peerUsername(msg)

		roomID := h.generateRoomID()
		h.Rooms[roomID] = &Room{ID: roomID, Caller: client}
		client.RoomID = roomID

		slog.Info("room created", "room", roomID, "caller", client.Username)

		client.Send <- &signaling.Message{
			Type:   signaling.MessageTypeRoomCreated,
			RoomID: roomID,
		}

	case signaling.MessageTypeJoinRoom:
		client.Username = peerUsername(msg)

		room, ok := h.Rooms[msg.RoomID]
		if !ok {
			slog.Warn("room join failed, room not found", "room", msg.RoomID)
			client.Send <- errorMessage("Room not found")
			return
		}
		if room.Callee != nil {
			slog.Warn("room join failed, room is full", "room", msg.RoomID)
			client.Send <- errorMessage("Room is full")
			return
		}

		room.Callee = client
		client.RoomID = msg.RoomID

		slog.Info("client joined room", "room", msg.RoomID, "callee", client.Username)

		// Tell the caller who arrived, and the callee who they reached.
		if room.Caller != nil {
			room.Caller.Send <- &signaling.Message{
				Type:    signaling.MessageTypePeerJoined,
				RoomID:  room.ID,
				Payload: peerInfoPayload(client.Username),
			}

			client.Send <- &signaling.Message{
				Type:    signaling.MessageTypeJoinSuccess,
				RoomID:  room.ID,
				Payload: peerInfoPayload(room.Caller.Username),
			}
		}

	default:
		slog.Warn("unknown message type", "type", msg.Type)
	}
}

// relayCallSignal forwards a call message (offer, answer, ice_candidate, end)
// to the other peer in the sender's room. The From field is stamped here so
// peers cannot spoof each other.
func (h *Hub) relayCallSignal(client *Client, msg *signaling.Message) {
	if client.RoomID == "" {
		slog.Warn("call signal from client outside any room", "addr", client.Conn.RemoteAddr())
		client.Send <- errorMessage("You must join a room first")
		return
	}

	// Signals always carry the sender's own room; a mismatch means the
	// client is confused or malicious.
	if msg.RoomID != client.RoomID {
		slog.Warn("call signal for foreign room dropped", "have", client.RoomID, "want", msg.RoomID)
		return
	}

	room, ok := h.Rooms[client.RoomID]
	if !ok {
		client.Send <- errorMessage("Room not found")
		return
	}

	target := room.other(client)
	if target == nil {
		slog.Debug("no other peer in room", "room", room.ID, "type", msg.Type)
		return
	}

	msg.From = client.Username
	target.Send <- msg
}

func peerUsername(msg *signaling.Message) string {
	var info signaling.PeerInfo
	if msg.Payload != nil {
		json.Unmarshal(msg.Payload, &info)
	}
	return info.Username
}

func peerInfoPayload(username string) json.RawMessage {
	b, _ := json.Marshal(signaling.PeerInfo{Username: username})
	return b
}

func errorMessage(text string) *signaling.Message {
	b, _ := json.Marshal(signaling.ErrorPayload{Error: text})
	return &signaling.Message{Type: signaling.MessageTypeError, Payload: b}
}
