package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler routes incoming signaling messages to appropriate channels.
// Malformed call messages are rejected at this boundary and never reach the
// call coordinator.
type Handler struct {
	incoming    <-chan *Message
	RoomCreated chan string
	PeerJoined  chan *PeerInfo
	JoinSuccess chan *PeerInfo
	PeerLeft    chan struct{}
	Offers      chan *Message
	Answers     chan *Message
	Candidates  chan *Message
	Ends        chan *Message
	Error       chan string

	done      chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a new message handler reading from incoming.
func NewHandler(incoming <-chan *Message) *Handler {
	return &Handler{
		incoming:    incoming,
		RoomCreated: make(chan string, 1),
		PeerJoined:  make(chan *PeerInfo, 1),
		JoinSuccess: make(chan *PeerInfo, 1),
		PeerLeft:    make(chan struct{}, 1),
		Offers:      make(chan *Message, 4),
		Answers:     make(chan *Message, 4),
		Candidates:  make(chan *Message, 32),
		Ends:        make(chan *Message, 4),
		Error:       make(chan string, 1),
		done:        make(chan struct{}),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection closes the incoming channel or Close is called.
func (h *Handler) Start() {
	for {
		select {
		case msg, ok := <-h.incoming:
			if !ok {
				return
			}
			h.route(msg)
		case <-h.done:
			return
		}
	}
}

func (h *Handler) route(msg *Message) {
	if IsCallSignal(msg.Type) {
		h.handleCallSignal(msg)
		return
	}

	switch msg.Type {

	case MessageTypeRoomCreated:
		select {
		case h.RoomCreated <- msg.RoomID:
		case <-h.done:
		}

	case MessageTypeJoinSuccess:
		h.deliverPeerInfo(h.JoinSuccess, decodePeerInfo(msg))

	case MessageTypePeerJoined:
		h.deliverPeerInfo(h.PeerJoined, decodePeerInfo(msg))

	case MessageTypePeerLeft:
		select {
		case h.PeerLeft <- struct{}{}:
		case <-h.done:
		}

	case MessageTypeError:
		h.handleError(msg)

	default:
		slog.Debug("ignoring unknown signaling message", "type", msg.Type)
	}
}

// handleCallSignal validates a call message's fixed schema and routes it.
func (h *Handler) handleCallSignal(msg *Message) {
	if !msg.Valid() {
		slog.Warn("rejecting malformed call signal", "type", msg.Type, "room", msg.RoomID)
		return
	}

	switch msg.Type {
	case MessageTypeOffer:
		h.deliver(h.Offers, msg)
	case MessageTypeAnswer:
		h.deliver(h.Answers, msg)
	case MessageTypeCandidate:
		h.deliver(h.Candidates, msg)
	case MessageTypeEnd:
		h.deliver(h.Ends, msg)
	}
}

// deliver hands a call message to its channel unless the handler shut down.
func (h *Handler) deliver(ch chan *Message, msg *Message) {
	select {
	case ch <- msg:
	case <-h.done:
	}
}

func (h *Handler) deliverPeerInfo(ch chan *PeerInfo, info *PeerInfo) {
	select {
	case ch <- info:
	case <-h.done:
	}
}

// decodePeerInfo extracts peer info from a bookkeeping message payload.
func decodePeerInfo(msg *Message) *PeerInfo {
	var peerInfo PeerInfo
	if msg.Payload != nil {
		if err := json.Unmarshal(msg.Payload, &peerInfo); err != nil {
			slog.Debug("bad peer info payload", "err", err)
		}
	}
	return &peerInfo
}

// handleError parses the error message and sends it through the Error channel.
func (h *Handler) handleError(msg *Message) {
	text := "Unknown error from server"

	var errPayload ErrorPayload
	if msg.Payload != nil && json.Unmarshal(msg.Payload, &errPayload) == nil && errPayload.Error != "" {
		text = errPayload.Error
	}

	select {
	case h.Error <- text:
	case <-h.done:
	}
}

// Close stops the routing loop. The routed channels stay open so a message
// still in flight from the connection can never panic a concurrent Start;
// consumers stop through their own shutdown signals.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
