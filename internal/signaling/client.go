package signaling

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling server.
// It also satisfies the call coordinator's Transport interface: the four
// Send* methods emit the call signaling kinds, scoped by room ID carried in
// the message payload.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *Message
	outgoing  chan *Message
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 1),
		outgoing:  make(chan *Message, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes WebSocket connection to the server.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Create a custom dialer that uses our robust DNS lookup
	dialer := websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		// Use our custom DNS lookup with fallback
		resolvedIP, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}

		// Dial the resolved IP
		return net.Dial(network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.incoming <- &msg
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// SendMessage queues a message for the server. Messages queued after Close
// are dropped with an error.
func (c *Client) SendMessage(msg *Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("signaling client closed")
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("signaling client closed")
	}
}

// CreateRoom asks the server to allocate a room with this peer as caller.
func (c *Client) CreateRoom(username string) error {
	payload, _ := json.Marshal(PeerInfo{Username: username})
	return c.SendMessage(&Message{Type: MessageTypeCreateRoom, Payload: payload})
}

// JoinRoom asks the server to add this peer to an existing room as callee.
func (c *Client) JoinRoom(roomID, username string) error {
	payload, _ := json.Marshal(PeerInfo{Username: username})
	return c.SendMessage(&Message{Type: MessageTypeJoinRoom, RoomID: roomID, Payload: payload})
}

// SendOffer emits a session-description offer scoped to roomID.
func (c *Client) SendOffer(roomID, from string, sdp webrtc.SessionDescription) error {
	return c.SendMessage(&Message{Type: MessageTypeOffer, RoomID: roomID, From: from, Signal: &sdp})
}

// SendAnswer emits a session-description answer scoped to roomID.
func (c *Client) SendAnswer(roomID, from string, sdp webrtc.SessionDescription) error {
	return c.SendMessage(&Message{Type: MessageTypeAnswer, RoomID: roomID, From: from, Signal: &sdp})
}

// SendCandidate emits a locally discovered ICE candidate scoped to roomID.
func (c *Client) SendCandidate(roomID, from string, candidate webrtc.ICECandidateInit) error {
	return c.SendMessage(&Message{Type: MessageTypeCandidate, RoomID: roomID, From: from, Candidate: &candidate})
}

// SendEnd tells the other peer in roomID to tear down its side of the call.
func (c *Client) SendEnd(roomID string) error {
	return c.SendMessage(&Message{Type: MessageTypeEnd, RoomID: roomID})
}

// Incoming returns the channel for receiving messages.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close closes the WebSocket connection and cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
