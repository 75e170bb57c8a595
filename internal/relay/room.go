package relay

// Room pairs the two peers of a call. The caller creates the room and the
// callee joins it; signaling messages are only ever relayed between the two.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// Caller is the client who created the room and will send the offer.
	Caller *Client

	// Callee is the client who joined the room.
	Callee *Client
}

// other returns the peer opposite c, or nil if c is alone in the room.
func (r *Room) other(c *Client) *Client {
	if r.Caller == c {
		return r.Callee
	}
	if r.Callee == c {
		return r.Caller
	}
	return nil
}
