package call

import (
	"log/slog"

	pion "github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// In-call control rides a data channel next to the media tracks, so mute
// and camera state reach the peer without touching the signaling server.
const controlChannelLabel = "call-control"

const (
	controlTypeTrackState = "track_state"
)

// ControlMessage represents all call-control data channel messages.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// TrackStatePayload announces the sender's current mute and camera state.
type TrackStatePayload struct {
	Audio bool `msgpack:"audio"`
	Video bool `msgpack:"video"`
}

// DecodePayload decodes the message payload into the provided struct
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewControlMessage creates a new ControlMessage with the given type and payload
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}

	return ControlMessage{
		Type:    t,
		Payload: b,
	}, nil
}

// controlChannel wraps the call-control data channel.
type controlChannel struct {
	dc *pion.DataChannel
}

// newControlChannel creates the channel on the offering side. The answering
// side receives it through OnDataChannel instead.
func newControlChannel(pc *pion.PeerConnection) (*controlChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(controlChannelLabel, &pion.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, NewError("create control channel", err)
	}
	return &controlChannel{dc: dc}, nil
}

// attach wires the channel's message handler. onTrackState fires on every
// track_state message from the peer.
func (c *controlChannel) attach(onTrackState func(TrackStatePayload)) {
	c.dc.OnMessage(func(msg pion.DataChannelMessage) {
		var m ControlMessage
		if err := msgpack.Unmarshal(msg.Data, &m); err != nil {
			slog.Debug("bad control message", "err", err)
			return
		}

		switch m.Type {
		case controlTypeTrackState:
			var state TrackStatePayload
			if err := m.DecodePayload(&state); err != nil {
				slog.Debug("bad track state payload", "err", err)
				return
			}
			onTrackState(state)

		default:
			slog.Debug("unknown control message", "type", m.Type)
		}
	})
}

// sendTrackState announces our mute and camera state to the peer. Failures
// are logged and swallowed; state resyncs on the next toggle.
func (c *controlChannel) sendTrackState(audio, video bool) {
	if c == nil || c.dc.ReadyState() != pion.DataChannelStateOpen {
		return
	}

	m, err := NewControlMessage(controlTypeTrackState, TrackStatePayload{Audio: audio, Video: video})
	if err != nil {
		slog.Debug("encode track state", "err", err)
		return
	}

	data, err := msgpack.Marshal(m)
	if err != nil {
		slog.Debug("encode track state", "err", err)
		return
	}

	if err := c.dc.Send(data); err != nil {
		slog.Debug("send track state", "err", err)
	}
}

func (c *controlChannel) close() {
	if c == nil || c.dc == nil {
		return
	}
	c.dc.Close()
}
