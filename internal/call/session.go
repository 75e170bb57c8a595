package call

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/media"
)

// Status is the call state machine position.
type Status int

const (
	// StatusIdle means no call session exists.
	StatusIdle Status = iota

	// StatusCalling means an outbound offer was sent and we await an answer.
	StatusCalling

	// StatusRinging means an inbound offer arrived and awaits accept/decline.
	StatusRinging

	// StatusConnecting means signaling is exchanging descriptions.
	StatusConnecting

	// StatusConnected means the session negotiation completed.
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCalling:
		return "calling"
	case StatusRinging:
		return "ringing"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	}
	return "unknown"
}

// Direction records which side initiated the call.
type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

func (d Direction) String() string {
	if d == DirectionInbound {
		return "inbound"
	}
	return "outbound"
}

// session holds everything belonging to one call. It is created on Call or
// on an inbound offer and destroyed by teardown; all fields are guarded by
// the coordinator's mutex.
type session struct {
	roomID    string
	peer      string
	direction Direction
	status    Status
	startedAt time.Time

	pc      *peerConn
	stream  *media.Stream
	control *controlChannel

	// pendingOffer is the inbound offer held while ringing, applied on Answer.
	pendingOffer *webrtc.SessionDescription

	// offerVideo records whether the inbound offer asked to send us video;
	// answering requests a camera only when it did.
	offerVideo bool

	// pendingCandidates buffers remote candidates that arrive before the
	// remote description is applied; flushed right after it is.
	pendingCandidates []webrtc.ICECandidateInit

	// peerAudio/peerVideo mirror the remote side's track state as reported
	// over the call control channel.
	peerAudio bool
	peerVideo bool
}

// Snapshot is an immutable copy of observable call state, delivered to the
// UI on every change.
type Snapshot struct {
	Status    Status
	RoomID    string
	Peer      string
	Direction Direction
	StartedAt time.Time

	// OfferVideo is set while ringing when the inbound offer carries video.
	OfferVideo bool

	AudioEnabled bool
	VideoEnabled bool
	PeerAudio    bool
	PeerVideo    bool
}

// Duration reports elapsed connected time, zero before the call connects.
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		Status:     s.status,
		RoomID:     s.roomID,
		Peer:       s.peer,
		Direction:  s.direction,
		StartedAt:  s.startedAt,
		OfferVideo: s.offerVideo,
		PeerAudio:  s.peerAudio,
		PeerVideo:  s.peerVideo,
	}
	if s.stream != nil {
		if t := s.stream.Audio(); t != nil {
			snap.AudioEnabled = t.Enabled()
		}
		if t := s.stream.Video(); t != nil {
			snap.VideoEnabled = t.Enabled()
		}
	}
	return snap
}
