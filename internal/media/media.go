package media

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// Track wraps a local capture track together with its mute state. While the
// capture device keeps running (so a later unmute needs no renegotiation),
// a disabled track is detached from its RTP sender and nothing reaches the
// peer until it is enabled again.
type Track struct {
	local   webrtc.TrackLocal
	kind    webrtc.RTPCodecType
	enabled atomic.Bool
	closeFn func() error

	mu     sync.Mutex
	sender *webrtc.RTPSender
}

// NewTrack wraps local as an enabled track. closeFn releases the capture
// device and may be nil.
func NewTrack(local webrtc.TrackLocal, kind webrtc.RTPCodecType, closeFn func() error) *Track {
	t := &Track{local: local, kind: kind, closeFn: closeFn}
	t.enabled.Store(true)
	return t
}

// Local returns the underlying track for AddTrack.
func (t *Track) Local() webrtc.TrackLocal { return t.local }

// Kind reports whether this is an audio or video track.
func (t *Track) Kind() webrtc.RTPCodecType { return t.kind }

// Enabled reports the current mute state.
func (t *Track) Enabled() bool { return t.enabled.Load() }

// Attach binds the sender carrying this track on the peer connection, so
// SetEnabled can gate what is actually emitted. Tracks are enabled when
// attached.
func (t *Track) Attach(sender *webrtc.RTPSender) {
	t.mu.Lock()
	t.sender = sender
	t.mu.Unlock()
}

// SetEnabled flips the mute state. A disabled track is replaced on its
// sender with nothing, so the peer stops receiving media immediately.
func (t *Track) SetEnabled(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sender != nil {
		var next webrtc.TrackLocal
		if on {
			next = t.local
		}
		if err := t.sender.ReplaceTrack(next); err != nil {
			return err
		}
	}
	t.enabled.Store(on)
	return nil
}

// Close releases the capture device behind the track.
func (t *Track) Close() error {
	if t.closeFn == nil {
		return nil
	}
	return t.closeFn()
}

// Stream is the set of local tracks acquired for a call.
type Stream struct {
	tracks []*Track
}

// NewStream builds a stream from already wrapped tracks.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns all tracks in the stream.
func (s *Stream) Tracks() []*Track { return s.tracks }

// Audio returns the audio track, or nil if none was captured.
func (s *Stream) Audio() *Track { return s.byKind(webrtc.RTPCodecTypeAudio) }

// Video returns the video track, or nil if capture fell back to audio-only.
func (s *Stream) Video() *Track { return s.byKind(webrtc.RTPCodecTypeVideo) }

func (s *Stream) byKind(kind webrtc.RTPCodecType) *Track {
	for _, t := range s.tracks {
		if t.kind == kind {
			return t
		}
	}
	return nil
}

// Add appends a track acquired after the stream was created, e.g. a camera
// turned on mid-call.
func (s *Stream) Add(t *Track) { s.tracks = append(s.tracks, t) }

// Close releases every capture device in the stream.
func (s *Stream) Close() {
	for _, t := range s.tracks {
		t.Close()
	}
	s.tracks = nil
}

// Acquirer opens local capture devices and knows which codecs they encode.
type Acquirer interface {
	// ConfigureEngine registers the codecs this acquirer's tracks produce.
	// It must be called on the media engine before the peer connection that
	// will carry the tracks is created.
	ConfigureEngine(engine *webrtc.MediaEngine) error

	// Acquire opens the requested devices. A camera that cannot be opened
	// degrades to an audio-only stream; a microphone that cannot be opened
	// is an error. The returned stream may have fewer tracks than requested.
	Acquire(ctx context.Context, audio, video bool) (*Stream, error)
}
