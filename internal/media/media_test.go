package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrack(t *testing.T, kind webrtc.RTPCodecType) webrtc.TrackLocal {
	t.Helper()

	mimeType := webrtc.MimeTypeOpus
	if kind == webrtc.RTPCodecTypeVideo {
		mimeType = webrtc.MimeTypeVP8
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType}, kind.String(), "test")
	require.NoError(t, err)
	return track
}

func TestTrackStartsEnabled(t *testing.T) {
	track := NewTrack(sampleTrack(t, webrtc.RTPCodecTypeAudio), webrtc.RTPCodecTypeAudio, nil)

	assert.True(t, track.Enabled())
	assert.Equal(t, webrtc.RTPCodecTypeAudio, track.Kind())

	require.NoError(t, track.SetEnabled(false))
	assert.False(t, track.Enabled())

	require.NoError(t, track.SetEnabled(true))
	assert.True(t, track.Enabled())
}

func TestTrackDisableDetachesSender(t *testing.T) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer pc.Close()

	local := sampleTrack(t, webrtc.RTPCodecTypeAudio)
	track := NewTrack(local, webrtc.RTPCodecTypeAudio, nil)

	sender, err := pc.AddTrack(local)
	require.NoError(t, err)
	track.Attach(sender)

	// Muting must stop emission, not just flip the advisory flag.
	require.NoError(t, track.SetEnabled(false))
	assert.Nil(t, sender.Track(), "muted track must be detached from its sender")

	require.NoError(t, track.SetEnabled(true))
	assert.Same(t, local, sender.Track())
}

func TestTrackCloseReleasesDevice(t *testing.T) {
	closed := 0
	track := NewTrack(sampleTrack(t, webrtc.RTPCodecTypeAudio), webrtc.RTPCodecTypeAudio, func() error {
		closed++
		return nil
	})

	require.NoError(t, track.Close())
	assert.Equal(t, 1, closed)

	// A track without a release func is fine to close.
	bare := NewTrack(sampleTrack(t, webrtc.RTPCodecTypeAudio), webrtc.RTPCodecTypeAudio, nil)
	require.NoError(t, bare.Close())
}

func TestStreamByKind(t *testing.T) {
	audio := NewTrack(sampleTrack(t, webrtc.RTPCodecTypeAudio), webrtc.RTPCodecTypeAudio, nil)
	stream := NewStream(audio)

	assert.Same(t, audio, stream.Audio())
	assert.Nil(t, stream.Video(), "audio-only stream has no camera track")

	video := NewTrack(sampleTrack(t, webrtc.RTPCodecTypeVideo), webrtc.RTPCodecTypeVideo, nil)
	stream.Add(video)
	assert.Same(t, video, stream.Video())
	assert.Len(t, stream.Tracks(), 2)
}

func TestStreamCloseReleasesEverything(t *testing.T) {
	closed := 0
	release := func() error {
		closed++
		return nil
	}

	stream := NewStream(
		NewTrack(sampleTrack(t, webrtc.RTPCodecTypeAudio), webrtc.RTPCodecTypeAudio, release),
		NewTrack(sampleTrack(t, webrtc.RTPCodecTypeVideo), webrtc.RTPCodecTypeVideo, release),
	)

	stream.Close()
	assert.Equal(t, 2, closed)
	assert.Empty(t, stream.Tracks())
}
