//go:build linux

package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// DeviceAcquirer captures camera and microphone via pion/mediadevices
// (V4L2 + malgo on Linux), encoding VP8 and Opus.
type DeviceAcquirer struct {
	selector *mediadevices.CodecSelector
}

// NewDeviceAcquirer builds the VP8+Opus codec selector used for all captures.
func NewDeviceAcquirer() (*DeviceAcquirer, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return &DeviceAcquirer{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

// ConfigureEngine registers the selector's codecs on the media engine.
func (a *DeviceAcquirer) ConfigureEngine(engine *webrtc.MediaEngine) error {
	a.selector.Populate(engine)
	return nil
}

// Acquire opens the requested devices. GetUserMedia fails as a unit if any
// requested track cannot be opened, so when video+audio fails we retry
// audio-only before giving up. A dead microphone is fatal.
func (a *DeviceAcquirer) Acquire(ctx context.Context, audio, video bool) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !audio && !video {
		return NewStream(), nil
	}

	stream, err := a.getUserMedia(audio, video)
	if err != nil && video {
		slog.Warn("camera capture failed, falling back to audio-only", "err", err)
		if !audio {
			return nil, fmt.Errorf("video capture: %w", err)
		}
		stream, err = a.getUserMedia(true, false)
	}
	if err != nil {
		return nil, fmt.Errorf("media capture: %w", err)
	}
	if err := ctx.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

func (a *DeviceAcquirer) getUserMedia(audio, video bool) (*Stream, error) {
	constraints := mediadevices.MediaStreamConstraints{Codec: a.selector}
	if video {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// Exclude MJPEG. Some cameras expose an MJPEG V4L2 node that
			// produces malformed JPEG frames and poisons the VP8 encoder.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			// Cap at 640x480 to keep VP8 encoding latency down.
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}
	if audio {
		constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
	}

	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, err
	}

	stream := NewStream()
	for _, track := range ms.GetTracks() {
		track.OnEnded(func(err error) {
			if err != nil {
				slog.Debug("local track ended", "err", err)
			}
		})
		stream.Add(NewTrack(track, track.Kind(), track.Close))
	}

	slog.Info("local media captured",
		"audio", stream.Audio() != nil, "video", stream.Video() != nil)
	return stream, nil
}
