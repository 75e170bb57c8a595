//go:build !linux

package media

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// DeviceAcquirer is a stub on non-Linux platforms. Camera/mic capture via
// pion/mediadevices requires platform-specific drivers (V4L2/malgo on Linux);
// elsewhere calls run receive-only.
type DeviceAcquirer struct{}

// NewDeviceAcquirer returns the receive-only stub.
func NewDeviceAcquirer() (*DeviceAcquirer, error) {
	return &DeviceAcquirer{}, nil
}

// ConfigureEngine registers the default codec set so remote tracks decode.
func (a *DeviceAcquirer) ConfigureEngine(engine *webrtc.MediaEngine) error {
	return engine.RegisterDefaultCodecs()
}

// Acquire returns an empty stream; the peer connection layer adds recvonly
// transceivers for the missing kinds.
func (a *DeviceAcquirer) Acquire(ctx context.Context, audio, video bool) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Warn("no local capture support on this platform, call is receive-only")
	return NewStream(), nil
}
