package call

import (
	"log/slog"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/sdp/v3"
	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/utils"
)

// ICE liveness tuning. Disconnected must fire promptly so the disconnect
// grace timer starts close to the actual outage.
const (
	iceDisconnectedTimeout = 5 * time.Second
	iceFailedTimeout       = 25 * time.Second
	iceKeepaliveInterval   = 2 * time.Second
)

// peerConn wraps one RTCPeerConnection bound to a single room. The room ID
// is fixed at creation so candidate emission never races a session change.
type peerConn struct {
	pc     *pion.PeerConnection
	roomID string
}

func newPeerConn(cfg *config.Config, acquirer media.Acquirer, roomID, username string, transport Transport) (*peerConn, error) {
	mediaEngine := &pion.MediaEngine{}
	if err := acquirer.ConfigureEngine(mediaEngine); err != nil {
		return nil, NewError("configure media engine", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, NewError("register interceptors", err)
	}

	se := pion.SettingEngine{}
	se.SetICETimeouts(iceDisconnectedTimeout, iceFailedTimeout, iceKeepaliveInterval)

	api := pion.NewAPI(
		pion.WithMediaEngine(mediaEngine),
		pion.WithInterceptorRegistry(interceptorRegistry),
		pion.WithSettingEngine(se),
	)

	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		turnUser, turnPass := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   turnUser,
			Credential: turnPass,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}

	p := &peerConn{pc: pc, roomID: roomID}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := transport.SendCandidate(p.roomID, username, c.ToJSON()); err != nil {
			slog.Debug("dropping ICE candidate, transport closed", "err", err)
		}
	})

	return p, nil
}

// addLocalTrack attaches one local track and binds its sender so the mute
// toggle can gate emission.
func (p *peerConn) addLocalTrack(t *media.Track) error {
	sender, err := p.pc.AddTrack(t.Local())
	if err != nil {
		return NewError("add track", err)
	}
	t.Attach(sender)
	return nil
}

// addTracks attaches every local track and fills the remaining kinds with
// recvonly transceivers so the SDP always carries both m-lines.
func (p *peerConn) addTracks(stream *media.Stream) error {
	haveAudio, haveVideo := false, false
	for _, t := range stream.Tracks() {
		if err := p.addLocalTrack(t); err != nil {
			return err
		}
		switch t.Kind() {
		case pion.RTPCodecTypeAudio:
			haveAudio = true
		case pion.RTPCodecTypeVideo:
			haveVideo = true
		}
	}

	if !haveAudio {
		if err := p.addRecvOnly(pion.RTPCodecTypeAudio); err != nil {
			return err
		}
	}
	if !haveVideo {
		if err := p.addRecvOnly(pion.RTPCodecTypeVideo); err != nil {
			return err
		}
	}
	return nil
}

func (p *peerConn) addRecvOnly(kind pion.RTPCodecType) error {
	_, err := p.pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return NewError("add recvonly transceiver", err)
	}
	return nil
}

func (p *peerConn) createOffer() (*pion.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, NewError("create offer", err)
	}

	if err = p.pc.SetLocalDescription(offer); err != nil {
		return nil, NewError("set local description", err)
	}

	return p.pc.LocalDescription(), nil
}

func (p *peerConn) createAnswer(offer *pion.SessionDescription) (*pion.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(*offer); err != nil {
		return nil, NewError("set remote description", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, NewError("create answer", err)
	}

	if err = p.pc.SetLocalDescription(answer); err != nil {
		return nil, NewError("set local description", err)
	}

	return p.pc.LocalDescription(), nil
}

func (p *peerConn) applyAnswer(answer *pion.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(*answer); err != nil {
		return NewError("apply answer", err)
	}
	return nil
}

func (p *peerConn) addCandidate(candidate pion.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (p *peerConn) close() {
	if err := p.pc.Close(); err != nil {
		slog.Debug("peer connection close", "err", err)
	}
}

// offerRequestsVideo reports whether the offer carries a video section that
// will send media our way. A recvonly or inactive video line is just a
// placeholder and does not make this a video call.
func offerRequestsVideo(desc *pion.SessionDescription) bool {
	if desc == nil {
		return false
	}

	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		slog.Debug("unparseable offer SDP", "err", err)
		return false
	}

	for _, m := range parsed.MediaDescriptions {
		if m.MediaName.Media != "video" {
			continue
		}
		// A media section without a direction attribute defaults to sendrecv.
		direction := "sendrecv"
		for _, a := range m.Attributes {
			switch a.Key {
			case "sendrecv", "sendonly", "recvonly", "inactive":
				direction = a.Key
			}
		}
		if direction == "sendrecv" || direction == "sendonly" {
			return true
		}
	}
	return false
}

// drainRemoteTrack consumes RTP so the interceptor pipeline keeps running.
// Rendering is out of scope for a terminal client; packets are counted for
// diagnostics and discarded.
func drainRemoteTrack(track *pion.TrackRemote) {
	var packets uint64
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			slog.Debug("remote track closed",
				"kind", track.Kind().String(), "packets", packets)
			return
		}
		packets++
	}
}
