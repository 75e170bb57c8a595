package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// End reasons recorded in call history and surfaced in the final snapshot.
const (
	ReasonEnded      = "ended"
	ReasonDeclined   = "declined"
	ReasonMissed     = "missed"
	ReasonUnanswered = "unanswered"
	ReasonCancelled  = "cancelled"
	ReasonFailed     = "failed"
	ReasonMediaError = "media_error"
)

// Transport carries the four call signaling kinds to the remote peer.
// *signaling.Client satisfies it.
type Transport interface {
	SendOffer(roomID, from string, sdp pion.SessionDescription) error
	SendAnswer(roomID, from string, sdp pion.SessionDescription) error
	SendCandidate(roomID, from string, candidate pion.ICECandidateInit) error
	SendEnd(roomID string) error
}

// Coordinator owns the call session state machine. At most one session
// exists at a time; every transition funnels through the mutex, and async
// completions (media capture, peer connection callbacks, timers) revalidate
// the session generation before touching anything.
type Coordinator struct {
	cfg       *config.Config
	transport Transport
	acquirer  media.Acquirer
	history   *HistoryReporter

	mu   sync.Mutex
	sess *session
	gen  uint64

	offerTimer *time.Timer
	ringTimer  *time.Timer
	graceTimer *time.Timer

	onChange func(Snapshot)
}

// NewCoordinator wires the coordinator to its collaborators. history may be
// nil to disable call history reporting.
func NewCoordinator(cfg *config.Config, transport Transport, acquirer media.Acquirer, history *HistoryReporter) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		transport: transport,
		acquirer:  acquirer,
		history:   history,
	}
}

// OnChange registers the snapshot listener. Must be set before the first
// operation; the listener is invoked outside the coordinator lock.
func (c *Coordinator) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns the current observable state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	if c.sess == nil {
		return Snapshot{Status: StatusIdle}
	}
	return c.sess.snapshot()
}

func (c *Coordinator) notify(snap Snapshot) {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// Call places an outbound call in roomID to peer. Audio is always captured;
// video is captured when withVideo is set and degrades to audio-only if the
// camera cannot be opened. The offer timer cancels the call if no answer
// arrives within the configured window.
func (c *Coordinator) Call(ctx context.Context, roomID, peer string, withVideo bool) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return NewRoomError("place call", roomID, ErrCallInProgress)
	}
	c.gen++
	myGen := c.gen
	c.sess = &session{
		roomID:    roomID,
		peer:      peer,
		direction: DirectionOutbound,
		status:    StatusCalling,
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	// Device capture can block on hardware; the lock is not held here.
	stream, err := c.acquirer.Acquire(ctx, true, withVideo)
	if err != nil {
		c.abortSession(myGen, ReasonMediaError, false)
		return WrapError("place call", ErrMediaAcquisition, err.Error())
	}

	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		stream.Close()
		return NewRoomError("place call", roomID, ErrCallEnded)
	}
	c.sess.stream = stream

	if err := c.buildPeerLocked(myGen, roomID, true); err != nil {
		c.teardownLocked(ReasonFailed, false)
		c.mu.Unlock()
		return err
	}

	offer, err := c.sess.pc.createOffer()
	if err != nil {
		c.teardownLocked(ReasonFailed, false)
		c.mu.Unlock()
		return WrapError("place call", ErrNegotiation, err.Error())
	}

	if err := c.transport.SendOffer(roomID, c.cfg.Username, *offer); err != nil {
		c.teardownLocked(ReasonFailed, false)
		c.mu.Unlock()
		return NewRoomError("send offer", roomID, err)
	}

	c.offerTimer = time.AfterFunc(c.cfg.OfferTimeout, func() { c.expireOffer(myGen) })
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// HandleOffer processes an inbound offer. A fresh offer rings; an offer for
// the current room renegotiates; an offer for a foreign room while busy is
// rejected by ending the foreign call.
func (c *Coordinator) HandleOffer(msg *signaling.Message) {
	c.mu.Lock()

	if c.sess != nil && msg.RoomID != c.sess.roomID {
		room := msg.RoomID
		c.mu.Unlock()
		slog.Info("busy, rejecting offer for foreign room", "room", room)
		c.transport.SendEnd(room)
		return
	}

	if c.sess != nil {
		c.renegotiateLocked(msg)
		return
	}

	c.gen++
	myGen := c.gen
	c.sess = &session{
		roomID:       msg.RoomID,
		peer:         msg.From,
		direction:    DirectionInbound,
		status:       StatusRinging,
		pendingOffer: msg.Signal,
		offerVideo:   offerRequestsVideo(msg.Signal),
	}
	c.ringTimer = time.AfterFunc(c.cfg.RingTimeout, func() { c.expireRing(myGen) })
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// renegotiateLocked answers a mid-call offer, e.g. the peer turning on a
// camera. When the offer now wants video and none is held locally, a camera
// is acquired opportunistically and offered back in the answer. The
// connected clock keeps running. Called with the lock held, releases it
// before returning.
func (c *Coordinator) renegotiateLocked(msg *signaling.Message) {
	sess := c.sess
	if sess.pc == nil || sess.status == StatusRinging {
		c.mu.Unlock()
		slog.Warn("dropping renegotiation offer before session is up", "room", msg.RoomID)
		return
	}

	if offerRequestsVideo(msg.Signal) && sess.stream.Video() == nil {
		if !c.acquireRenegotiationVideo(msg.RoomID) {
			return
		}
		sess = c.sess
	}

	answer, err := sess.pc.createAnswer(msg.Signal)
	if err != nil {
		slog.Error("renegotiation failed", "room", sess.roomID, "err", err)
		c.teardownLocked(ReasonFailed, true)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}

	c.announceTrackStateLocked()
	roomID := sess.roomID
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.transport.SendAnswer(roomID, c.cfg.Username, *answer); err != nil {
		slog.Error("send renegotiation answer", "room", roomID, "err", err)
	}
	c.notify(snap)
}

// acquireRenegotiationVideo opens a camera for the renegotiation answer.
// Camera failure is not fatal; the answer simply stays without video. The
// lock is dropped around device capture; reports false (with the lock
// released) when the session went away in the meantime.
func (c *Coordinator) acquireRenegotiationVideo(roomID string) bool {
	myGen := c.gen
	c.mu.Unlock()

	stream, err := c.acquirer.Acquire(context.Background(), false, true)

	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		if err == nil {
			stream.Close()
		}
		return false
	}

	switch {
	case err != nil:
		slog.Warn("camera unavailable, answering renegotiation without video",
			"room", roomID, "err", err)
	case stream.Video() == nil:
		stream.Close()
	default:
		track := stream.Video()
		if err := c.sess.pc.addLocalTrack(track); err != nil {
			slog.Warn("attach camera track", "room", roomID, "err", err)
			track.Close()
		} else {
			c.sess.stream.Add(track)
		}
	}
	return true
}

// Answer accepts the currently ringing inbound call. A camera is requested
// only when the offer carries video; audioOnly opts out of sending video
// back even then.
func (c *Coordinator) Answer(ctx context.Context, audioOnly bool) error {
	c.mu.Lock()
	if c.sess == nil || c.sess.status != StatusRinging {
		c.mu.Unlock()
		return NewError("answer call", ErrNotRinging)
	}
	myGen := c.gen
	roomID := c.sess.roomID
	withVideo := c.sess.offerVideo && !audioOnly
	c.stopTimer(&c.ringTimer)
	c.sess.status = StatusConnecting
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	stream, err := c.acquirer.Acquire(ctx, true, withVideo)
	if err != nil {
		c.abortSession(myGen, ReasonMediaError, true)
		return WrapError("answer call", ErrMediaAcquisition, err.Error())
	}

	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		stream.Close()
		return NewRoomError("answer call", roomID, ErrCallEnded)
	}
	c.sess.stream = stream

	if err := c.buildPeerLocked(myGen, roomID, false); err != nil {
		c.teardownLocked(ReasonFailed, true)
		c.mu.Unlock()
		return err
	}

	answer, err := c.sess.pc.createAnswer(c.sess.pendingOffer)
	if err != nil {
		c.teardownLocked(ReasonFailed, true)
		c.mu.Unlock()
		return WrapError("answer call", ErrNegotiation, err.Error())
	}
	c.sess.pendingOffer = nil
	c.flushCandidatesLocked()

	if err := c.transport.SendAnswer(roomID, c.cfg.Username, *answer); err != nil {
		c.teardownLocked(ReasonFailed, false)
		c.mu.Unlock()
		return NewRoomError("send answer", roomID, err)
	}

	// Signaling is complete on this side once the answer is out.
	c.sess.status = StatusConnected
	c.sess.startedAt = time.Now()
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Decline rejects the currently ringing inbound call.
func (c *Coordinator) Decline() error {
	c.mu.Lock()
	if c.sess == nil || c.sess.status != StatusRinging {
		c.mu.Unlock()
		return NewError("decline call", ErrNotRinging)
	}
	c.teardownLocked(ReasonDeclined, true)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// HandleAnswer processes the peer's answer, completing the initial offer or
// a renegotiation.
func (c *Coordinator) HandleAnswer(msg *signaling.Message) {
	c.mu.Lock()
	if c.sess == nil || msg.RoomID != c.sess.roomID {
		c.mu.Unlock()
		slog.Debug("dropping answer without matching session", "room", msg.RoomID)
		return
	}

	switch c.sess.status {
	case StatusCalling:
		c.stopTimer(&c.offerTimer)
		if err := c.sess.pc.applyAnswer(msg.Signal); err != nil {
			slog.Error("apply answer", "room", c.sess.roomID, "err", err)
			c.teardownLocked(ReasonFailed, true)
			break
		}
		c.sess.status = StatusConnected
		c.sess.startedAt = time.Now()
		c.flushCandidatesLocked()

	case StatusConnected:
		// Renegotiation answer; the connected clock keeps running.
		if err := c.sess.pc.applyAnswer(msg.Signal); err != nil {
			slog.Error("apply renegotiation answer", "room", c.sess.roomID, "err", err)
			c.teardownLocked(ReasonFailed, true)
		}

	default:
		slog.Warn("unexpected answer", "room", msg.RoomID, "status", c.sess.status.String())
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// maxPendingCandidates bounds the per-session early-candidate buffer.
const maxPendingCandidates = 64

// HandleCandidate feeds a remote ICE candidate to the live peer connection.
// Candidates that arrive before the remote description is applied, e.g.
// while the call is still ringing, are buffered and flushed with it.
// Candidates without a matching session are dropped.
func (c *Coordinator) HandleCandidate(msg *signaling.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || msg.RoomID != c.sess.roomID {
		slog.Debug("dropping ICE candidate without live session", "room", msg.RoomID)
		return
	}

	if c.sess.pc == nil || c.sess.pc.pc.RemoteDescription() == nil {
		if len(c.sess.pendingCandidates) < maxPendingCandidates {
			c.sess.pendingCandidates = append(c.sess.pendingCandidates, *msg.Candidate)
		}
		return
	}

	if err := c.sess.pc.addCandidate(*msg.Candidate); err != nil {
		slog.Debug("add remote candidate", "room", msg.RoomID, "err", err)
	}
}

// flushCandidatesLocked applies candidates buffered before the remote
// description was set. Individual failures are not fatal.
func (c *Coordinator) flushCandidatesLocked() {
	for _, candidate := range c.sess.pendingCandidates {
		if err := c.sess.pc.addCandidate(candidate); err != nil {
			slog.Debug("apply buffered candidate", "room", c.sess.roomID, "err", err)
		}
	}
	c.sess.pendingCandidates = nil
}

// HandleEnd processes the peer hanging up. No end is echoed back.
func (c *Coordinator) HandleEnd(msg *signaling.Message) {
	c.mu.Lock()
	if c.sess == nil || msg.RoomID != c.sess.roomID {
		c.mu.Unlock()
		slog.Debug("dropping end without matching session", "room", msg.RoomID)
		return
	}

	reason := ReasonEnded
	switch c.sess.status {
	case StatusCalling:
		reason = ReasonDeclined
	case StatusRinging:
		reason = ReasonCancelled
	}

	c.teardownLocked(reason, false)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// HandlePeerLeft processes the signaling server reporting the peer gone.
// There is nobody left to send an end to.
func (c *Coordinator) HandlePeerLeft() {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	reason := ReasonEnded
	if c.sess.startedAt.IsZero() {
		reason = ReasonCancelled
	}
	c.teardownLocked(reason, false)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// End hangs up the current call, whatever state it is in.
func (c *Coordinator) End() error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return NewError("end call", ErrNoActiveCall)
	}
	c.teardownLocked(ReasonEnded, true)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// ToggleAudio flips the microphone mute state and announces it to the peer.
func (c *Coordinator) ToggleAudio() error {
	c.mu.Lock()
	if c.sess == nil || c.sess.stream == nil {
		c.mu.Unlock()
		return NewError("toggle audio", ErrNoActiveCall)
	}
	track := c.sess.stream.Audio()
	if track == nil {
		c.mu.Unlock()
		return WrapError("toggle audio", ErrNoActiveCall, "no audio track")
	}
	if err := track.SetEnabled(!track.Enabled()); err != nil {
		c.mu.Unlock()
		return WrapError("toggle audio", ErrNegotiation, err.Error())
	}
	c.announceTrackStateLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// ToggleVideo flips the camera. If the session has no video track yet, the
// camera is acquired and offered to the peer through renegotiation.
func (c *Coordinator) ToggleVideo(ctx context.Context) error {
	c.mu.Lock()
	if c.sess == nil || c.sess.stream == nil {
		c.mu.Unlock()
		return NewError("toggle video", ErrNoActiveCall)
	}

	if track := c.sess.stream.Video(); track != nil {
		if err := track.SetEnabled(!track.Enabled()); err != nil {
			c.mu.Unlock()
			return WrapError("toggle video", ErrNegotiation, err.Error())
		}
		c.announceTrackStateLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return nil
	}

	if c.sess.status != StatusConnected {
		c.mu.Unlock()
		return WrapError("toggle video", ErrNoActiveCall, "call not connected")
	}
	myGen := c.gen
	roomID := c.sess.roomID
	c.mu.Unlock()

	stream, err := c.acquirer.Acquire(ctx, false, true)
	if err != nil {
		return WrapError("toggle video", ErrMediaAcquisition, err.Error())
	}
	track := stream.Video()
	if track == nil {
		stream.Close()
		return WrapError("toggle video", ErrMediaAcquisition, "no camera available")
	}

	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		stream.Close()
		return NewRoomError("toggle video", roomID, ErrCallEnded)
	}

	if err := c.sess.pc.addLocalTrack(track); err != nil {
		c.mu.Unlock()
		stream.Close()
		return WrapError("toggle video", ErrNegotiation, err.Error())
	}
	c.sess.stream.Add(track)

	offer, err := c.sess.pc.createOffer()
	if err != nil {
		c.mu.Unlock()
		return WrapError("toggle video", ErrNegotiation, err.Error())
	}
	c.announceTrackStateLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.transport.SendOffer(roomID, c.cfg.Username, *offer); err != nil {
		return NewRoomError("send renegotiation offer", roomID, err)
	}
	c.notify(snap)
	return nil
}

// buildPeerLocked creates the peer connection for the current session and
// wires its callbacks. The offering side also opens the control channel;
// the answering side picks it up via OnDataChannel.
func (c *Coordinator) buildPeerLocked(myGen uint64, roomID string, offerer bool) error {
	pc, err := newPeerConn(c.cfg, c.acquirer, roomID, c.cfg.Username, c.transport)
	if err != nil {
		return err
	}
	c.sess.pc = pc

	if err := pc.addTracks(c.sess.stream); err != nil {
		return err
	}

	pc.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		c.handlePeerState(myGen, state)
	})

	pc.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		slog.Info("remote track", "room", roomID, "kind", track.Kind().String())
		go drainRemoteTrack(track)
	})

	if offerer {
		control, err := newControlChannel(pc.pc)
		if err != nil {
			return err
		}
		control.attach(func(state TrackStatePayload) { c.handleTrackState(myGen, state) })
		c.sess.control = control
	} else {
		pc.pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() != controlChannelLabel {
				return
			}
			control := &controlChannel{dc: dc}
			control.attach(func(state TrackStatePayload) { c.handleTrackState(myGen, state) })

			c.mu.Lock()
			if c.sessionLive(myGen) {
				c.sess.control = control
			}
			c.mu.Unlock()
		})
	}
	return nil
}

// handlePeerState reacts to transport liveness. A transient disconnect is
// tolerated for the grace period; failure or closure ends the call.
func (c *Coordinator) handlePeerState(myGen uint64, state pion.PeerConnectionState) {
	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		return
	}
	slog.Debug("peer connection state", "room", c.sess.roomID, "state", state.String())

	switch state {
	case pion.PeerConnectionStateConnected:
		c.stopTimer(&c.graceTimer)

	case pion.PeerConnectionStateDisconnected:
		if c.sess.status == StatusConnected && c.graceTimer == nil {
			c.graceTimer = time.AfterFunc(c.cfg.DisconnectGrace, func() { c.expireGrace(myGen) })
		}

	case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
		c.teardownLocked(ReasonFailed, true)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	c.mu.Unlock()
}

func (c *Coordinator) handleTrackState(myGen uint64, state TrackStatePayload) {
	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		return
	}
	c.sess.peerAudio = state.Audio
	c.sess.peerVideo = state.Video
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Coordinator) announceTrackStateLocked() {
	sess := c.sess
	if sess.control == nil {
		return
	}
	audio, video := false, false
	if t := sess.stream.Audio(); t != nil {
		audio = t.Enabled()
	}
	if t := sess.stream.Video(); t != nil {
		video = t.Enabled()
	}
	sess.control.sendTrackState(audio, video)
}

func (c *Coordinator) expireOffer(myGen uint64) {
	c.mu.Lock()
	if !c.sessionLive(myGen) || c.sess.status != StatusCalling {
		c.mu.Unlock()
		return
	}
	slog.Info("call not answered in time", "room", c.sess.roomID)
	c.teardownLocked(ReasonUnanswered, true)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Coordinator) expireRing(myGen uint64) {
	c.mu.Lock()
	if !c.sessionLive(myGen) || c.sess.status != StatusRinging {
		c.mu.Unlock()
		return
	}
	slog.Info("incoming call expired", "room", c.sess.roomID)
	c.teardownLocked(ReasonMissed, true)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Coordinator) expireGrace(myGen uint64) {
	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		return
	}
	slog.Info("disconnect grace expired", "room", c.sess.roomID)
	c.teardownLocked(ReasonFailed, true)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// abortSession tears the session down from an async failure path, if it is
// still the same session.
func (c *Coordinator) abortSession(myGen uint64, reason string, emitEnd bool) {
	c.mu.Lock()
	if !c.sessionLive(myGen) {
		c.mu.Unlock()
		return
	}
	c.teardownLocked(reason, emitEnd)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Coordinator) sessionLive(myGen uint64) bool {
	return c.sess != nil && c.gen == myGen
}

// teardownLocked releases everything the session holds and returns the
// coordinator to idle. Safe to call from any state; the generation bump
// invalidates every async completion still in flight.
func (c *Coordinator) teardownLocked(reason string, emitEnd bool) {
	sess := c.sess
	if sess == nil {
		return
	}
	c.sess = nil
	c.gen++

	c.stopTimer(&c.offerTimer)
	c.stopTimer(&c.ringTimer)
	c.stopTimer(&c.graceTimer)

	if emitEnd {
		if err := c.transport.SendEnd(sess.roomID); err != nil {
			slog.Debug("send end", "room", sess.roomID, "err", err)
		}
	}

	sess.control.close()
	if sess.pc != nil {
		sess.pc.close()
	}
	if sess.stream != nil {
		sess.stream.Close()
	}

	c.reportHistory(sess, reason)
	slog.Info("call ended", "room", sess.roomID, "reason", reason)
}

func (c *Coordinator) reportHistory(sess *session, reason string) {
	if c.history == nil {
		return
	}

	caller, callee := c.cfg.Username, sess.peer
	if sess.direction == DirectionInbound {
		caller, callee = sess.peer, c.cfg.Username
	}

	var duration int64
	if !sess.startedAt.IsZero() {
		duration = int64(time.Since(sess.startedAt).Seconds())
	}

	c.history.Report(HistoryRecord{
		Caller:    caller,
		Callee:    callee,
		Status:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  duration,
	})
}

func (c *Coordinator) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
