package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
	"github.com/BioHazard786/Warpcall/internal/utils"
)

type ConnectionContext struct {
	Client   *signaling.Client
	Handler  *signaling.Handler
	Config   *config.Config
	PeerInfo *signaling.PeerInfo
}

func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return nil, call.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client.Incoming())
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (c *ConnectionContext) Close() {
	// Stop the websocket before the handler so messages still in flight are
	// drained rather than routed into a shut-down handler.
	if c.Client != nil {
		c.Client.Close()
	}
	if c.Handler != nil {
		c.Handler.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, call.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// NewCoordinator assembles the call coordinator from the connection context.
func NewCoordinator(ctx *ConnectionContext) (*call.Coordinator, error) {
	acquirer, err := media.NewDeviceAcquirer()
	if err != nil {
		return nil, call.NewError("init media", err)
	}

	history := call.NewHistoryReporter(ctx.Config.HistoryURL)
	return call.NewCoordinator(ctx.Config, ctx.Client, acquirer, history), nil
}

// coordinatorControls adapts the coordinator to the UI's key bindings.
type coordinatorControls struct {
	coordinator *call.Coordinator
}

func (c coordinatorControls) Answer(audioOnly bool) error {
	return c.coordinator.Answer(context.Background(), audioOnly)
}

func (c coordinatorControls) Decline() error     { return c.coordinator.Decline() }
func (c coordinatorControls) End() error         { return c.coordinator.End() }
func (c coordinatorControls) ToggleAudio() error { return c.coordinator.ToggleAudio() }
func (c coordinatorControls) ToggleVideo() error {
	return c.coordinator.ToggleVideo(context.Background())
}

// RunCallSession wires signaling into the coordinator and drives the call UI
// until the session ends. start, if non-nil, runs once the UI is up (the
// caller uses it to place the outbound call).
func RunCallSession(ctx *ConnectionContext, coordinator *call.Coordinator, start func() error) error {
	model := ui.NewCallModel(coordinatorControls{coordinator: coordinator})
	defer model.Close()

	summary := &sessionSummary{}
	coordinator.OnChange(func(snap call.Snapshot) {
		summary.observe(snap)
		model.GetUpdateChannel() <- snapshotUpdate(snap, summary)
	})

	routeDone := make(chan struct{})
	defer close(routeDone)
	go routeSignals(ctx, coordinator, routeDone)

	program := tea.NewProgram(model)

	if start != nil {
		go func() {
			if err := start(); err != nil {
				model.GetUpdateChannel() <- ui.CallUpdate{State: ui.CallStateError, Error: err}
			}
		}()
	}

	if _, err := program.Run(); err != nil {
		return call.NewError("run call ui", err)
	}

	// The user may quit while the call is live.
	coordinator.End()

	summary.render()
	return nil
}

// routeSignals feeds incoming signaling messages to the coordinator.
func routeSignals(ctx *ConnectionContext, coordinator *call.Coordinator, done <-chan struct{}) {
	for {
		select {
		case msg, ok := <-ctx.Handler.Offers:
			if !ok {
				return
			}
			coordinator.HandleOffer(msg)
		case msg, ok := <-ctx.Handler.Answers:
			if !ok {
				return
			}
			coordinator.HandleAnswer(msg)
		case msg, ok := <-ctx.Handler.Candidates:
			if !ok {
				return
			}
			coordinator.HandleCandidate(msg)
		case msg, ok := <-ctx.Handler.Ends:
			if !ok {
				return
			}
			coordinator.HandleEnd(msg)
		case _, ok := <-ctx.Handler.PeerLeft:
			if !ok {
				return
			}
			coordinator.HandlePeerLeft()
		case <-done:
			return
		}
	}
}

// sessionSummary accumulates the facts shown after the call.
type sessionSummary struct {
	peer      string
	room      string
	direction string
	startedAt time.Time
	connected bool
}

func (s *sessionSummary) observe(snap call.Snapshot) {
	if snap.Status == call.StatusIdle {
		return
	}
	s.peer = snap.Peer
	s.room = snap.RoomID
	s.direction = snap.Direction.String()
	if !snap.StartedAt.IsZero() {
		s.startedAt = snap.StartedAt
		s.connected = true
	}
}

func (s *sessionSummary) render() {
	if s.peer == "" && s.room == "" {
		return
	}

	status := "not connected"
	duration := "-"
	if s.connected {
		status = "completed"
		duration = utils.FormatTimeDuration(time.Since(s.startedAt))
	}

	fmt.Println()
	ui.RenderCallSummary(fmt.Sprintf("%s Call Summary", ui.IconCall), ui.CallSummary{
		Peer:      s.peer,
		Room:      s.room,
		Direction: s.direction,
		Status:    status,
		Duration:  duration,
	})
}

func snapshotUpdate(snap call.Snapshot, summary *sessionSummary) ui.CallUpdate {
	update := ui.CallUpdate{
		Peer:       snap.Peer,
		RoomID:     snap.RoomID,
		StartedAt:  snap.StartedAt,
		OfferVideo: snap.OfferVideo,
		AudioOn:    snap.AudioEnabled,
		VideoOn:    snap.VideoEnabled,
		PeerAudio:  snap.PeerAudio,
		PeerVideo:  snap.PeerVideo,
	}

	switch snap.Status {
	case call.StatusCalling:
		update.State = ui.CallStateCalling
	case call.StatusRinging:
		update.State = ui.CallStateRinging
	case call.StatusConnecting:
		update.State = ui.CallStateConnecting
	case call.StatusConnected:
		update.State = ui.CallStateConnected
	case call.StatusIdle:
		update.State = ui.CallStateEnded
		update.Peer = summary.peer
		update.RoomID = summary.room
	}

	return update
}
