package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpcall/internal/utils"
)

// CallState mirrors the coordinator's state machine for display.
type CallState int

const (
	CallStateIdle CallState = iota
	CallStateCalling
	CallStateRinging
	CallStateConnecting
	CallStateConnected
	CallStateEnded
	CallStateError
)

// CallControls is what the view invokes on key presses. The call session
// owner adapts its coordinator to this. Answering follows the offer's video
// request by default; audioOnly opts out of sending video back.
type CallControls interface {
	Answer(audioOnly bool) error
	Decline() error
	End() error
	ToggleAudio() error
	ToggleVideo() error
}

// CallUpdate is a message sent from external goroutines to update the UI.
type CallUpdate struct {
	State      CallState
	Peer       string
	RoomID     string
	StartedAt  time.Time
	OfferVideo bool

	AudioOn   bool
	VideoOn   bool
	PeerAudio bool
	PeerVideo bool

	Error error
}

// CallModel is the main Bubble Tea model for a call session.
type CallModel struct {
	controls CallControls

	// State
	state CallState
	last  CallUpdate

	// Spinner for waiting states
	spinner spinner.Model

	// UI
	width  int
	height int

	// Synchronization
	mu sync.RWMutex

	// Channel for external updates
	updateChan chan CallUpdate

	// Done channel
	done chan struct{}

	err error
}

// NewCallModel creates a new call model.
func NewCallModel(controls CallControls) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		controls:   controls,
		state:      CallStateIdle,
		spinner:    s,
		updateChan: make(chan CallUpdate, 100),
		done:       make(chan struct{}),
		width:      80,
		height:     24,
	}
}

// GetUpdateChannel returns the channel for sending updates.
func (m *CallModel) GetUpdateChannel() chan<- CallUpdate {
	return m.updateChan
}

// LastUpdate returns the most recent update, for the post-call summary.
func (m *CallModel) LastUpdate() CallUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdates(),
		tickCmd(),
	)
}

// TickMsg drives the call duration clock.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitForUpdates returns a command that listens for external updates.
func (m *CallModel) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-m.updateChan:
			return update
		case <-m.done:
			return nil
		}
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		if m.state != CallStateEnded && m.state != CallStateError {
			cmds = append(cmds, tickCmd())
		}

	case CallUpdate:
		m.handleUpdate(msg)
		if m.state == CallStateEnded || m.state == CallStateError {
			return m, tea.Quit
		}
		cmds = append(cmds, m.waitForUpdates())
	}

	return m, tea.Batch(cmds...)
}

func (m *CallModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		m.controls.End()
		return tea.Quit

	case "a":
		// Camera follows the offer: a video call is answered with video.
		if m.state == CallStateRinging {
			return m.run(func() error { return m.controls.Answer(false) })
		}

	case "A":
		// Answer but keep the camera off.
		if m.state == CallStateRinging {
			return m.run(func() error { return m.controls.Answer(true) })
		}

	case "d":
		if m.state == CallStateRinging {
			return m.run(m.controls.Decline)
		}

	case "h":
		return m.run(m.controls.End)

	case "m":
		if m.state == CallStateConnected {
			return m.run(m.controls.ToggleAudio)
		}

	case "v":
		if m.state == CallStateConnected {
			return m.run(m.controls.ToggleVideo)
		}
	}
	return nil
}

// run executes a control action off the UI goroutine.
func (m *CallModel) run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return CallUpdate{State: CallStateError, Error: err}
		}
		return nil
	}
}

func (m *CallModel) handleUpdate(update CallUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if update.Error != nil {
		m.err = update.Error
	}
	if update.State == CallStateError && m.last.Peer != "" {
		update.Peer = m.last.Peer
		update.RoomID = m.last.RoomID
		update.StartedAt = m.last.StartedAt
	}
	m.state = update.State
	m.last = update
}

func (m *CallModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s Warpcall", IconCall))
	b.WriteString(header + "\n\n")

	switch m.state {
	case CallStateIdle, CallStateConnecting:
		b.WriteString(fmt.Sprintf("%s Connecting...", m.spinner.View()))

	case CallStateCalling:
		b.WriteString(fmt.Sprintf("%s Calling %s...",
			m.spinner.View(),
			BoldStyle.Render(m.last.Peer),
		))

	case CallStateRinging:
		b.WriteString(m.viewRinging())

	case CallStateConnected:
		b.WriteString(m.viewConnected())

	case CallStateEnded:
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%s Call ended", IconCall)))

	case CallStateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n" + m.viewFooter())

	return ContainerStyle.Render(b.String())
}

func (m *CallModel) viewRinging() string {
	var b strings.Builder

	icon, kind := IconRinging, "call"
	if m.last.OfferVideo {
		icon, kind = IconVideo, "video call"
	}
	b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s Incoming %s from %s",
		icon, kind, m.last.Peer)))
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("   room: %s",
		utils.TruncateString(m.last.RoomID, 50))))

	return b.String()
}

func (m *CallModel) viewConnected() string {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s Connected to %s", IconConnect, m.last.Peer)))

	if !m.last.StartedAt.IsZero() {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("  %s %s",
			IconTime, utils.FormatTimeDuration(time.Since(m.last.StartedAt)))))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s  %s\n",
		trackIcon(m.last.AudioOn, IconMic, IconMuted),
		trackLabel("mic", m.last.AudioOn)))
	b.WriteString(fmt.Sprintf("  %s  %s\n",
		trackIcon(m.last.VideoOn, IconVideo, IconCamOff),
		trackLabel("camera", m.last.VideoOn)))

	b.WriteString(fmt.Sprintf("\n  %s %s: mic %s, camera %s\n",
		IconPeer, m.last.Peer,
		onOff(m.last.PeerAudio), onOff(m.last.PeerVideo)))

	return b.String()
}

func (m *CallModel) viewError() string {
	var b strings.Builder

	b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s Call Failed", IconError)))
	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(ErrorStyle.Render(m.err.Error()))
	}

	return b.String()
}

func (m *CallModel) viewFooter() string {
	switch m.state {
	case CallStateRinging:
		return FooterStyle.Render("'a' answer • 'A' answer without video • 'd' decline")
	case CallStateConnected:
		return FooterStyle.Render("'m' mute • 'v' camera • 'h' hang up • 'q' quit")
	case CallStateEnded, CallStateError:
		return FooterStyle.Render("Press 'q' to exit")
	}
	return FooterStyle.Render("'q' or Ctrl+C to cancel")
}

// Close closes the model.
func (m *CallModel) Close() {
	close(m.done)
}

func trackIcon(on bool, onIcon, offIcon string) string {
	if on {
		return onIcon
	}
	return offIcon
}

func trackLabel(name string, on bool) string {
	if on {
		return name + " on"
	}
	return MutedStyle.Render(name + " off")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
