package ui

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/Warpcall/internal/utils"
)

// CallSummary collects the facts shown after a call ends.
type CallSummary struct {
	Peer      string
	Room      string
	Direction string
	Status    string
	Duration  string
}

// CallSummaryView renders the summary as a go-pretty table.
func CallSummaryView(title string, summary CallSummary) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Peer", utils.TruncateString(summary.Peer, 30)},
		{"Room", utils.TruncateString(summary.Room, 40)},
		{"Direction", summary.Direction},
		{"Status", summary.Status},
		{"Duration", summary.Duration},
	})

	return t.Render()
}

// RenderCallSummary outputs the summary directly to stdout.
func RenderCallSummary(title string, summary CallSummary) {
	fmt.Println(CallSummaryView(title, summary))
}

// RoomInfo is the created-room banner shown to the caller.
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return SuccessBoxStyle.Render(content)
}

// Render outputs the banner directly to stdout.
func (r *RoomInfo) Render() {
	fmt.Fprintln(os.Stdout, r.View())
}
