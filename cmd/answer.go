package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

var (
	flagJoinDomain   string
	flagJoinName     string
	flagJoinSTUN     string
	flagJoinTURN     string
	flagJoinTURNUser string
	flagJoinTURNPass string
	flagJoinRelay    bool
	flagJoinHistory  string
)

var answerCmd = &cobra.Command{
	Use:     "answer <room-id|url>",
	Aliases: []string{"a", "join"},
	Short:   "Join a call room and take the incoming call",
	Long: `Join an existing call room. Once the caller rings, accept with 'a'
(the camera turns on when the caller's offer has video), answer with 'A' to
keep your camera off, or decline with 'd'.

Examples:
  warpcall answer kitten-waffle-stardust-happy
  warpcall answer https://warpcall.qzz.io/r/kitten-waffle-stardust-happy
  warpcall answer kitten-waffle-stardust-happy --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return answerCall(roomID)
	},
}

func answerCall(roomID string) error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagJoinDomain,
		Username:   flagJoinName,
		STUNServer: flagJoinSTUN,
		TURNServer: flagJoinTURN,
		TURNUser:   flagJoinTURNUser,
		TURNPass:   flagJoinTURNPass,
		ForceRelay: flagJoinRelay,
		HistoryURL: flagJoinHistory,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	ctx, err := NewConnectionContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()
	stopSpinner()

	peerInfo, err := joinRoom(ctx, roomID)
	if err != nil {
		return err
	}
	ctx.PeerInfo = peerInfo
	ui.PrintSuccessf("Joined %s's room", peerInfo.Username)

	coordinator, err := NewCoordinator(ctx)
	if err != nil {
		return err
	}

	return RunCallSession(ctx, coordinator, nil)
}

func joinRoom(ctx *ConnectionContext, roomID string) (*signaling.PeerInfo, error) {
	if err := ctx.Client.JoinRoom(roomID, ctx.Config.Username); err != nil {
		return nil, call.NewError("join room", err)
	}

	select {
	case peerInfo := <-ctx.Handler.JoinSuccess:
		return peerInfo, nil
	case errMsg := <-ctx.Handler.Error:
		return nil, call.WrapError("join room", call.ErrSignalingError, errMsg)
	}
}

func parseRoomInput(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, ".") {
		roomID, err := extractRoomIDFromURL(input)
		if err != nil {
			return "", err
		}
		ui.PrintSuccessf("Extracted room ID: %s", roomID)
		return roomID, nil
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", call.NewError("parse URL", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(answerCmd)

	answerCmd.Flags().StringVar(&flagJoinDomain, "domain", "", "Custom domain")
	answerCmd.Flags().StringVarP(&flagJoinName, "name", "n", "", "Display name")
	answerCmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	answerCmd.Flags().StringVarP(&flagJoinTURN, "turn", "t", "", "Custom TURN server")
	answerCmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	answerCmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	answerCmd.Flags().BoolVarP(&flagJoinRelay, "relay", "r", false, "Force relay mode")
	answerCmd.Flags().StringVar(&flagJoinHistory, "history-url", "", "Call history endpoint")
}
