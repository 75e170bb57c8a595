package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/ui"
)

var (
	flagDomain   string
	flagName     string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagHistory  string
	flagVideo    bool
)

var callCmd = &cobra.Command{
	Use:     "call",
	Aliases: []string{"c"},
	Short:   "Start a call and wait for someone to join",
	Long: `Create a call room and ring the peer who joins it.

Examples:
  warpcall call
  warpcall call --video
  warpcall call --name alice --domain custom.example.com
  warpcall call --relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return placeCall()
	},
}

func placeCall() error {
	cfg, err := LoadConfig(config.Options{
		Domain:     flagDomain,
		Username:   flagName,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
		HistoryURL: flagHistory,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()
	ctx, err := NewConnectionContext(cfg)
	if err != nil {
		return err
	}
	defer ctx.Close()
	stopSpinner()

	roomID, err := createRoom(ctx)
	if err != nil {
		return err
	}

	ui.NewRoomInfo(roomID, cfg.GetRoomLink(roomID)).Render()

	peerInfo, err := waitForPeer(ctx)
	if err != nil {
		return err
	}
	ctx.PeerInfo = peerInfo

	coordinator, err := NewCoordinator(ctx)
	if err != nil {
		return err
	}

	return RunCallSession(ctx, coordinator, func() error {
		return coordinator.Call(context.Background(), roomID, peerInfo.Username, flagVideo)
	})
}

func createRoom(ctx *ConnectionContext) (string, error) {
	if err := ctx.Client.CreateRoom(ctx.Config.Username); err != nil {
		return "", call.NewError("create room", err)
	}

	select {
	case roomID := <-ctx.Handler.RoomCreated:
		return roomID, nil
	case errMsg := <-ctx.Handler.Error:
		return "", call.WrapError("create room", call.ErrSignalingError, errMsg)
	}
}

func waitForPeer(ctx *ConnectionContext) (*signaling.PeerInfo, error) {
	fmt.Println()
	stopSpinner := ui.RunWaitingSpinner("Waiting for someone to join...")
	defer stopSpinner()

	select {
	case peerInfo := <-ctx.Handler.PeerJoined:
		return peerInfo, nil
	case errMsg := <-ctx.Handler.Error:
		return nil, call.WrapError("wait for peer", call.ErrSignalingError, errMsg)
	}
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom domain")
	callCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name")
	callCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	callCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	callCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	callCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	callCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	callCmd.Flags().StringVar(&flagHistory, "history-url", "", "Call history endpoint")
	callCmd.Flags().BoolVarP(&flagVideo, "video", "v", false, "Start with camera on")
}
