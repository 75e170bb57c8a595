package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/relay"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the websocket signaling relay that brokers call setup between
peers, plus the call-history sink. Media never passes through it.

Examples:
  warpcall serve
  warpcall serve --addr :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return relay.ListenAndServe(flagServeAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagServeAddr, "addr", "a", ":8080", "Listen address")
}
