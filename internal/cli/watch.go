package cli

import (
	"github.com/spf13/cobra"

	"github.com/fieldrover/wayfarer/internal/tui"
)

var watchAddr string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "daemon introspection address (default: listen.http from the config)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a running daemon in the terminal",
	Long:  "Watch the live state and event stream of a running daemon.",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := watchAddr
		if addr == "" {
			addr = appConfig.Listen.HTTP
		}
		return tui.Run(httpBase(addr))
	},
}
