package cmd

import (
	"fmt"

	"github.com/Penitant/app-voice-recorder/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API server for remote control",
	Long: `Start the recorder API server so another device on the network can
drive recording and playback.

The server logs the local network URL on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		srv := server.New(cfg, port)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the API server")
}
