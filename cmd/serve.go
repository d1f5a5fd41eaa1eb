package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/jamtrack/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the JamTrack web server to arm tracks and drive captures over HTTP.
This allows you to control recording from your smartphone or any device on the same network.

The server will display the local network URL for easy access from mobile devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		srv := server.New(svc, port)
		slog.Info("JamTrack web server starting", "port", port, "config", cfgFile)

		// Start server (this blocks)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
}
