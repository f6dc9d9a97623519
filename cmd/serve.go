package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the planning HTTP server",
	Long:  "Serves optimization runs over HTTP: POST /optimize starts an async run, GET /runs/{id}/events streams its progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		serverCfg := cfg.Server
		if servePort != 0 {
			serverCfg = config.ServerConfig{Port: servePort}
		}

		return server.New(serverCfg, cfg.Optimizer, st).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
