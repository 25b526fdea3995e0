package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/construdata/proposta-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP upload endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}

		srv := server.New(server.Config{
			Port:        port,
			AuthToken:   cfg.Server.AuthToken,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			RateRPS:     cfg.Server.RateRPS,
			RateBurst:   cfg.Server.RateBurst,
		}, env.Orchestrator, env.Store)

		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
