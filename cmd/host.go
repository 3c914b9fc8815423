/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/moamenhredeen/oasc/internal/config"
	"github.com/moamenhredeen/oasc/internal/hostproxy"
	"github.com/moamenhredeen/oasc/internal/logging"
)

var listenAddr string

// hostCmd represents the host command
var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the host process for the host transport",
	Long: `Run the host process. Clients configured with transport.kind = "host"
send their requests and document downloads here, and the host performs them
directly, streaming server-sent events back as they arrive.

Endpoints:
  POST /commands/make_request
  POST /commands/load_spec
  GET  /healthz
  GET  /host/status
  GET  /metrics`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fx.New(
			fx.Supply(cfg),
			fx.Provide(
				func(cfg *config.Config) *slog.Logger { return logging.New(cfg.Log, os.Stdout) },
				func() hostproxy.Version { return hostproxy.Version(version) },
			),
			hostproxy.Module,
			fx.Invoke(warnConfigPermissions),
			fx.NopLogger,
		).Run()
	},
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides host.listen_addr)")
}
