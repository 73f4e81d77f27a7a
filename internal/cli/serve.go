package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/pharos-avatars/internal/server"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	serveAddress string
	serveRefresh time.Duration
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gallery over HTTP",
	Long: `Run a read-only HTTP API over the gallery, refreshed in the background.

Endpoints:
  GET  /api/gallery          every eligible avatar with its state
  GET  /api/gallery/{id}     one avatar
  GET  /api/owned/{address}  avatars owned by an address
  POST /api/refresh          refresh now
  GET  /metrics              Prometheus metrics
  GET  /healthz              liveness

Minting stays in the CLI, where the wallet prompts are answered.

Example:
  avatars serve
  avatars serve --address 0.0.0.0:8080 --refresh 30s`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "listen address (default: server.address)")
	serveCmd.Flags().DurationVar(&serveRefresh, "refresh", 0, "background refresh interval (default: server.refresh_seconds)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireTargetChain(ctx); err != nil {
		return err
	}

	srvCfg := server.Config{
		Address:         cfg.Server.Address,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RatePerMinute:   cfg.Server.RatePerMinute,
		RefreshInterval: time.Duration(cfg.Server.RefreshSeconds) * time.Second,
	}
	if serveAddress != "" {
		srvCfg.Address = serveAddress
	}
	if serveRefresh > 0 {
		srvCfg.RefreshInterval = serveRefresh
	}

	srv := server.New(srvCfg, a.store, a.aggregator, a.resolver, collector, logger.Zerolog())
	out(cmd.ErrOrStderr(), "Serving gallery on http://%s\n", srvCfg.Address)
	return srv.Run(ctx)
}
