package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offer-goat/offer-goat/internal/server"
	"github.com/offer-goat/offer-goat/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the offer-goat HTTP server.

The server provides:
  - Tracking script at /og.js
  - Assignment and beacon endpoints for landing pages
  - Dashboard for viewing results
  - Health check and Prometheus metrics

Example:
  offer-goat serve --port 8080`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := cmd.Context()

		if cfg.Server.PublicURL != "" {
			if err := s.SetSetting(ctx, serverURLSetting, cfg.Server.PublicURL); err != nil {
				zap.L().Warn("failed to save server url", zap.Error(err))
			}
		}

		srv := server.New(s, server.Options{
			Port:           cfg.Server.Port,
			TokenFile:      getTokenFilePath(),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			BeaconRPS:      cfg.Server.BeaconRPS,
			BeaconBurst:    cfg.Server.BeaconBurst,
			Tiers:          tierThresholds(),
		})
		return srv.Run(ctx, true)
	})
}
