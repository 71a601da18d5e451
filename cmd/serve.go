package cmd

import (
	"context"

	"github.com/alapierre/go-eims-client/eims/config"
	"github.com/alapierre/go-eims-client/eims/webhook"
	"github.com/spf13/cobra"
)

func serveCmd(cfg func() *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry callback endpoints",
		Long: `Serve the registry callback endpoints.

  POST /eims/bulk-callback                 bulk registration results
  POST /eims/notification/email-callback   notification delivery reports
  GET  /healthz

Stale bulk mappings are swept every EIMS_SWEEP_INTERVAL when it is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Listen
				}
				if a.cfg.SweepInterval > 0 {
					go a.reconciler.Run(ctx, a.cfg.SweepInterval, a.cfg.MappingTTL)
				}
				logger.Infof("bulk callback url announced to the registry: %s", a.cfg.PublicCallbackURL())
				return webhook.NewServer(a.reconciler, a.store).Run(ctx, addr)
			})(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, defaults to EIMS_LISTEN")
	return cmd
}
