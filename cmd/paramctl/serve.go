package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/paramctl/internal/config"
	"github.com/danmuck/paramctl/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the parameter system and serve the command channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			logger := log.Logger.With().Str("service", "paramctl").Logger()

			d, err := openDaemon(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := d.close(); err != nil {
					logger.Warn().Err(err).Msg("shutdown")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.run(ctx)
		},
	}
}
