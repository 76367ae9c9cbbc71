package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	emcee "github.com/web-emcee/emcee"
)

func init() {
	command := &cobra.Command{
		Use:   "serve",
		Short: "serve emcee server",
		Long:  `serve emcee media server`,
		Run:   emcee.Service.ServeCommand,
	}

	configs := []Config{
		emcee.Service.ServerConfig,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		emcee.Service.Preflight()
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
