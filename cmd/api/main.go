package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/valu/keyrotation/internal/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	log.Logger = log.With().Caller().Logger()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:           "keyrotation",
		Short:         "API key rotation dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				log.Warn().Err(err).Msg("Error loading .env file")
			}
			loaded, err := config.FromEnv()
			if err != nil {
				log.Error().Err(err).Msg("Invalid configuration")
				return err
			}
			applyFlags(cmd, &loaded, cfg)
			cfg = loaded
			zerolog.SetGlobalLevel(cfg.LogLevel)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.FallbackPath, "fallback", "", "path of the local fallback database (FALLBACK_PATH)")
	flags.Uint64Var(&cfg.Seed, "seed", 0, "seed for synthetic key ages (SEED)")

	root.AddCommand(
		newServeCmd(&cfg),
		newSeedCmd(&cfg),
		newSyncCmd(&cfg),
		newMigrateCmd(&cfg),
	)
	return root
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, dst *config.Config, flagged config.Config) {
	if cmd.Flags().Changed("fallback") {
		dst.FallbackPath = flagged.FallbackPath
	}
	if cmd.Flags().Changed("seed") {
		dst.Seed = flagged.Seed
		dst.HasSeed = true
	}
	if cmd.Flags().Changed("listen") {
		dst.ListenAddr = flagged.ListenAddr
	}
}
