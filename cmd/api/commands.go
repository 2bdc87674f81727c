package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/valu/keyrotation/internal/config"
)

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var tenant string
	var names []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Connect a demo set of platforms for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, *cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			platforms, err := newService(st, *cfg).Seed(ctx, tenant, names)
			if err != nil {
				log.Error().Err(err).Int("added", len(platforms)).Msg("Seeding stopped")
				return err
			}
			log.Info().Str("tenant", tenant).Int("platforms", len(platforms)).Msg("Seeded demo data")
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "demo", "tenant to seed")
	cmd.Flags().StringSliceVar(&names, "platform", nil, "platform names (default: built-in demo list)")
	return cmd
}

func newSyncCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay writes held by the fallback store into the primary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, *cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Sync(ctx)
			if err != nil {
				log.Error().Err(err).Int("replayed", n).Msg("Sync failed")
				return err
			}
			log.Info().Int("replayed", n).Msg("Sync complete")
			return nil
		},
	}
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema in both stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, *cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			// openStores only warns about the primary.
			if err := st.migratePrimary(ctx); err != nil {
				log.Error().Err(err).Msg("Migration failed")
				return err
			}
			log.Info().Msg("Schema up to date")
			return nil
		},
	}
}
