package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/valu/keyrotation/internal/config"
	"github.com/valu/keyrotation/internal/repository"
	"github.com/valu/keyrotation/internal/service"
)

type stores struct {
	primary  *repository.SQLStore
	fallback *repository.SQLStore
	tiers    *repository.Tiered
	// primaryReady is set once the primary schema is known to exist.
	primaryReady bool
}

// openStores opens both databases. An unreachable primary is only a
// warning: the tiered store then serves from the fallback until a sync
// succeeds.
func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	fallback, err := repository.OpenSQLite(ctx, cfg.FallbackPath)
	if err != nil {
		return nil, err
	}
	if err := fallback.Migrate(ctx); err != nil {
		fallback.Close()
		return nil, fmt.Errorf("fallback store: %w", err)
	}

	primary, err := repository.OpenPostgres(cfg.DBURL)
	if err != nil {
		fallback.Close()
		return nil, err
	}
	s := &stores{primary: primary, fallback: fallback}
	if err := s.migratePrimary(ctx); err != nil {
		log.Warn().Err(err).Msg("Primary store not ready, serving from fallback")
	} else {
		log.Info().Msg("Connected to the DB")
	}

	s.tiers, err = repository.NewTiered(ctx, primary, fallback, &log.Logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stores) migratePrimary(ctx context.Context) error {
	if s.primaryReady {
		return nil
	}
	if err := s.primary.Migrate(ctx); err != nil {
		return fmt.Errorf("primary store: %w", err)
	}
	s.primaryReady = true
	return nil
}

// Sync creates the primary schema if startup could not, then replays the
// fallback journal.
func (s *stores) Sync(ctx context.Context) (int, error) {
	if err := s.migratePrimary(ctx); err != nil {
		return 0, err
	}
	return s.tiers.Sync(ctx)
}

func (s *stores) Close() {
	if err := s.primary.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close primary store")
	}
	if err := s.fallback.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close fallback store")
	}
}

func newService(st *stores, cfg config.Config) *service.Service {
	var opts []service.Option
	if cfg.HasSeed {
		opts = append(opts, service.WithSeed(cfg.Seed))
	}
	return service.New(st.tiers, &log.Logger, opts...)
}
