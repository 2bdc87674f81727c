package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/valu/keyrotation/internal/api"
	"github.com/valu/keyrotation/internal/config"
	"github.com/valu/keyrotation/internal/syncer"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background store sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", "", "address to listen on (LISTEN_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return err
	}
	defer st.Close()

	sched, err := syncer.New(cfg.SyncSchedule, st, &log.Logger)
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.SetupRoutes(newService(st, cfg), st.tiers, &log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to start server")
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	sched.Stop(shutdownCtx)
	return nil
}
