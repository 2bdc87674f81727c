// Package syncer periodically replays writes the fallback store took
// while the primary was down.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Target is the store being synchronized, normally *repository.Tiered.
type Target interface {
	Sync(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	target  Target
	log     *zerolog.Logger
	timeout time.Duration
}

// New schedules target.Sync on a cron schedule such as "@every 30s" or
// "*/5 * * * *". A run still in progress makes the next one skip.
func New(schedule string, target Target, log *zerolog.Logger) (*Scheduler, error) {
	cl := cronLogger{log}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		target:  target,
		log:     log,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Sync scheduler started")
}

// Stop stops scheduling and waits for a running sync, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("Sync still running at shutdown")
	}
}

// RunOnce syncs immediately and returns the number of replayed writes.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.target.Sync(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int("replayed", n).Msg("Store sync failed")
		return n, err
	}
	if n > 0 {
		s.log.Info().Int("replayed", n).Msg("Store sync complete")
	}
	return n, nil
}

// cronLogger routes cron's own logging into zerolog.
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
