// Package service holds the dashboard's use cases. Each mutation is a
// short sequence of store calls plus its side effects: key counters,
// activity entries and the key reset at the end of a rotation.
//
// Store failures are logged and returned. Nothing is retried and nothing
// is rolled back; a failed step leaves whatever the earlier steps wrote.
package service

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/valu/keyrotation/internal/repository"
)

// ErrConflict rejects a request that clashes with existing state.
var ErrConflict = errors.New("conflict")

type Service struct {
	store repository.Store
	log   *zerolog.Logger
	now   func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand sets the source synthetic key ages are drawn from.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// WithSeed is WithRand with a fixed seed, for reproducible demo data.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed)))
}

func New(store repository.Store, log *zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log,
		now:   time.Now,
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) intN(n int) int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.IntN(n)
}
