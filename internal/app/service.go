// Package service provides the fantasy league core used by the HTTP API and
// the sync jobs: leagues, teams, roster and captain mutations, transfers and
// score aggregation over a repository.Store.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/scoring"
	"github.com/okian/fantasy-climbing/pkg/logger"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// Defaults applied to new leagues when the request leaves them unset.
const (
	DefaultTeamSize          = 6
	DefaultTransfersPerEvent = 1
	DefaultHistoryOffset     = time.Second
)

// Defaults holds league creation defaults.
type Defaults struct {
	TeamSize          int
	TransfersPerEvent int
	CaptainMultiplier float64
}

// Service implements the fantasy league operations.
type Service struct {
	mu      sync.RWMutex
	started bool

	store  repository.Store
	clock  clockwork.Clock
	logger logger.Logger
	table  scoring.Table

	defaults      Defaults
	historyOffset time.Duration
	concurrency   int
}

// Option configures a Service.
type Option func(*Service)

// WithStore sets the storage backend.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithClock sets the time source.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScoringTable replaces the IFSC points table.
func WithScoringTable(t scoring.Table) Option {
	return func(s *Service) {
		if len(t.Entries()) > 0 {
			s.table = t
		}
	}
}

// WithHistoryOffset sets how far after an anchor event transfer history is written.
func WithHistoryOffset(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.historyOffset = d
		}
	}
}

// WithDefaults overrides league creation defaults. Zero fields keep the built-in value.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		if d.TeamSize > 0 {
			s.defaults.TeamSize = d.TeamSize
		}
		if d.TransfersPerEvent > 0 {
			s.defaults.TransfersPerEvent = d.TransfersPerEvent
		}
		if d.CaptainMultiplier > 1 {
			s.defaults.CaptainMultiplier = d.CaptainMultiplier
		}
	}
}

// WithLeaderboardConcurrency bounds how many teams are scored in parallel.
func WithLeaderboardConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New constructs a Service. A store must be provided through WithStore before Start.
func New(opts ...Option) *Service {
	s := &Service{
		clock: clockwork.NewRealClock(),
		table: scoring.IFSC(),
		defaults: Defaults{
			TeamSize:          DefaultTeamSize,
			TransfersPerEvent: DefaultTransfersPerEvent,
			CaptainMultiplier: scoring.DefaultCaptainMultiplier,
		},
		historyOffset: DefaultHistoryOffset,
		concurrency:   8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrNoStore is returned by Start when no store was configured.
var ErrNoStore = errors.New("service: no store configured")

// Start checks the store is reachable and readies the service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.Ping(ctx); err != nil {
		return fault.Wrap("start", fault.ErrStorage, err)
	}
	s.started = true
	s.logger.Info(ctx, "fantasy league service started",
		logger.Int("defaultTeamSize", s.defaults.TeamSize),
		logger.Int("defaultTransfersPerEvent", s.defaults.TransfersPerEvent),
		logger.Float64("defaultCaptainMultiplier", s.defaults.CaptainMultiplier),
		logger.Duration("historyOffset", s.historyOffset),
	)
	return nil
}

// Stop marks the service stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "fantasy league service stopped")
}

// Store exposes the underlying store for ingestion jobs sharing it.
func (s *Service) Store() repository.Store { return s.store }

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.Ping(ctx); err != nil {
		return fault.Wrap("ping", fault.ErrStorage, err)
	}
	return nil
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

// now returns the current instant at the precision kept by the store.
func (s *Service) now() time.Time {
	return normalize(s.clock.Now())
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// scorer builds the scoring function for a league's captain multiplier.
func (s *Service) scorer(multiplier float64) *scoring.Scorer {
	if multiplier <= 1 {
		multiplier = s.defaults.CaptainMultiplier
	}
	return scoring.NewScorer(scoring.WithTable(s.table), scoring.WithCaptainMultiplier(multiplier))
}

// storageErr classifies a repository failure. Domain errors pass through.
func storageErr(op string, err error) error {
	return fault.Wrap(op, fault.ErrStorage, err)
}

// reject records a validation rejection and returns err.
func (s *Service) reject(ctx context.Context, op string, err error) error {
	if fe, ok := fault.As(err); ok && !errors.Is(fe, fault.ErrUpstreamUnavailable) {
		metrics.RecordMutationRejected(op, fe.Code())
		s.log().Warn(ctx, "mutation rejected",
			logger.String("operation", op),
			logger.String("reason", fe.Code()),
			logger.String("detail", fe.Error()),
		)
		return err
	}
	metrics.RecordErrorByComponent("service", op)
	s.log().Error(ctx, "mutation failed", logger.String("operation", op), logger.Error(err))
	return err
}
