package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/logger"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// Default read retry constants.
const (
	defaultAttempts = 3
	defaultBackoff  = 100 * time.Millisecond
)

// Retrying wraps a Store and retries read operations and idempotent upserts a
// bounded number of times with a fixed backoff. Other writes pass through
// untouched. Exhausted retries are reported as ErrUnavailable.
type Retrying struct {
	Store

	attempts int
	backoff  time.Duration
	clock    clockwork.Clock
	log      logger.Logger
}

// NewRetrying wraps inner.
func NewRetrying(inner Store, opts ...RetryOption) *Retrying {
	r := &Retrying{
		Store:    inner,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		clock:    clockwork.NewRealClock(),
		log:      logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRetryClock sets the clock used for backoff pauses.
func WithRetryClock(c clockwork.Clock) RetryOption {
	return func(r *Retrying) {
		if c != nil {
			r.clock = c
		}
	}
}

func retry[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	var (
		out     T
		lastErr error
	)
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return out, lastErr
		}
		if attempt == r.attempts {
			break
		}
		metrics.RecordStoreReadRetry()
		r.log.Warn(ctx, "store read failed, retrying",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Error(lastErr))
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-r.clock.After(r.backoff):
		}
	}
	metrics.RecordErrorByComponent("repository", "retries_exhausted")
	var zero T
	if errors.Is(lastErr, ErrUnavailable) {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, lastErr)
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicate) &&
		!errors.Is(err, ErrInvalidPatch) && !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func retryExec(ctx context.Context, r *Retrying, op string, fn func() error) error {
	_, err := retry(ctx, r, op, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Athletes implements Reader.
func (r *Retrying) Athletes(ctx context.Context, f AthleteFilter) ([]model.Athlete, error) {
	return retry(ctx, r, "athletes", func() ([]model.Athlete, error) { return r.Store.Athletes(ctx, f) })
}

// Events implements Reader.
func (r *Retrying) Events(ctx context.Context, f EventFilter) ([]model.Event, error) {
	return retry(ctx, r, "events", func() ([]model.Event, error) { return r.Store.Events(ctx, f) })
}

// Results implements Reader.
func (r *Retrying) Results(ctx context.Context, f ResultFilter) ([]model.Result, error) {
	return retry(ctx, r, "results", func() ([]model.Result, error) { return r.Store.Results(ctx, f) })
}

// Rankings implements Reader.
func (r *Retrying) Rankings(ctx context.Context, f RankingFilter) ([]model.Ranking, error) {
	return retry(ctx, r, "rankings", func() ([]model.Ranking, error) { return r.Store.Rankings(ctx, f) })
}

// Registrations implements Reader.
func (r *Retrying) Registrations(ctx context.Context, eventID int64) ([]model.Registration, error) {
	return retry(ctx, r, "registrations", func() ([]model.Registration, error) { return r.Store.Registrations(ctx, eventID) })
}

// Leagues implements Reader.
func (r *Retrying) Leagues(ctx context.Context, f LeagueFilter) ([]model.League, error) {
	return retry(ctx, r, "leagues", func() ([]model.League, error) { return r.Store.Leagues(ctx, f) })
}

// Members implements Reader.
func (r *Retrying) Members(ctx context.Context, f MemberFilter) ([]model.LeagueMember, error) {
	return retry(ctx, r, "members", func() ([]model.LeagueMember, error) { return r.Store.Members(ctx, f) })
}

// Teams implements Reader.
func (r *Retrying) Teams(ctx context.Context, f TeamFilter) ([]model.Team, error) {
	return retry(ctx, r, "teams", func() ([]model.Team, error) { return r.Store.Teams(ctx, f) })
}

// RosterIntervals implements Reader.
func (r *Retrying) RosterIntervals(ctx context.Context, f RosterFilter) ([]model.RosterInterval, error) {
	return retry(ctx, r, "roster_intervals", func() ([]model.RosterInterval, error) { return r.Store.RosterIntervals(ctx, f) })
}

// Captaincies implements Reader.
func (r *Retrying) Captaincies(ctx context.Context, f CaptaincyFilter) ([]model.CaptaincyInterval, error) {
	return retry(ctx, r, "captaincy_intervals", func() ([]model.CaptaincyInterval, error) { return r.Store.Captaincies(ctx, f) })
}

// Transfers implements Reader.
func (r *Retrying) Transfers(ctx context.Context, f TransferFilter) ([]model.Transfer, error) {
	return retry(ctx, r, "transfers", func() ([]model.Transfer, error) { return r.Store.Transfers(ctx, f) })
}

// UpsertAthletes retries the idempotent upsert.
func (r *Retrying) UpsertAthletes(ctx context.Context, athletes []model.Athlete) error {
	return retryExec(ctx, r, "upsert_athletes", func() error { return r.Store.UpsertAthletes(ctx, athletes) })
}

// UpsertEvents retries the idempotent upsert.
func (r *Retrying) UpsertEvents(ctx context.Context, events []model.Event) error {
	return retryExec(ctx, r, "upsert_events", func() error { return r.Store.UpsertEvents(ctx, events) })
}

// UpsertResults retries the idempotent upsert.
func (r *Retrying) UpsertResults(ctx context.Context, results []model.Result) error {
	return retryExec(ctx, r, "upsert_results", func() error { return r.Store.UpsertResults(ctx, results) })
}

// UpsertRankings retries the idempotent upsert.
func (r *Retrying) UpsertRankings(ctx context.Context, rankings []model.Ranking) error {
	return retryExec(ctx, r, "upsert_rankings", func() error { return r.Store.UpsertRankings(ctx, rankings) })
}

// UpsertRegistrations retries the idempotent upsert.
func (r *Retrying) UpsertRegistrations(ctx context.Context, regs []model.Registration) error {
	return retryExec(ctx, r, "upsert_registrations", func() error { return r.Store.UpsertRegistrations(ctx, regs) })
}
