// Package repository is the storage collaborator of the fantasy league: typed
// table operations (filtered select, insert, update-by-filter, delete-by-filter,
// upsert) plus a transaction boundary.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// Reader is the read side of the store. Selects return an empty slice, never
// ErrNotFound, when nothing matches.
type Reader interface {
	Athletes(ctx context.Context, f AthleteFilter) ([]model.Athlete, error)
	Events(ctx context.Context, f EventFilter) ([]model.Event, error)
	Results(ctx context.Context, f ResultFilter) ([]model.Result, error)
	Rankings(ctx context.Context, f RankingFilter) ([]model.Ranking, error)
	Registrations(ctx context.Context, eventID int64) ([]model.Registration, error)

	Leagues(ctx context.Context, f LeagueFilter) ([]model.League, error)
	Members(ctx context.Context, f MemberFilter) ([]model.LeagueMember, error)
	Teams(ctx context.Context, f TeamFilter) ([]model.Team, error)

	RosterIntervals(ctx context.Context, f RosterFilter) ([]model.RosterInterval, error)
	Captaincies(ctx context.Context, f CaptaincyFilter) ([]model.CaptaincyInterval, error)
	Transfers(ctx context.Context, f TransferFilter) ([]model.Transfer, error)
}

// Writer is the write side of the store.
type Writer interface {
	UpsertAthletes(ctx context.Context, athletes []model.Athlete) error
	UpsertEvents(ctx context.Context, events []model.Event) error
	UpsertResults(ctx context.Context, results []model.Result) error
	UpsertRankings(ctx context.Context, rankings []model.Ranking) error
	UpsertRegistrations(ctx context.Context, regs []model.Registration) error

	// InsertLeague stores the league and its event associations.
	InsertLeague(ctx context.Context, l model.League) error
	UpdateLeague(ctx context.Context, id uuid.UUID, p LeaguePatch) error
	// DeleteLeague removes the league with its members, teams, intervals and transfers.
	DeleteLeague(ctx context.Context, id uuid.UUID) error
	// InsertMember returns ErrDuplicate when the user already belongs to the league.
	InsertMember(ctx context.Context, m model.LeagueMember) error
	// InsertTeam returns ErrDuplicate when the user already owns a team in the league.
	InsertTeam(ctx context.Context, t model.Team) error

	InsertRosterIntervals(ctx context.Context, rows []model.RosterInterval) error
	UpdateRosterIntervals(ctx context.Context, f RosterFilter, p RosterPatch) (int, error)
	DeleteRosterIntervals(ctx context.Context, f RosterFilter) (int, error)

	InsertCaptaincy(ctx context.Context, c model.CaptaincyInterval) error
	UpdateCaptaincies(ctx context.Context, f CaptaincyFilter, p CaptaincyPatch) (int, error)
	DeleteCaptaincies(ctx context.Context, f CaptaincyFilter) (int, error)

	InsertTransfer(ctx context.Context, t model.Transfer) error
	UpdateTransfers(ctx context.Context, f TransferFilter, p TransferPatch) (int, error)
	DeleteTransfers(ctx context.Context, f TransferFilter) (int, error)
}

// Store provides read/write access to league state.
type Store interface {
	Reader
	Writer

	// WithTx runs fn inside one commit/rollback unit. fn must use the Store it
	// is given; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
