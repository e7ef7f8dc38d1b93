package service_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/timeline"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	owner    = "user-owner"
	stranger = "user-stranger"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture is a service over an in-memory store seeded with women's boulder
// athletes, 2026 rankings and three upcoming events ten days apart.
type fixture struct {
	ctx    context.Context
	cancel context.CancelFunc
	store  *repository.MemoryStore
	clock  *clockwork.FakeClock
	svc    *service.Service
	e1     model.Event
	e2     model.Event
	e3     model.Event
}

func newFixture(opts ...service.Option) *fixture {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{ctx: ctx, cancel: cancel}
	f.store = repository.NewMemoryStore(ctx)
	f.clock = clockwork.NewFakeClockAt(t0)
	base := []service.Option{
		service.WithStore(f.store),
		service.WithClock(f.clock),
		service.WithLogger(logger.Get()),
	}
	f.svc = service.New(append(base, opts...)...)

	athletes := []model.Athlete{
		{ID: 1, Name: "Janja Garnbret", Country: "SLO", Gender: model.GenderWomen},
		{ID: 2, Name: "Oriane Bertone", Country: "FRA", Gender: model.GenderWomen},
		{ID: 3, Name: "Brooke Raboutou", Country: "USA", Gender: model.GenderWomen},
		{ID: 4, Name: "Miho Nonaka", Country: "JPN", Gender: model.GenderWomen},
		{ID: 5, Name: "Camilla Moroni", Country: "ITA", Gender: model.GenderWomen},
		{ID: 6, Name: "Natalia Grossman", Country: "USA", Gender: model.GenderWomen},
	}
	must(f.store.UpsertAthletes(ctx, athletes))
	rank := func(id int64, r int) model.Ranking {
		return model.Ranking{Season: 2026, Discipline: model.DisciplineBoulder, Gender: model.GenderWomen, AthleteID: id, Rank: r}
	}
	must(f.store.UpsertRankings(ctx, []model.Ranking{rank(1, 3), rank(2, 20), rank(3, 2), rank(4, 40), rank(6, 1)}))

	f.e1 = event(11, "Keqiao", t0.Add(10*24*time.Hour))
	f.e2 = event(21, "Salt Lake City", t0.Add(20*24*time.Hour))
	f.e3 = event(31, "Innsbruck", t0.Add(30*24*time.Hour))
	must(f.store.UpsertEvents(ctx, []model.Event{f.e1, f.e2, f.e3}))
	return f
}

func (f *fixture) close() { f.cancel() }

func event(id int64, name string, date time.Time) model.Event {
	return model.Event{
		ID:         id,
		Name:       name,
		Date:       date,
		Discipline: model.DisciplineBoulder,
		Gender:     model.GenderWomen,
		Status:     model.EventUpcoming,
	}
}

// setStatus stores e with a new status and returns it.
func (f *fixture) setStatus(e model.Event, status model.EventStatus) model.Event {
	e.Status = status
	must(f.store.UpsertEvents(f.ctx, []model.Event{e}))
	return e
}

func (f *fixture) results(eventID int64, ranks map[int64]int) {
	rows := make([]model.Result, 0, len(ranks))
	for athlete, r := range ranks {
		rows = append(rows, model.Result{EventID: eventID, AthleteID: athlete, Rank: r})
	}
	must(f.store.UpsertResults(f.ctx, rows))
}

// league creates a women's boulder league owned by owner with a team for owner.
func (f *fixture) league(in service.NewLeague) (model.League, model.Team) {
	in.Name = "Crimpers"
	in.Gender = model.GenderWomen
	in.Discipline = model.DisciplineBoulder
	l, err := f.svc.CreateLeague(f.ctx, owner, in)
	must(err)
	t, err := f.svc.CreateTeam(f.ctx, owner, l.ID, "Sloper Squad")
	must(err)
	return l, t
}

func (f *fixture) snapshotAt(teamID uuid.UUID, at time.Time) timeline.Snapshot {
	rosters, err := f.store.RosterIntervals(f.ctx, repository.RosterFilter{TeamIDs: []uuid.UUID{teamID}})
	must(err)
	caps, err := f.store.Captaincies(f.ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{teamID}})
	must(err)
	return timeline.ActiveRosterAt(rosters, caps, at)
}

func (f *fixture) current(teamID uuid.UUID) timeline.Snapshot {
	rosters, err := f.store.RosterIntervals(f.ctx, repository.RosterFilter{TeamIDs: []uuid.UUID{teamID}})
	must(err)
	caps, err := f.store.Captaincies(f.ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{teamID}})
	must(err)
	return timeline.Current(rosters, caps)
}

func roster(captain int64, others ...int64) []service.RosterEntry {
	out := []service.RosterEntry{{AthleteID: captain, IsCaptain: true}}
	for _, id := range others {
		out = append(out, service.RosterEntry{AthleteID: id})
	}
	return out
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func must(err error) {
	if err != nil {
		panic(err)
	}
}
