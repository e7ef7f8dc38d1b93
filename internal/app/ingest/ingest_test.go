package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/app/ingest"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/scoring"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errUpstream = errors.New("upstream down")

// fakeSource serves canned provider payloads.
type fakeSource struct {
	mu            sync.Mutex
	season        provider.Season
	seasonErr     error
	events        map[int64]provider.FullEvent
	results       map[[2]int64]provider.Results
	registrations map[int64][]provider.Registration
	rankings      map[int][]provider.RankingEntry
	failEvents    map[int64]bool
	calls         map[string]int
}

func (f *fakeSource) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeSource) Season(_ context.Context, _ int) (provider.Season, error) {
	f.hit("season")
	return f.season, f.seasonErr
}

func (f *fakeSource) Event(_ context.Context, id int64) (provider.FullEvent, error) {
	f.hit("event")
	if f.failEvents[id] {
		return provider.FullEvent{}, errUpstream
	}
	e, ok := f.events[id]
	if !ok {
		return provider.FullEvent{}, fmt.Errorf("%w: 404", provider.ErrUnexpectedStatus)
	}
	return e, nil
}

func (f *fakeSource) Results(_ context.Context, eventID, dcatID int64) (provider.Results, error) {
	f.hit("results")
	return f.results[[2]int64{eventID, dcatID}], nil
}

func (f *fakeSource) Registrations(_ context.Context, eventID int64) ([]provider.Registration, error) {
	f.hit("registrations")
	if f.failEvents[eventID] {
		return nil, errUpstream
	}
	return f.registrations[eventID], nil
}

func (f *fakeSource) WorldRanking(_ context.Context, cuwrID, _ int) ([]provider.RankingEntry, error) {
	f.hit("ranking")
	if cuwrID == 2 {
		return nil, errUpstream
	}
	return f.rankings[cuwrID], nil
}

func rank(r int) *int { return &r }

// newSource describes a season with two World Cups (1405 boulder, finished
// for women; 1406 lead) and one continental cup that must be filtered out.
func newSource() *fakeSource {
	return &fakeSource{
		season: provider.Season{
			Name: "2025",
			Leagues: []provider.League{
				{Name: "World Cups and World Championships", URL: "/api/v1/season_leagues/431"},
				{Name: "European Cup", URL: "/api/v1/season_leagues/432"},
			},
			Events: []provider.EventInfo{
				{Event: "Keqiao", EventID: 1405, LeagueSeasonID: 431, Disciplines: []provider.Discipline{{Kind: "boulder"}}},
				{Event: "Chamonix", EventID: 1406, LeagueSeasonID: 431, Disciplines: []provider.Discipline{{Kind: "lead"}}},
				{Event: "Soure", EventID: 1500, LeagueSeasonID: 432, Disciplines: []provider.Discipline{{Kind: "boulder"}}},
			},
		},
		events: map[int64]provider.FullEvent{
			1405: {
				ID: 1405, Name: "Keqiao", StartsAt: "2025-04-18 00:00:00 UTC",
				DCats: []provider.Category{
					{DcatID: 3, DcatName: "BOULDER Men", DisciplineKind: "boulder", CategoryName: "Men", Status: "active"},
					{DcatID: 7, DcatName: "BOULDER Women", DisciplineKind: "boulder", CategoryName: "Women", Status: "finished"},
				},
			},
			1406: {
				ID: 1406, Name: "Chamonix", StartsAt: "2025-07-10 00:00:00 UTC",
				DCats: []provider.Category{
					{DcatID: 1, DcatName: "LEAD Men", DisciplineKind: "lead", CategoryName: "Men", Status: "not_started"},
					{DcatID: 2, DcatName: "SPEED Men", DisciplineKind: "speed", CategoryName: "Men", Status: "not_started"},
				},
			},
		},
		results: map[[2]int64]provider.Results{
			{1405, 7}: {
				Event: "Keqiao", Dcat: "BOULDER Women", Status: "finished",
				Ranking: []provider.AthleteResult{
					{AthleteID: 100, Rank: rank(1), Firstname: "Janja", Lastname: "Garnbret", Country: "SLO"},
					{AthleteID: 101, Rank: rank(2), Firstname: "Oriane", Lastname: "Bertone", Country: "FRA"},
					{AthleteID: 102, Rank: nil, Firstname: "Did", Lastname: "Not Start", Country: "GER"},
				},
			},
		},
		registrations: map[int64][]provider.Registration{
			1405: {
				{AthleteID: 100, Firstname: "Janja", Lastname: "Garnbret", Country: "SLO", Gender: 1},
				{AthleteID: 200, Firstname: "Toby", Lastname: "Roberts", Country: "GBR", Gender: 0},
			},
		},
		rankings: map[int][]provider.RankingEntry{
			7: {
				{Rank: 1, AthleteID: 100, Firstname: "Janja", Lastname: "Garnbret", Country: "SLO"},
				{Rank: 2, AthleteID: 103, Name: "Natalia Grossman", Country: "USA"},
			},
		},
		failEvents: map[int64]bool{},
		calls:      map[string]int{},
	}
}

func newSyncer(src provider.Source, store repository.Store, opts ...ingest.Option) *ingest.Syncer {
	base := []ingest.Option{ingest.WithLogger(logger.Get()), ingest.WithConcurrency(2)}
	return ingest.New(src, store, append(base, opts...)...)
}

func TestSyncEvents(t *testing.T) {
	Convey("Given a season with World Cup and continental events", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		store := repository.NewMemoryStore(ctx)
		src := newSource()

		Convey("When events are synced", func() {
			rep := newSyncer(src, store).SyncEvents(ctx, 2025)

			Convey("Then only World Cup categories of known disciplines are stored", func() {
				So(rep.OK(), ShouldBeTrue)
				So(rep.Count(ingest.KindEvents), ShouldEqual, 2)
				So(rep.Count(ingest.KindCategories), ShouldEqual, 4)

				events, err := store.Events(ctx, repository.EventFilter{})
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 4)

				men, err := store.Events(ctx, repository.EventFilter{IDs: []int64{14050}})
				So(err, ShouldBeNil)
				So(men, ShouldHaveLength, 1)
				So(men[0].Name, ShouldEqual, "Keqiao - BOULDER Men")
				So(men[0].Gender, ShouldEqual, model.GenderMen)
				So(men[0].Status, ShouldEqual, model.EventInProgress)
				So(men[0].Date.Year(), ShouldEqual, 2025)

				women, err := store.Events(ctx, repository.EventFilter{IDs: []int64{14051}})
				So(err, ShouldBeNil)
				So(women[0].Status, ShouldEqual, model.EventCompleted)

				continental, err := store.Events(ctx, repository.EventFilter{IDs: []int64{15000, 15001}})
				So(err, ShouldBeNil)
				So(continental, ShouldBeEmpty)
			})

			Convey("Then a later sync never regresses a status", func() {
				e := src.events[1405]
				e.DCats[1].Status = "not_started"
				src.events[1405] = e

				rep := newSyncer(src, store).SyncEvents(ctx, 2025)
				So(rep.OK(), ShouldBeTrue)
				women, err := store.Events(ctx, repository.EventFilter{IDs: []int64{14051}})
				So(err, ShouldBeNil)
				So(women[0].Status, ShouldEqual, model.EventCompleted)
			})
		})

		Convey("When a discipline filter is applied", func() {
			rep := newSyncer(src, store, ingest.WithDisciplines(model.DisciplineLead)).SyncEvents(ctx, 2025)
			So(rep.OK(), ShouldBeTrue)
			So(rep.Count(ingest.KindEvents), ShouldEqual, 1)
			So(rep.Count(ingest.KindCategories), ShouldEqual, 1)

			events, err := store.Events(ctx, repository.EventFilter{})
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 1)
			So(events[0].ID, ShouldEqual, 14060)
		})

		Convey("When all leagues are included", func() {
			src.events[1500] = provider.FullEvent{
				ID: 1500, Name: "Soure", StartsAt: "2025-05-01",
				DCats: []provider.Category{{DcatID: 3, DcatName: "BOULDER Men", DisciplineKind: "boulder", CategoryName: "Men"}},
			}
			rep := newSyncer(src, store, ingest.WithAllLeagues()).SyncEvents(ctx, 2025)
			So(rep.OK(), ShouldBeTrue)
			So(rep.Count(ingest.KindEvents), ShouldEqual, 3)
		})

		Convey("When one event fails upstream", func() {
			src.failEvents[1406] = true
			rep := newSyncer(src, store).SyncEvents(ctx, 2025)

			Convey("Then the others are still stored and the failure is reported", func() {
				So(rep.OK(), ShouldBeFalse)
				So(rep.Errors, ShouldHaveLength, 1)
				So(rep.Errors[0], ShouldContainSubstring, "1406")
				So(rep.Count(ingest.KindEvents), ShouldEqual, 1)
			})
		})

		Convey("When the season itself cannot be fetched", func() {
			src.seasonErr = errUpstream
			rep := newSyncer(src, store).SyncEvents(ctx, 2025)
			So(rep.Errors, ShouldHaveLength, 1)
			So(rep.Counts, ShouldBeEmpty)
			So(src.calls["event"], ShouldEqual, 0)
		})
	})
}

func TestSyncResults(t *testing.T) {
	Convey("Given a provider event with one finished category", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		store := repository.NewMemoryStore(ctx)
		src := newSource()
		table, err := scoring.NewTable([]int{1000, 805}, 5)
		So(err, ShouldBeNil)
		syncer := newSyncer(src, store, ingest.WithScoringTable(table))

		Convey("When its results are synced", func() {
			rep := syncer.SyncEventResults(ctx, 1405)

			Convey("Then placed athletes and results are stored with derived scores", func() {
				So(rep.OK(), ShouldBeTrue)
				So(rep.Count(ingest.KindCategories), ShouldEqual, 1)
				So(rep.Count(ingest.KindAthletes), ShouldEqual, 2)
				So(rep.Count(ingest.KindResults), ShouldEqual, 2)

				results, err := store.Results(ctx, repository.ResultFilter{EventIDs: []int64{14051}})
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				scores := map[int64]int{}
				for _, r := range results {
					scores[r.AthleteID] = r.Score
				}
				So(scores[100], ShouldEqual, 1000)
				So(scores[101], ShouldEqual, 805)

				athletes, err := store.Athletes(ctx, repository.AthleteFilter{IDs: []int64{100, 102}})
				So(err, ShouldBeNil)
				So(athletes, ShouldHaveLength, 1)
				So(athletes[0].Name, ShouldEqual, "Janja Garnbret")
				So(athletes[0].Gender, ShouldEqual, model.GenderWomen)
			})

			Convey("Then the category event is completed and the unfinished one untouched", func() {
				events, err := store.Events(ctx, repository.EventFilter{IDs: []int64{14050, 14051}})
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].ID, ShouldEqual, 14051)
				So(events[0].Status, ShouldEqual, model.EventCompleted)
				So(src.calls["results"], ShouldEqual, 1)
			})
		})

		Convey("When the whole season's results are synced", func() {
			rep := syncer.SyncSeasonResults(ctx, 2025)
			So(rep.OK(), ShouldBeTrue)
			So(rep.Count(ingest.KindEvents), ShouldEqual, 2)
			So(rep.Count(ingest.KindResults), ShouldEqual, 2)
		})

		Convey("When the event is unknown upstream", func() {
			rep := syncer.SyncEventResults(ctx, 9999)
			So(rep.OK(), ShouldBeFalse)
			So(rep.Counts, ShouldBeEmpty)
		})
	})
}

func TestSyncRegistrations(t *testing.T) {
	Convey("Given registrations for one World Cup event", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		store := repository.NewMemoryStore(ctx)
		src := newSource()

		rep := newSyncer(src, store).SyncRegistrations(ctx, 2025)

		Convey("Then athletes are stored and linked to the event of their gender", func() {
			So(rep.OK(), ShouldBeTrue)
			So(rep.Count(ingest.KindEvents), ShouldEqual, 2)
			So(rep.Count(ingest.KindRegistrations), ShouldEqual, 2)

			women, err := store.Registrations(ctx, 14051)
			So(err, ShouldBeNil)
			So(women, ShouldResemble, []model.Registration{{EventID: 14051, AthleteID: 100}})
			men, err := store.Registrations(ctx, 14050)
			So(err, ShouldBeNil)
			So(men, ShouldResemble, []model.Registration{{EventID: 14050, AthleteID: 200}})

			athletes, err := store.Athletes(ctx, repository.AthleteFilter{Gender: model.GenderMen})
			So(err, ShouldBeNil)
			So(athletes, ShouldHaveLength, 1)
			So(athletes[0].Name, ShouldEqual, "Toby Roberts")
		})
	})
}

func TestSyncRankings(t *testing.T) {
	Convey("Given world rankings upstream", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		store := repository.NewMemoryStore(ctx)
		src := newSource()
		syncer := newSyncer(src, store)

		Convey("When one category is synced", func() {
			rep := syncer.SyncRankings(ctx, 2025, model.DisciplineBoulder, model.GenderWomen)

			Convey("Then rankings and their athletes are stored", func() {
				So(rep.OK(), ShouldBeTrue)
				So(rep.Count(ingest.KindRankings), ShouldEqual, 2)

				rows, err := store.Rankings(ctx, repository.RankingFilter{Season: 2025, Discipline: model.DisciplineBoulder, Gender: model.GenderWomen})
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)

				a, err := store.Athletes(ctx, repository.AthleteFilter{IDs: []int64{103}})
				So(err, ShouldBeNil)
				So(a[0].Name, ShouldEqual, "Natalia Grossman")
			})
		})

		Convey("When every category is synced and speed men fails", func() {
			rep := syncer.SyncAllRankings(ctx, 2025)
			So(src.calls["ranking"], ShouldEqual, 6)
			So(rep.Errors, ShouldHaveLength, 1)
			So(rep.Errors[0], ShouldContainSubstring, "speed/men")
			So(rep.Count(ingest.KindRankings), ShouldEqual, 2)
		})
	})
}

func TestSyncAll(t *testing.T) {
	Convey("Given a season upstream", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		Reset(cancel)
		store := repository.NewMemoryStore(ctx)
		src := newSource()

		rep := newSyncer(src, store).SyncAll(ctx, 2025)

		Convey("Then every step contributes to one report", func() {
			So(rep.Count(ingest.KindCategories), ShouldBeGreaterThan, 0)
			So(rep.Count(ingest.KindRegistrations), ShouldEqual, 2)
			So(rep.Count(ingest.KindResults), ShouldEqual, 2)
			So(rep.Count(ingest.KindRankings), ShouldEqual, 2)
			So(rep.Errors, ShouldHaveLength, 1)
		})
	})
}
