package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

type fakeProvider struct {
	sessions atomic.Int32
	expireAt int32 // reject the first request made with this session number
	rejected atomic.Bool
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		n := f.sessions.Add(1)
		http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "s" + string(rune('0'+n))})
	})
	mux.HandleFunc("GET /api/v1/seasons/37", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		_, _ = w.Write([]byte(`{"name":"2025","leagues":[{"name":"World Cups and World Championships","url":"/api/v1/season_leagues/418"}],
			"events":[{"event":"Keqiao","event_id":1405,"starts_at":"2025-04-18 00:00:00 UTC","league_season_id":418,
			"disciplines":[{"id":1,"kind":"boulder"}]}]}`))
	})
	mux.HandleFunc("GET /api/v1/events/1405/result/3", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		_, _ = w.Write([]byte(`{"event":"Keqiao","dcat":"BOULDER Women","status":"finished",
			"ranking":[{"athlete_id":1,"rank":1,"firstname":"Janja","lastname":"Garnbret","country":"SLO"},
			{"athlete_id":2,"rank":null,"firstname":"Oriane","lastname":"Bertone","country":"FRA"}]}`))
	})
	mux.HandleFunc("GET /api/v1/world_ranking/cuwr/7", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		if r.URL.Query().Get("season_id") != "37" {
			http.Error(w, "bad season", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[{"rank":1,"athlete_id":1,"name":"GARNBRET Janja","country":"SLO","score":4100.5}]`))
	})
	return mux
}

func (f *fakeProvider) authorized(w http.ResponseWriter, r *http.Request) bool {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	if f.expireAt > 0 && ck.Value == "s"+string(rune('0'+f.expireAt)) && !f.rejected.Load() {
		f.rejected.Store(true)
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func TestClient(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	Convey("Given a provider that issues session cookies", t, func() {
		fake := &fakeProvider{}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()
		client := NewClient(WithBaseURL(srv.URL), WithTimeout(2*time.Second))

		Convey("When fetching a season", func() {
			season, err := client.Season(ctx, 2025)

			Convey("Then events and league grouping are decoded", func() {
				So(err, ShouldBeNil)
				So(len(season.Events), ShouldEqual, 1)
				So(season.IsWorldCup(season.Events[0].LeagueSeasonID), ShouldBeTrue)
				So(season.IsWorldCup(999), ShouldBeFalse)
				So(season.Events[0].HasDiscipline([]model.Discipline{model.DisciplineBoulder}), ShouldBeTrue)
				So(fake.sessions.Load(), ShouldEqual, 1)
			})
		})

		Convey("When fetching results", func() {
			res, err := client.Results(ctx, 1405, 3)

			Convey("Then unplaced athletes keep a nil rank", func() {
				So(err, ShouldBeNil)
				So(res.Gender(), ShouldEqual, model.GenderWomen)
				So(*res.Ranking[0].Rank, ShouldEqual, 1)
				So(res.Ranking[0].FullName(), ShouldEqual, "Janja Garnbret")
				So(res.Ranking[1].Rank, ShouldBeNil)
			})
		})

		Convey("When fetching a world ranking", func() {
			entries, err := client.WorldRanking(ctx, 7, 2025)
			So(err, ShouldBeNil)
			So(entries[0].FullName(), ShouldEqual, "GARNBRET Janja")
			So(*entries[0].Score, ShouldEqual, 4100.5)
		})

		Convey("When the session expires", func() {
			fake.expireAt = 1
			_, err := client.Season(ctx, 2025)

			Convey("Then the client refreshes it once and succeeds", func() {
				So(err, ShouldBeNil)
				So(fake.sessions.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the season year is unknown", func() {
			_, err := client.Season(ctx, 1999)
			So(errors.Is(err, ErrUnsupportedSeason), ShouldBeTrue)
		})

		Convey("When the endpoint does not exist", func() {
			_, err := client.Event(ctx, 42)
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		})
	})

	Convey("Given a site that never sets the session cookie", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		client := NewClient(WithBaseURL(srv.URL))

		_, err := client.Event(ctx, 1)
		So(errors.Is(err, ErrNoSession), ShouldBeTrue)
	})
}

func TestHelpers(t *testing.T) {
	Convey("Given provider helper tables", t, func() {
		Convey("When parsing dates", func() {
			d, err := ParseDate("2025-03-07 11:00:00 UTC")
			So(err, ShouldBeNil)
			So(d.Equal(time.Date(2025, 3, 7, 11, 0, 0, 0, time.UTC)), ShouldBeTrue)

			d, err = ParseDate("2025-03-07")
			So(err, ShouldBeNil)
			So(d.Day(), ShouldEqual, 7)

			_, err = ParseDate("soon")
			So(errors.Is(err, ErrBadDate), ShouldBeTrue)
		})

		Convey("When mapping categories to world ranking ids", func() {
			id, err := CUWRID(model.DisciplineBoulder, model.GenderWomen)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 7)
			id, _ = CUWRID(model.DisciplineLead, model.GenderMen)
			So(id, ShouldEqual, 1)
			_, err = CUWRID("combined", model.GenderMen)
			So(errors.Is(err, ErrUnknownCategory), ShouldBeTrue)
		})

		Convey("When mapping category status", func() {
			So(Category{Status: "finished"}.EventStatus(), ShouldEqual, model.EventCompleted)
			So(Category{Status: "active"}.EventStatus(), ShouldEqual, model.EventInProgress)
			So(Category{Status: "pending"}.EventStatus(), ShouldEqual, model.EventUpcoming)
		})
	})
}
