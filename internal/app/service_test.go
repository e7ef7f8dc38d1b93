package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/tier"
)

func TestService_Start(t *testing.T) {
	Convey("Given a service without a store", t, func() {
		svc := service.New()

		Convey("Then Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoStore), ShouldBeTrue)
		})
	})

	Convey("Given a service over a memory store", t, func() {
		f := newFixture()
		Reset(f.close)

		Convey("Then Start and Stop succeed and Start is idempotent", func() {
			So(f.svc.Start(f.ctx), ShouldBeNil)
			So(f.svc.Start(f.ctx), ShouldBeNil)
			f.svc.Stop()
			f.svc.Stop()
		})
	})
}

func TestService_Leagues(t *testing.T) {
	Convey("Given a service", t, func() {
		f := newFixture()
		Reset(f.close)

		Convey("When creating a league with defaults", func() {
			l, err := f.svc.CreateLeague(f.ctx, owner, service.NewLeague{
				Name: "Crimpers", Gender: "Women", Discipline: "boulder",
			})

			Convey("Then the defaults are applied and the creator is admin", func() {
				So(err, ShouldBeNil)
				So(l.TeamSize, ShouldEqual, service.DefaultTeamSize)
				So(l.TransfersPerEvent, ShouldEqual, service.DefaultTransfersPerEvent)
				So(l.CaptainMultiplier, ShouldEqual, 1.2)
				So(l.Tiers, ShouldResemble, tier.Default())
				So(l.Gender, ShouldEqual, model.GenderWomen)
				So(len(l.InviteCode), ShouldEqual, 8)

				members, err := f.store.Members(f.ctx, repository.MemberFilter{LeagueID: l.ID})
				So(err, ShouldBeNil)
				So(members, ShouldHaveLength, 1)
				So(members[0].Role, ShouldEqual, model.RoleAdmin)
			})

			Convey("And another user joins with the invite code", func() {
				joined, err := f.svc.JoinLeague(f.ctx, stranger, l.InviteCode)
				So(err, ShouldBeNil)
				So(joined.ID, ShouldEqual, l.ID)

				Convey("Then joining twice is a conflict", func() {
					_, err := f.svc.JoinLeague(f.ctx, stranger, l.InviteCode)
					So(errors.Is(err, fault.ErrAlreadyMember), ShouldBeTrue)
					So(errors.Is(err, fault.ErrConflict), ShouldBeTrue)
				})

				Convey("Then both see the league with its team count", func() {
					_, err := f.svc.CreateTeam(f.ctx, stranger, l.ID, "Dyno Crew")
					So(err, ShouldBeNil)
					leagues, err := f.svc.Leagues(f.ctx, owner)
					So(err, ShouldBeNil)
					So(leagues, ShouldHaveLength, 1)
					So(leagues[0].TeamCount, ShouldEqual, 1)

					one, err := f.svc.League(f.ctx, l.ID)
					So(err, ShouldBeNil)
					So(one.TeamCount, ShouldEqual, 1)
				})
			})

			Convey("Then an unknown invite code is not found", func() {
				_, err := f.svc.JoinLeague(f.ctx, stranger, "nope")
				So(errors.Is(err, fault.ErrInviteNotFound), ShouldBeTrue)
			})

			Convey("Then a non-member cannot create a team", func() {
				_, err := f.svc.CreateTeam(f.ctx, stranger, l.ID, "Dyno Crew")
				So(errors.Is(err, fault.ErrNotMember), ShouldBeTrue)
				So(errors.Is(err, fault.ErrForbidden), ShouldBeTrue)
			})

			Convey("Then a second team for the same user is a conflict", func() {
				_, err := f.svc.CreateTeam(f.ctx, owner, l.ID, "One")
				So(err, ShouldBeNil)
				_, err = f.svc.CreateTeam(f.ctx, owner, l.ID, "Two")
				So(errors.Is(err, fault.ErrTeamExists), ShouldBeTrue)
			})

			Convey("Then only the admin may delete it and deletion cascades", func() {
				team, err := f.svc.CreateTeam(f.ctx, owner, l.ID, "One")
				So(err, ShouldBeNil)

				err = f.svc.DeleteLeague(f.ctx, stranger, l.ID)
				So(errors.Is(err, fault.ErrNotOwner), ShouldBeTrue)

				So(f.svc.DeleteLeague(f.ctx, owner, l.ID), ShouldBeNil)
				_, err = f.svc.League(f.ctx, l.ID)
				So(errors.Is(err, fault.ErrLeagueNotFound), ShouldBeTrue)
				_, err = f.svc.Team(f.ctx, team.ID)
				So(errors.Is(err, fault.ErrTeamNotFound), ShouldBeTrue)
			})
		})

		Convey("Then invalid league settings are rejected", func() {
			cases := []service.NewLeague{
				{Name: "", Gender: "women", Discipline: "boulder"},
				{Name: "x", Gender: "mixed", Discipline: "boulder"},
				{Name: "x", Gender: "women", Discipline: "ice"},
				{Name: "x", Gender: "women", Discipline: "boulder", CaptainMultiplier: 1},
				{Name: "x", Gender: "women", Discipline: "boulder", TransfersPerEvent: intPtr(-1)},
				{Name: "x", Gender: "women", Discipline: "boulder", Tiers: tier.Config{{Name: "S", MaxRank: intPtr(5)}}},
			}
			for _, in := range cases {
				_, err := f.svc.CreateLeague(f.ctx, owner, in)
				So(errors.Is(err, fault.ErrBadRequest), ShouldBeTrue)
			}
		})

		Convey("Then unknown league events are rejected", func() {
			_, err := f.svc.CreateLeague(f.ctx, owner, service.NewLeague{
				Name: "x", Gender: "women", Discipline: "boulder", EventIDs: []int64{11, 999},
			})
			So(errors.Is(err, fault.ErrEventNotFound), ShouldBeTrue)
		})

		Convey("When a league has an explicit event set", func() {
			l, _ := f.league(service.NewLeague{EventIDs: []int64{21, 11}})
			f.setStatus(f.e1, model.EventCompleted)

			Convey("Then its events are listed newest first and filter by status", func() {
				events, err := f.svc.LeagueEvents(f.ctx, l.ID, "")
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].ID, ShouldEqual, 21)
				So(events[1].ID, ShouldEqual, 11)

				done, err := f.svc.LeagueEvents(f.ctx, l.ID, model.EventCompleted)
				So(err, ShouldBeNil)
				So(done, ShouldHaveLength, 1)
				So(done[0].ID, ShouldEqual, 11)
			})
		})
	})
}

func TestService_ReplaceRoster(t *testing.T) {
	Convey("Given a league with team size 2 and tiers S(max rank 5, max 1) and B", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{
			TeamSize: 2,
			Tiers: tier.Config{
				{Name: "S", MaxRank: intPtr(5), MaxPerTeam: intPtr(1)},
				{Name: "B"},
			},
		})

		Convey("When drafting an athlete ranked 3 as captain and one ranked 20", func() {
			view, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2))

			Convey("Then the roster is valid and reconstructs to exactly the entries", func() {
				So(err, ShouldBeNil)
				So(view.Roster, ShouldHaveLength, 2)
				So(*view.CaptainID, ShouldEqual, 1)

				snap := f.snapshotAt(team.ID, f.clock.Now())
				So(snap.AthleteIDs, ShouldResemble, []int64{1, 2})
				So(*snap.CaptainID, ShouldEqual, 1)
			})

			Convey("Then adding a third athlete is too large", func() {
				_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2, 3))
				So(errors.Is(err, fault.ErrRosterTooLarge), ShouldBeTrue)
			})

			Convey("Then two S-tier athletes exceed the tier limit", func() {
				_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 3))
				So(errors.Is(err, fault.ErrTierLimitExceeded), ShouldBeTrue)
				var limit *tier.LimitError
				So(errors.As(err, &limit), ShouldBeTrue)
				So(limit.Tier, ShouldEqual, "S")
				So(limit.Limit, ShouldEqual, 1)
				So(limit.Actual, ShouldEqual, 2)

				Convey("And the previous roster is untouched", func() {
					So(f.current(team.ID).AthleteIDs, ShouldResemble, []int64{1, 2})
				})
			})

			Convey("Then keeping the captain does not add captaincy history", func() {
				f.clock.Advance(time.Hour)
				_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 4))
				So(err, ShouldBeNil)
				caps, err := f.store.Captaincies(f.ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{team.ID}})
				So(err, ShouldBeNil)
				So(caps, ShouldHaveLength, 1)
				So(f.current(team.ID).AthleteIDs, ShouldResemble, []int64{1, 4})
			})

			Convey("Then changing the captain closes the old captaincy", func() {
				f.clock.Advance(time.Hour)
				_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(4, 1))
				So(err, ShouldBeNil)
				So(*f.current(team.ID).CaptainID, ShouldEqual, 4)
				So(*f.snapshotAt(team.ID, t0).CaptainID, ShouldEqual, 1)
			})
		})

		Convey("Then another user cannot edit the team", func() {
			_, err := f.svc.ReplaceRoster(f.ctx, stranger, team.ID, roster(1, 2))
			So(errors.Is(err, fault.ErrNotOwner), ShouldBeTrue)
			So(errors.Is(err, fault.ErrForbidden), ShouldBeTrue)
		})

		Convey("Then exactly one captain is required", func() {
			_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, []service.RosterEntry{{AthleteID: 1}, {AthleteID: 2}})
			So(errors.Is(err, fault.ErrInvalidCaptainCount), ShouldBeTrue)
			_, err = f.svc.ReplaceRoster(f.ctx, owner, team.ID, []service.RosterEntry{{AthleteID: 1, IsCaptain: true}, {AthleteID: 2, IsCaptain: true}})
			So(errors.Is(err, fault.ErrInvalidCaptainCount), ShouldBeTrue)
		})

		Convey("Then duplicate and unknown athletes are rejected", func() {
			_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 1))
			So(errors.Is(err, fault.ErrDuplicateAthlete), ShouldBeTrue)
			_, err = f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 99))
			So(errors.Is(err, fault.ErrAthleteNotFound), ShouldBeTrue)
		})

		Convey("Then an unknown team is not found", func() {
			_, err := f.svc.ReplaceRoster(f.ctx, owner, uuid.New(), roster(1))
			So(errors.Is(err, fault.ErrTeamNotFound), ShouldBeTrue)
		})
	})
}

func TestService_DraftLock(t *testing.T) {
	Convey("Given a league whose event set includes an event that started a second ago", t, func() {
		f := newFixture()
		Reset(f.close)
		started := event(41, "Bern", t0.Add(-time.Second))
		must(f.store.UpsertEvents(f.ctx, []model.Event{started}))
		l, team := f.league(service.NewLeague{EventIDs: []int64{41, 11}})

		Convey("Then the draft is locked", func() {
			status, err := f.svc.LockStatus(f.ctx, l.ID)
			So(err, ShouldBeNil)
			So(status.Locked, ShouldBeTrue)
			So(status.Reason, ShouldNotBeEmpty)

			Convey("And roster edits fail with RosterLocked", func() {
				_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2))
				So(errors.Is(err, fault.ErrRosterLocked), ShouldBeTrue)
				So(errors.Is(err, fault.ErrState), ShouldBeTrue)
				_, err = f.svc.SetCaptain(f.ctx, owner, team.ID, 1)
				So(errors.Is(err, fault.ErrRosterLocked), ShouldBeTrue)
			})

			Convey("And it stays locked after the event is moved into the future", func() {
				started.Date = t0.Add(48 * time.Hour)
				must(f.store.UpsertEvents(f.ctx, []model.Event{started}))

				again, err := f.svc.RosterStatus(f.ctx, team.ID)
				So(err, ShouldBeNil)
				So(again.Locked, ShouldBeTrue)

				stored, err := f.svc.League(f.ctx, l.ID)
				So(err, ShouldBeNil)
				So(stored.DraftLockedAt, ShouldNotBeNil)
			})
		})

		Convey("Then a rejected roster edit latches the lock too", func() {
			_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2))
			So(errors.Is(err, fault.ErrRosterLocked), ShouldBeTrue)
			stored, err := f.svc.League(f.ctx, l.ID)
			So(err, ShouldBeNil)
			So(stored.DraftLockedAt, ShouldNotBeNil)
		})
	})

	Convey("Given a league without an explicit event set", t, func() {
		f := newFixture()
		Reset(f.close)
		l, team := f.league(service.NewLeague{})
		f.setStatus(f.e1, model.EventCompleted)

		Convey("Then the draft never locks", func() {
			status, err := f.svc.LockStatus(f.ctx, l.ID)
			So(err, ShouldBeNil)
			So(status.Locked, ShouldBeFalse)
			_, err = f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2))
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a league whose events are all in the future", t, func() {
		f := newFixture()
		Reset(f.close)
		l, _ := f.league(service.NewLeague{EventIDs: []int64{11, 21}})

		Convey("Then the draft is open until the first event date passes", func() {
			status, err := f.svc.LockStatus(f.ctx, l.ID)
			So(err, ShouldBeNil)
			So(status.Locked, ShouldBeFalse)

			f.clock.Advance(10 * 24 * time.Hour)
			status, err = f.svc.LockStatus(f.ctx, l.ID)
			So(err, ShouldBeNil)
			So(status.Locked, ShouldBeTrue)
		})
	})
}

func TestService_SetCaptain(t *testing.T) {
	Convey("Given a drafted team", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{})
		_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2, 4))
		So(err, ShouldBeNil)
		f.clock.Advance(time.Hour)

		Convey("When making a roster member captain", func() {
			view, err := f.svc.SetCaptain(f.ctx, owner, team.ID, 2)

			Convey("Then captaincy history and the roster flag both move", func() {
				So(err, ShouldBeNil)
				So(*view.CaptainID, ShouldEqual, 2)
				for _, a := range view.Roster {
					So(a.IsCaptain, ShouldEqual, a.ID == 2)
				}
				open, err := f.store.RosterIntervals(f.ctx, repository.RosterFilter{TeamIDs: []uuid.UUID{team.ID}, OpenOnly: true})
				So(err, ShouldBeNil)
				for _, r := range open {
					So(r.IsCaptain, ShouldEqual, r.AthleteID == 2)
				}
				So(*f.snapshotAt(team.ID, t0).CaptainID, ShouldEqual, 1)
			})
		})

		Convey("Then naming the current captain changes nothing", func() {
			_, err := f.svc.SetCaptain(f.ctx, owner, team.ID, 1)
			So(err, ShouldBeNil)
			caps, err := f.store.Captaincies(f.ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{team.ID}})
			So(err, ShouldBeNil)
			So(caps, ShouldHaveLength, 1)
		})

		Convey("Then an athlete off the roster cannot be captain", func() {
			_, err := f.svc.SetCaptain(f.ctx, owner, team.ID, 6)
			So(errors.Is(err, fault.ErrNotOnRoster), ShouldBeTrue)
		})

		Convey("Then another user cannot set the captain", func() {
			_, err := f.svc.SetCaptain(f.ctx, stranger, team.ID, 2)
			So(errors.Is(err, fault.ErrNotOwner), ShouldBeTrue)
		})
	})
}
