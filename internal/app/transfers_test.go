package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/model"
)

func TestService_Transfers(t *testing.T) {
	Convey("Given a team drafted before the first event, which is now completed", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{TeamSize: 3})
		_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2, 4))
		So(err, ShouldBeNil)

		f.clock.Advance(11 * 24 * time.Hour)
		f.e1 = f.setStatus(f.e1, model.EventCompleted)
		before := f.snapshotAt(team.ID, f.e2.Date)
		beforeCurrent := f.current(team.ID)

		Convey("When swapping the captain out without naming a new captain", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 1, AthleteInID: 5,
			})

			Convey("Then it fails with CaptainRequired", func() {
				So(errors.Is(err, fault.ErrCaptainRequired), ShouldBeTrue)
				So(errors.Is(err, fault.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("When swapping the captain out and naming a new captain", func() {
			tr, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 1, AthleteInID: 5, NewCaptainID: int64Ptr(2),
			})

			Convey("Then the transfer is recorded with names and a wall clock creation time", func() {
				So(err, ShouldBeNil)
				So(tr.AthleteOutName, ShouldEqual, "Janja Garnbret")
				So(tr.AthleteInName, ShouldEqual, "Camilla Moroni")
				So(*tr.NewCaptainID, ShouldEqual, 2)
				So(tr.CreatedAt.Equal(f.clock.Now()), ShouldBeTrue)
			})

			Convey("Then the swap counts from right after the anchor event", func() {
				after := f.current(team.ID)
				So(after.AthleteIDs, ShouldResemble, []int64{2, 4, 5})
				So(*after.CaptainID, ShouldEqual, 2)

				atAnchor := f.snapshotAt(team.ID, f.e1.Date)
				So(atAnchor.AthleteIDs, ShouldResemble, []int64{1, 2, 4})
				So(*atAnchor.CaptainID, ShouldEqual, 1)

				next := f.snapshotAt(team.ID, f.e2.Date)
				So(next.AthleteIDs, ShouldResemble, []int64{2, 4, 5})

				rows, err := f.store.RosterIntervals(f.ctx, repository.RosterFilter{TeamIDs: []uuid.UUID{team.ID}, AthleteIDs: []int64{5}})
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].AddedAt.Equal(f.e1.Date.Add(time.Second)), ShouldBeTrue)
			})

			Convey("Then a second transfer for the same event exceeds the quota", func() {
				_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
					AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 6,
				})
				So(errors.Is(err, fault.ErrTransferLimitReached), ShouldBeTrue)
			})

			Convey("Then the listing shows it newest first", func() {
				list, err := f.svc.Transfers(f.ctx, team.ID)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].ID, ShouldEqual, tr.ID)
				So(list[0].AthleteInName, ShouldEqual, "Camilla Moroni")
			})

			Convey("And reverting it", func() {
				f.clock.Advance(time.Hour)
				err := f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID)

				Convey("Then roster and captain are exactly as before", func() {
					So(err, ShouldBeNil)
					So(f.snapshotAt(team.ID, f.e2.Date), ShouldResemble, before)
					So(f.current(team.ID), ShouldResemble, beforeCurrent)

					open, err := f.store.RosterIntervals(f.ctx, repository.RosterFilter{TeamIDs: []uuid.UUID{team.ID}, OpenOnly: true})
					So(err, ShouldBeNil)
					for _, r := range open {
						So(r.IsCaptain, ShouldEqual, r.AthleteID == 1)
					}

					list, err := f.svc.Transfers(f.ctx, team.ID)
					So(err, ShouldBeNil)
					So(list[0].RevertedAt, ShouldNotBeNil)
				})

				Convey("Then a second revert finds nothing and changes nothing", func() {
					err := f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID)
					So(errors.Is(err, fault.ErrTransferNotFound), ShouldBeTrue)
					So(errors.Is(err, fault.ErrNotFound), ShouldBeTrue)
					So(f.current(team.ID), ShouldResemble, beforeCurrent)
				})

				Convey("Then the same swap can be made again", func() {
					_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
						AfterEventID: f.e1.ID, AthleteOutID: 1, AthleteInID: 5, NewCaptainID: int64Ptr(5),
					})
					So(err, ShouldBeNil)
					all, err := f.store.Transfers(f.ctx, repository.TransferFilter{TeamIDs: []uuid.UUID{team.ID}})
					So(err, ShouldBeNil)
					So(all, ShouldHaveLength, 1)
					So(*f.current(team.ID).CaptainID, ShouldEqual, 5)
				})
			})

			Convey("And the next event starts", func() {
				f.setStatus(f.e2, model.EventInProgress)

				Convey("Then the transfer can no longer be reverted", func() {
					err := f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID)
					So(errors.Is(err, fault.ErrWindowClosed), ShouldBeTrue)
					So(errors.Is(err, fault.ErrState), ShouldBeTrue)
				})
			})
		})

		Convey("When the next event is in progress", func() {
			f.setStatus(f.e2, model.EventInProgress)

			Convey("Then a transfer after the first event fails with WindowClosed", func() {
				_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
					AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 5,
				})
				So(errors.Is(err, fault.ErrWindowClosed), ShouldBeTrue)
			})
		})

		Convey("Then swapping a non-captain keeps the captaincy history", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 5,
			})
			So(err, ShouldBeNil)
			caps, err := f.store.Captaincies(f.ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{team.ID}})
			So(err, ShouldBeNil)
			So(caps, ShouldHaveLength, 1)
			So(*f.current(team.ID).CaptainID, ShouldEqual, 1)
		})

		Convey("Then the incoming athlete can become captain", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 5, NewCaptainID: int64Ptr(5),
			})
			So(err, ShouldBeNil)
			So(*f.current(team.ID).CaptainID, ShouldEqual, 5)

			So(f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID), ShouldBeNil)
			So(f.current(team.ID), ShouldResemble, beforeCurrent)
		})

		Convey("Then preconditions are checked", func() {
			req := func(out, in int64) service.TransferRequest {
				return service.TransferRequest{AfterEventID: f.e1.ID, AthleteOutID: out, AthleteInID: in}
			}

			_, err := f.svc.CreateTransfer(f.ctx, stranger, team.ID, req(4, 5))
			So(errors.Is(err, fault.ErrNotOwner), ShouldBeTrue)

			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{AfterEventID: 999, AthleteOutID: 4, AthleteInID: 5})
			So(errors.Is(err, fault.ErrEventNotFound), ShouldBeTrue)

			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{AfterEventID: f.e2.ID, AthleteOutID: 4, AthleteInID: 5})
			So(errors.Is(err, fault.ErrEventNotCompleted), ShouldBeTrue)

			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, req(6, 5))
			So(errors.Is(err, fault.ErrNotOnRoster), ShouldBeTrue)

			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, req(4, 2))
			So(errors.Is(err, fault.ErrAlreadyOnRoster), ShouldBeTrue)

			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, req(4, 99))
			So(errors.Is(err, fault.ErrAthleteNotFound), ShouldBeTrue)

			bad := req(4, 5)
			bad.NewCaptainID = int64Ptr(4)
			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, bad)
			So(errors.Is(err, fault.ErrNotOnRoster), ShouldBeTrue)

			So(f.current(team.ID), ShouldResemble, beforeCurrent)
		})
	})

	Convey("Given a league that allows two transfers per event", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{TeamSize: 3, TransfersPerEvent: intPtr(2)})
		_, err := f.svc.ReplaceRoster(f.ctx, owner, team.ID, roster(1, 2, 4))
		So(err, ShouldBeNil)
		f.clock.Advance(11 * 24 * time.Hour)
		f.e1 = f.setStatus(f.e1, model.EventCompleted)
		beforeCurrent := f.current(team.ID)

		Convey("When a second swap would put three S-tier athletes on the team", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 6,
			})
			So(err, ShouldBeNil)
			f.clock.Advance(time.Minute)
			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 2, AthleteInID: 3,
			})

			Convey("Then it fails with TierLimitExceeded", func() {
				So(errors.Is(err, fault.ErrTierLimitExceeded), ShouldBeTrue)
			})
		})

		Convey("When the same slot is swapped twice after the event", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 5,
			})
			So(err, ShouldBeNil)
			f.clock.Advance(time.Minute)
			_, err = f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 5, AthleteInID: 6,
			})
			So(err, ShouldBeNil)

			Convey("Then one revert undoes both", func() {
				So(f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID), ShouldBeNil)
				So(f.current(team.ID), ShouldResemble, beforeCurrent)

				list, err := f.svc.Transfers(f.ctx, team.ID)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 2)
				for _, tr := range list {
					So(tr.RevertedAt, ShouldNotBeNil)
				}
			})
		})
	})

	Convey("Given a league with transfers disabled", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{TransfersPerEvent: intPtr(0)})
		f.e1 = f.setStatus(f.e1, model.EventCompleted)

		Convey("Then transfers fail with TransfersDisabled", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 1, AthleteInID: 5,
			})
			So(errors.Is(err, fault.ErrTransfersDisabled), ShouldBeTrue)
		})
	})

	Convey("Given a legacy transfer whose roster history left no trace", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{})
		f.e1 = f.setStatus(f.e1, model.EventCompleted)
		at := f.e1.Date.Add(time.Second)

		must(f.store.InsertCaptaincy(f.ctx, model.CaptaincyInterval{ID: uuid.New(), TeamID: team.ID, AthleteID: 1, SetAt: t0, ReplacedAt: &at}))
		must(f.store.InsertCaptaincy(f.ctx, model.CaptaincyInterval{ID: uuid.New(), TeamID: team.ID, AthleteID: 2, SetAt: at}))
		must(f.store.InsertTransfer(f.ctx, model.Transfer{
			ID: uuid.New(), TeamID: team.ID, AfterEventID: f.e1.ID, AthleteOutID: 1, AthleteInID: 2, CreatedAt: t0,
		}))

		Convey("When reverting it", func() {
			err := f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID)

			Convey("Then the anchor date plus the offset is used to undo the captaincy change", func() {
				So(err, ShouldBeNil)
				caps, err := f.store.Captaincies(f.ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{team.ID}})
				So(err, ShouldBeNil)
				So(caps, ShouldHaveLength, 1)
				So(caps[0].AthleteID, ShouldEqual, 1)
				So(caps[0].ReplacedAt, ShouldBeNil)
			})
		})
	})

	Convey("Given a team drafted before captaincy history was recorded", t, func() {
		f := newFixture()
		Reset(f.close)
		_, team := f.league(service.NewLeague{})
		f.e1 = f.setStatus(f.e1, model.EventCompleted)

		for _, id := range []int64{1, 2, 4} {
			must(f.store.InsertRosterIntervals(f.ctx, []model.RosterInterval{{
				ID: uuid.New(), TeamID: team.ID, AthleteID: id, IsCaptain: id == 1, AddedAt: t0,
			}}))
		}
		before := f.current(team.ID)
		beforeNext := f.snapshotAt(team.ID, f.e2.Date)
		So(*before.CaptainID, ShouldEqual, 1)

		Convey("When a transfer hands the captaincy to a roster member and is reverted", func() {
			_, err := f.svc.CreateTransfer(f.ctx, owner, team.ID, service.TransferRequest{
				AfterEventID: f.e1.ID, AthleteOutID: 4, AthleteInID: 5, NewCaptainID: int64Ptr(2),
			})
			So(err, ShouldBeNil)
			So(*f.current(team.ID).CaptainID, ShouldEqual, 2)
			So(*f.snapshotAt(team.ID, f.e1.Date).CaptainID, ShouldEqual, 1)

			So(f.svc.RevertTransfer(f.ctx, owner, team.ID, f.e1.ID), ShouldBeNil)

			Convey("Then roster and captain are exactly as before", func() {
				after := f.current(team.ID)
				So(after.AthleteIDs, ShouldResemble, before.AthleteIDs)
				So(*after.CaptainID, ShouldEqual, 1)
				So(f.snapshotAt(team.ID, f.e2.Date), ShouldResemble, beforeNext)

				flagged, err := f.store.RosterIntervals(f.ctx, repository.RosterFilter{TeamIDs: []uuid.UUID{team.ID}, OpenOnly: true})
				So(err, ShouldBeNil)
				for _, r := range flagged {
					So(r.IsCaptain, ShouldEqual, r.AthleteID == 1)
				}
			})
		})
	})
}
