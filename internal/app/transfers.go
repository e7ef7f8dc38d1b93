package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/policy"
	"github.com/okian/fantasy-climbing/internal/domain/timeline"
	"github.com/okian/fantasy-climbing/pkg/logger"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// TransferRequest asks to swap one athlete after a completed event.
type TransferRequest struct {
	AfterEventID int64  `json:"after_event_id"`
	AthleteOutID int64  `json:"athlete_out_id"`
	AthleteInID  int64  `json:"athlete_in_id"`
	NewCaptainID *int64 `json:"new_captain_id,omitempty"`
}

// CreateTransfer swaps AthleteOutID for AthleteInID effective right after the
// anchor event. Roster and captaincy history are written at the anchor
// event's date plus the history offset, so the swap counts from the next event on.
func (s *Service) CreateTransfer(ctx context.Context, userID string, teamID uuid.UUID, req TransferRequest) (model.Transfer, error) {
	const op = "create_transfer"

	var transfer model.Transfer
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		_, league, err := s.loadOwnedTeam(ctx, tx, op, teamID, userID)
		if err != nil {
			return err
		}
		if league.TransfersPerEvent <= 0 {
			return fault.New(op, fault.ErrTransfersDisabled, "transfers are disabled in this league")
		}
		anchor, err := s.loadEvent(ctx, tx, op, req.AfterEventID)
		if err != nil {
			return err
		}
		if anchor.Status != model.EventCompleted {
			return fault.Newf(op, fault.ErrEventNotCompleted, "event %q is %s", anchor.Name, anchor.Status)
		}
		if err := s.requireWindow(ctx, tx, op, league, anchor); err != nil {
			return err
		}

		team := []uuid.UUID{teamID}
		made, err := tx.Transfers(ctx, repository.TransferFilter{
			TeamIDs:      team,
			AfterEventID: anchor.ID,
			Reverted:     repository.Bool(false),
		})
		if err != nil {
			return storageErr(op, err)
		}
		if len(made) >= league.TransfersPerEvent {
			return fault.Newf(op, fault.ErrTransferLimitReached, "transfer limit of %d reached for this event", league.TransfersPerEvent)
		}

		rosters, captaincies, err := teamHistory(ctx, tx, op, teamID)
		if err != nil {
			return err
		}
		current := timeline.Current(rosters, captaincies)
		if !current.Contains(req.AthleteOutID) {
			return fault.Newf(op, fault.ErrNotOnRoster, "athlete %d is not on the roster", req.AthleteOutID)
		}

		changing := current.IsCaptain(req.AthleteOutID) ||
			(req.NewCaptainID != nil && !current.IsCaptain(*req.NewCaptainID))
		if changing && req.NewCaptainID == nil {
			return fault.New(op, fault.ErrCaptainRequired, "transferring out the captain requires a new captain")
		}
		if changing {
			if err := validNewCaptain(op, current, req); err != nil {
				return err
			}
		}
		if current.Contains(req.AthleteInID) {
			return fault.Newf(op, fault.ErrAlreadyOnRoster, "athlete %d is already on the roster", req.AthleteInID)
		}
		if err := s.requireAthletes(ctx, tx, op, []int64{req.AthleteInID}); err != nil {
			return err
		}
		if err := s.validateTiers(ctx, tx, op, league, current.Swap(req.AthleteOutID, req.AthleteInID)); err != nil {
			return err
		}

		at := s.historyTimestamp(anchor)
		if changing {
			if err := seedCaptaincy(ctx, tx, op, teamID, rosters, captaincies, current); err != nil {
				return err
			}
		}
		if err := s.applyTransfer(ctx, tx, op, teamID, req, changing, at); err != nil {
			return err
		}

		if _, err := tx.DeleteTransfers(ctx, repository.TransferFilter{
			TeamIDs:      team,
			AfterEventID: anchor.ID,
			AthleteOutID: req.AthleteOutID,
			Reverted:     repository.Bool(true),
		}); err != nil {
			return storageErr(op, err)
		}
		transfer = model.Transfer{
			ID:           uuid.New(),
			TeamID:       teamID,
			AfterEventID: anchor.ID,
			AthleteOutID: req.AthleteOutID,
			AthleteInID:  req.AthleteInID,
			CreatedAt:    s.now(),
		}
		if changing {
			id := *req.NewCaptainID
			transfer.NewCaptainID = &id
		}
		return storageErr(op, tx.InsertTransfer(ctx, transfer))
	})
	if err != nil {
		return model.Transfer{}, s.reject(ctx, op, err)
	}

	metrics.RecordTransferCreated()
	s.log().Info(ctx, "transfer created",
		logger.String("teamID", teamID.String()),
		logger.Int64("afterEventID", req.AfterEventID),
		logger.Int64("out", req.AthleteOutID),
		logger.Int64("in", req.AthleteInID),
		logger.Bool("captainChanged", transfer.NewCaptainID != nil),
	)
	return s.withNames(ctx, transfer), nil
}

// applyTransfer writes the roster and captaincy history of one swap at 'at'.
func (s *Service) applyTransfer(ctx context.Context, tx repository.Store, op string, teamID uuid.UUID, req TransferRequest, changing bool, at time.Time) error {
	team := []uuid.UUID{teamID}
	if _, err := tx.UpdateRosterIntervals(ctx,
		repository.RosterFilter{TeamIDs: team, AthleteIDs: []int64{req.AthleteOutID}, OpenOnly: true},
		repository.RosterPatch{RemovedAt: &at},
	); err != nil {
		return storageErr(op, err)
	}
	if changing {
		if _, err := tx.UpdateRosterIntervals(ctx,
			repository.RosterFilter{TeamIDs: team, OpenOnly: true},
			repository.RosterPatch{IsCaptain: repository.Bool(false)},
		); err != nil {
			return storageErr(op, err)
		}
	}
	inIsCaptain := changing && *req.NewCaptainID == req.AthleteInID
	if err := tx.InsertRosterIntervals(ctx, []model.RosterInterval{{
		ID:        uuid.New(),
		TeamID:    teamID,
		AthleteID: req.AthleteInID,
		IsCaptain: inIsCaptain,
		AddedAt:   at,
	}}); err != nil {
		return storageErr(op, err)
	}
	if !changing {
		return nil
	}
	if err := s.moveCaptaincy(ctx, tx, op, teamID, *req.NewCaptainID, at); err != nil {
		return err
	}
	if inIsCaptain {
		return nil
	}
	if _, err := tx.UpdateRosterIntervals(ctx,
		repository.RosterFilter{TeamIDs: team, AthleteIDs: []int64{*req.NewCaptainID}, OpenOnly: true},
		repository.RosterPatch{IsCaptain: repository.Bool(true)},
	); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// seedCaptaincy gives a team drafted before captaincy history existed an open
// captaincy interval for its flagged captain, starting when that athlete
// joined. A later revert then has an interval to reopen.
func seedCaptaincy(ctx context.Context, tx repository.Store, op string, teamID uuid.UUID, rosters []model.RosterInterval, captaincies []model.CaptaincyInterval, current timeline.Snapshot) error {
	if current.CaptainID == nil || hasOpenCaptaincy(captaincies) {
		return nil
	}
	var since *time.Time
	for i := range rosters {
		r := rosters[i]
		if r.Open() && r.AthleteID == *current.CaptainID && (since == nil || r.AddedAt.After(*since)) {
			since = &rosters[i].AddedAt
		}
	}
	if since == nil {
		return nil
	}
	return storageErr(op, tx.InsertCaptaincy(ctx, model.CaptaincyInterval{
		ID:        uuid.New(),
		TeamID:    teamID,
		AthleteID: *current.CaptainID,
		SetAt:     *since,
	}))
}

// validNewCaptain requires the new captain to be on the post-transfer roster.
func validNewCaptain(op string, current timeline.Snapshot, req TransferRequest) error {
	id := *req.NewCaptainID
	if id == req.AthleteInID {
		return nil
	}
	if id == req.AthleteOutID || !current.Contains(id) {
		return fault.Newf(op, fault.ErrNotOnRoster, "new captain %d is not on the roster after the transfer", id)
	}
	return nil
}

// RevertTransfer undoes every active transfer a team made after an event,
// while the transfer window is still open.
func (s *Service) RevertTransfer(ctx context.Context, userID string, teamID uuid.UUID, afterEventID int64) error {
	const op = "revert_transfer"

	reverted := 0
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		_, league, err := s.loadOwnedTeam(ctx, tx, op, teamID, userID)
		if err != nil {
			return err
		}
		team := []uuid.UUID{teamID}
		active, err := tx.Transfers(ctx, repository.TransferFilter{
			TeamIDs:      team,
			AfterEventID: afterEventID,
			Reverted:     repository.Bool(false),
		})
		if err != nil {
			return storageErr(op, err)
		}
		if len(active) == 0 {
			return fault.New(op, fault.ErrTransferNotFound, "no active transfer found for this event")
		}
		anchor, err := s.loadEvent(ctx, tx, op, afterEventID)
		if err != nil {
			return err
		}
		if err := s.requireWindow(ctx, tx, op, league, anchor); err != nil {
			return err
		}

		at, err := s.recoverHistoryTimestamp(ctx, tx, op, teamID, active[0], anchor)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteRosterIntervals(ctx, repository.RosterFilter{TeamIDs: team, AddedAt: &at}); err != nil {
			return storageErr(op, err)
		}
		if _, err := tx.UpdateRosterIntervals(ctx,
			repository.RosterFilter{TeamIDs: team, RemovedAt: &at},
			repository.RosterPatch{Reopen: true},
		); err != nil {
			return storageErr(op, err)
		}
		if _, err := tx.DeleteCaptaincies(ctx, repository.CaptaincyFilter{TeamIDs: team, SetAt: &at}); err != nil {
			return storageErr(op, err)
		}
		if _, err := tx.UpdateCaptaincies(ctx,
			repository.CaptaincyFilter{TeamIDs: team, ReplacedAt: &at},
			repository.CaptaincyPatch{Reopen: true},
		); err != nil {
			return storageErr(op, err)
		}

		now := s.now()
		ids := make([]uuid.UUID, 0, len(active))
		for _, t := range active {
			ids = append(ids, t.ID)
		}
		if reverted, err = tx.UpdateTransfers(ctx,
			repository.TransferFilter{IDs: ids},
			repository.TransferPatch{RevertedAt: &now},
		); err != nil {
			return storageErr(op, err)
		}
		return resyncCaptainFlag(ctx, tx, op, teamID)
	})
	if err != nil {
		return s.reject(ctx, op, err)
	}

	for i := 0; i < reverted; i++ {
		metrics.RecordTransferReverted()
	}
	s.log().Info(ctx, "transfer reverted",
		logger.String("teamID", teamID.String()),
		logger.Int64("afterEventID", afterEventID),
		logger.Int("transfers", reverted),
	)
	return nil
}

// recoverHistoryTimestamp finds the instant a transfer's history was written
// at: the still-open interval of the incoming athlete, else the latest closed
// interval of the outgoing one, else the anchor date plus the offset.
func (s *Service) recoverHistoryTimestamp(ctx context.Context, r repository.Reader, op string, teamID uuid.UUID, t model.Transfer, anchor model.Event) (time.Time, error) {
	team := []uuid.UUID{teamID}
	in, err := r.RosterIntervals(ctx, repository.RosterFilter{TeamIDs: team, AthleteIDs: []int64{t.AthleteInID}, OpenOnly: true})
	if err != nil {
		return time.Time{}, storageErr(op, err)
	}
	if len(in) > 0 {
		latest := in[0].AddedAt
		for _, ri := range in[1:] {
			if ri.AddedAt.After(latest) {
				latest = ri.AddedAt
			}
		}
		return latest, nil
	}

	out, err := r.RosterIntervals(ctx, repository.RosterFilter{TeamIDs: team, AthleteIDs: []int64{t.AthleteOutID}})
	if err != nil {
		return time.Time{}, storageErr(op, err)
	}
	var latest *time.Time
	for _, ri := range out {
		if ri.RemovedAt != nil && (latest == nil || ri.RemovedAt.After(*latest)) {
			latest = ri.RemovedAt
		}
	}
	if latest != nil {
		return *latest, nil
	}

	s.log().Warn(ctx, "transfer history timestamp not found, recomputing from anchor event",
		logger.String("teamID", teamID.String()),
		logger.Int64("afterEventID", anchor.ID),
	)
	return s.historyTimestamp(anchor), nil
}

// resyncCaptainFlag aligns roster captain flags with the latest open captaincy.
func resyncCaptainFlag(ctx context.Context, tx repository.Store, op string, teamID uuid.UUID) error {
	open, err := tx.Captaincies(ctx, repository.CaptaincyFilter{TeamIDs: []uuid.UUID{teamID}, OpenOnly: true})
	if err != nil {
		return storageErr(op, err)
	}
	if len(open) == 0 {
		return nil
	}
	restored := open[0]
	for _, c := range open[1:] {
		if c.SetAt.After(restored.SetAt) {
			restored = c
		}
	}
	return flagCaptain(ctx, tx, op, teamID, restored.AthleteID)
}

// Transfers lists a team's transfers, newest first, with athlete names.
func (s *Service) Transfers(ctx context.Context, teamID uuid.UUID) ([]model.Transfer, error) {
	const op = "list_transfers"

	if _, _, err := s.loadTeam(ctx, s.store, op, teamID); err != nil {
		return nil, err
	}
	transfers, err := s.store.Transfers(ctx, repository.TransferFilter{TeamIDs: []uuid.UUID{teamID}})
	if err != nil {
		return nil, storageErr(op, err)
	}
	ids := make([]int64, 0, 2*len(transfers))
	for _, t := range transfers {
		ids = append(ids, t.AthleteOutID, t.AthleteInID)
	}
	athletes, err := s.athletesByID(ctx, op, ids)
	if err != nil {
		return nil, err
	}
	for i := range transfers {
		transfers[i].AthleteOutName = athletes[transfers[i].AthleteOutID].Name
		transfers[i].AthleteInName = athletes[transfers[i].AthleteInID].Name
	}
	return transfers, nil
}

func (s *Service) withNames(ctx context.Context, t model.Transfer) model.Transfer {
	athletes, err := s.athletesByID(ctx, "create_transfer", []int64{t.AthleteOutID, t.AthleteInID})
	if err != nil {
		return t
	}
	t.AthleteOutName = athletes[t.AthleteOutID].Name
	t.AthleteInName = athletes[t.AthleteInID].Name
	return t
}

// requireWindow fails with WindowClosed once the event after anchor has started.
func (s *Service) requireWindow(ctx context.Context, r repository.Reader, op string, league model.League, anchor model.Event) error {
	events, err := r.Events(ctx, repository.EventFilter{Discipline: league.Discipline, Gender: league.Gender})
	if err != nil {
		return storageErr(op, err)
	}
	w := policy.TransferWindow(league, anchor, events)
	if !w.Open {
		return fault.Newf(op, fault.ErrWindowClosed, "transfer window has closed: %q is %s", w.Next.Name, w.Next.Status)
	}
	return nil
}

func (s *Service) historyTimestamp(anchor model.Event) time.Time {
	return normalize(anchor.Date.Add(s.historyOffset))
}

func (s *Service) loadEvent(ctx context.Context, r repository.Reader, op string, id int64) (model.Event, error) {
	events, err := r.Events(ctx, repository.EventFilter{IDs: []int64{id}})
	if err != nil {
		return model.Event{}, storageErr(op, err)
	}
	if len(events) == 0 {
		return model.Event{}, fault.Newf(op, fault.ErrEventNotFound, "event %d not found", id)
	}
	return events[0], nil
}
