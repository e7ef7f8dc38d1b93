package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/policy"
	"github.com/okian/fantasy-climbing/internal/domain/tier"
	"github.com/okian/fantasy-climbing/internal/domain/timeline"
	"github.com/okian/fantasy-climbing/pkg/logger"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// RosterEntry is one athlete of a drafted roster.
type RosterEntry struct {
	AthleteID int64 `json:"athlete_id"`
	IsCaptain bool  `json:"is_captain"`
}

// RosterAthlete is a current roster member.
type RosterAthlete struct {
	model.Athlete
	IsCaptain bool      `json:"is_captain"`
	AddedAt   time.Time `json:"added_at"`
}

// TeamView is a team with its current roster.
type TeamView struct {
	model.Team
	Roster    []RosterAthlete `json:"roster"`
	CaptainID *int64          `json:"captain_id,omitempty"`
}

// Team returns a team with its current roster and captain.
func (s *Service) Team(ctx context.Context, id uuid.UUID) (TeamView, error) {
	const op = "get_team"

	team, _, err := s.loadTeam(ctx, s.store, op, id)
	if err != nil {
		return TeamView{}, err
	}
	rosters, captaincies, err := teamHistory(ctx, s.store, op, id)
	if err != nil {
		return TeamView{}, err
	}
	snap := timeline.Current(rosters, captaincies)
	athletes, err := s.athletesByID(ctx, op, snap.AthleteIDs)
	if err != nil {
		return TeamView{}, err
	}

	view := TeamView{Team: team, Roster: make([]RosterAthlete, 0, len(snap.AthleteIDs)), CaptainID: snap.CaptainID}
	for _, r := range rosters {
		if !r.Open() {
			continue
		}
		a, ok := athletes[r.AthleteID]
		if !ok {
			a = model.Athlete{ID: r.AthleteID}
		}
		view.Roster = append(view.Roster, RosterAthlete{Athlete: a, IsCaptain: snap.IsCaptain(r.AthleteID), AddedAt: r.AddedAt})
	}
	return view, nil
}

// RosterStatus reports whether the draft of the team's league is locked.
func (s *Service) RosterStatus(ctx context.Context, teamID uuid.UUID) (policy.LockStatus, error) {
	const op = "roster_status"

	_, league, err := s.loadTeam(ctx, s.store, op, teamID)
	if err != nil {
		return policy.LockStatus{}, err
	}
	return s.LockStatus(ctx, league.ID)
}

// LockStatus evaluates the draft lock of a league and records it on the
// league the first time it closes.
func (s *Service) LockStatus(ctx context.Context, leagueID uuid.UUID) (policy.LockStatus, error) {
	const op = "lock_status"

	var status policy.LockStatus
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		league, err := s.loadLeague(ctx, tx, op, leagueID)
		if err != nil {
			return err
		}
		status, err = s.draftLock(ctx, tx, op, league)
		if err != nil {
			return err
		}
		if status.Latched {
			return s.latch(ctx, tx, op, league.ID)
		}
		return nil
	})
	return status, err
}

func (s *Service) draftLock(ctx context.Context, r repository.Reader, op string, league model.League) (policy.LockStatus, error) {
	if league.DraftLockedAt != nil || !league.HasExplicitEvents() {
		return policy.DraftLock(league, nil, s.now()), nil
	}
	events, err := r.Events(ctx, repository.EventFilter{IDs: league.EventIDs})
	if err != nil {
		return policy.LockStatus{}, storageErr(op, err)
	}
	return policy.DraftLock(league, events, s.now()), nil
}

func (s *Service) latch(ctx context.Context, w repository.Writer, op string, leagueID uuid.UUID) error {
	at := s.now()
	if err := w.UpdateLeague(ctx, leagueID, repository.LeaguePatch{DraftLockedAt: &at}); err != nil {
		return storageErr(op, err)
	}
	metrics.RecordDraftLockLatched()
	s.log().Info(ctx, "draft locked", logger.String("leagueID", leagueID.String()))
	return nil
}

// ReplaceRoster replaces the whole current roster of a team while its draft is open.
func (s *Service) ReplaceRoster(ctx context.Context, userID string, teamID uuid.UUID, entries []RosterEntry) (TeamView, error) {
	const op = "replace_roster"

	var latchLeague uuid.UUID
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		_, league, err := s.loadOwnedTeam(ctx, tx, op, teamID, userID)
		if err != nil {
			return err
		}
		lock, err := s.draftLock(ctx, tx, op, league)
		if err != nil {
			return err
		}
		if lock.Locked {
			if lock.Latched {
				latchLeague = league.ID
			}
			return fault.New(op, fault.ErrRosterLocked, "roster is locked: "+lock.Reason)
		}
		if len(entries) > league.TeamSize {
			return fault.Newf(op, fault.ErrRosterTooLarge, "team size is %d, got %d athletes", league.TeamSize, len(entries))
		}
		captain, err := singleCaptain(op, entries)
		if err != nil {
			return err
		}
		ids, err := distinctAthletes(op, entries)
		if err != nil {
			return err
		}
		if err := s.requireAthletes(ctx, tx, op, ids); err != nil {
			return err
		}
		if err := s.validateTiers(ctx, tx, op, league, ids); err != nil {
			return err
		}
		return s.applyRoster(ctx, tx, op, teamID, entries, captain)
	})
	if err != nil {
		if latchLeague != uuid.Nil {
			s.persistLatch(ctx, op, latchLeague)
		}
		return TeamView{}, s.reject(ctx, op, err)
	}

	metrics.RecordRosterReplacement()
	s.log().Info(ctx, "roster replaced",
		logger.String("teamID", teamID.String()),
		logger.Int("athletes", len(entries)),
	)
	return s.Team(ctx, teamID)
}

// applyRoster closes every open roster interval and opens one per entry, all
// at the same instant. Captaincy history only moves when the captain changes.
func (s *Service) applyRoster(ctx context.Context, tx repository.Store, op string, teamID uuid.UUID, entries []RosterEntry, captain int64) error {
	now := s.now()
	team := []uuid.UUID{teamID}

	if _, err := tx.UpdateRosterIntervals(ctx,
		repository.RosterFilter{TeamIDs: team, OpenOnly: true},
		repository.RosterPatch{RemovedAt: &now},
	); err != nil {
		return storageErr(op, err)
	}
	rows := make([]model.RosterInterval, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, model.RosterInterval{
			ID:        uuid.New(),
			TeamID:    teamID,
			AthleteID: e.AthleteID,
			IsCaptain: e.IsCaptain,
			AddedAt:   now,
		})
	}
	if err := tx.InsertRosterIntervals(ctx, rows); err != nil {
		return storageErr(op, err)
	}

	open, err := tx.Captaincies(ctx, repository.CaptaincyFilter{TeamIDs: team, OpenOnly: true})
	if err != nil {
		return storageErr(op, err)
	}
	if len(open) == 1 && open[0].AthleteID == captain {
		return nil
	}
	return s.moveCaptaincy(ctx, tx, op, teamID, captain, now)
}

// moveCaptaincy closes the open captaincy interval at 'at' and opens one for athleteID.
func (s *Service) moveCaptaincy(ctx context.Context, tx repository.Store, op string, teamID uuid.UUID, athleteID int64, at time.Time) error {
	if _, err := tx.UpdateCaptaincies(ctx,
		repository.CaptaincyFilter{TeamIDs: []uuid.UUID{teamID}, OpenOnly: true},
		repository.CaptaincyPatch{ReplacedAt: &at},
	); err != nil {
		return storageErr(op, err)
	}
	if err := tx.InsertCaptaincy(ctx, model.CaptaincyInterval{
		ID:        uuid.New(),
		TeamID:    teamID,
		AthleteID: athleteID,
		SetAt:     at,
	}); err != nil {
		return storageErr(op, err)
	}
	metrics.RecordCaptainChange()
	return nil
}

// flagCaptain points the denormalized roster captain flag at athleteID.
func flagCaptain(ctx context.Context, tx repository.Store, op string, teamID uuid.UUID, athleteID int64) error {
	team := []uuid.UUID{teamID}
	if _, err := tx.UpdateRosterIntervals(ctx,
		repository.RosterFilter{TeamIDs: team, OpenOnly: true},
		repository.RosterPatch{IsCaptain: repository.Bool(false)},
	); err != nil {
		return storageErr(op, err)
	}
	if _, err := tx.UpdateRosterIntervals(ctx,
		repository.RosterFilter{TeamIDs: team, AthleteIDs: []int64{athleteID}, OpenOnly: true},
		repository.RosterPatch{IsCaptain: repository.Bool(true)},
	); err != nil {
		return storageErr(op, err)
	}
	return nil
}

// SetCaptain makes a current roster member captain while the draft is open.
func (s *Service) SetCaptain(ctx context.Context, userID string, teamID uuid.UUID, athleteID int64) (TeamView, error) {
	const op = "set_captain"

	var latchLeague uuid.UUID
	changed := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		_, league, err := s.loadOwnedTeam(ctx, tx, op, teamID, userID)
		if err != nil {
			return err
		}
		lock, err := s.draftLock(ctx, tx, op, league)
		if err != nil {
			return err
		}
		if lock.Locked {
			if lock.Latched {
				latchLeague = league.ID
			}
			return fault.New(op, fault.ErrRosterLocked, "roster is locked: "+lock.Reason)
		}
		rosters, captaincies, err := teamHistory(ctx, tx, op, teamID)
		if err != nil {
			return err
		}
		current := timeline.Current(rosters, captaincies)
		if !current.Contains(athleteID) {
			return fault.Newf(op, fault.ErrNotOnRoster, "athlete %d is not on the roster", athleteID)
		}
		if current.IsCaptain(athleteID) && hasOpenCaptaincy(captaincies) {
			return nil
		}
		changed = true
		if err := s.moveCaptaincy(ctx, tx, op, teamID, athleteID, s.now()); err != nil {
			return err
		}
		return flagCaptain(ctx, tx, op, teamID, athleteID)
	})
	if err != nil {
		if latchLeague != uuid.Nil {
			s.persistLatch(ctx, op, latchLeague)
		}
		return TeamView{}, s.reject(ctx, op, err)
	}
	if changed {
		s.log().Info(ctx, "captain set",
			logger.String("teamID", teamID.String()),
			logger.Int64("athleteID", athleteID),
		)
	}
	return s.Team(ctx, teamID)
}

// persistLatch records a draft lock observed by a rejected mutation, whose
// own transaction was rolled back.
func (s *Service) persistLatch(ctx context.Context, op string, leagueID uuid.UUID) {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		league, err := s.loadLeague(ctx, tx, op, leagueID)
		if err != nil || league.DraftLockedAt != nil {
			return err
		}
		return s.latch(ctx, tx, op, leagueID)
	})
	if err != nil {
		s.log().Error(ctx, "failed to record draft lock", logger.String("leagueID", leagueID.String()), logger.Error(err))
	}
}

// validateTiers checks a prospective roster against the league tier limits
// using the rankings of the current calendar year.
func (s *Service) validateTiers(ctx context.Context, r repository.Reader, op string, league model.League, ids []int64) error {
	if len(league.Tiers) == 0 || len(ids) == 0 {
		return nil
	}
	ranks, err := s.seasonRanks(ctx, r, op, league, ids)
	if err != nil {
		return err
	}
	err = tier.ValidateRoster(ids, ranks, league.Tiers)
	var limit *tier.LimitError
	if errors.As(err, &limit) {
		return &fault.Error{
			Op:     op,
			Kind:   fault.ErrConflict,
			Reason: fault.ErrTierLimitExceeded,
			Detail: limit.Error(),
			Err:    limit,
		}
	}
	return err
}

// seasonRanks returns the current-season world rank of each of ids that has one.
func (s *Service) seasonRanks(ctx context.Context, r repository.Reader, op string, league model.League, ids []int64) (map[int64]int, error) {
	rankings, err := r.Rankings(ctx, repository.RankingFilter{
		Season:     s.clock.Now().UTC().Year(),
		Discipline: league.Discipline,
		Gender:     league.Gender,
		AthleteIDs: ids,
	})
	if err != nil {
		return nil, storageErr(op, err)
	}
	ranks := make(map[int64]int, len(rankings))
	for _, rk := range rankings {
		ranks[rk.AthleteID] = rk.Rank
	}
	return ranks, nil
}

func (s *Service) requireAthletes(ctx context.Context, r repository.Reader, op string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := r.Athletes(ctx, repository.AthleteFilter{IDs: ids})
	if err != nil {
		return storageErr(op, err)
	}
	have := make(map[int64]struct{}, len(found))
	for _, a := range found {
		have[a.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return fault.Newf(op, fault.ErrAthleteNotFound, "athlete %d not found", id)
		}
	}
	return nil
}

func (s *Service) athletesByID(ctx context.Context, op string, ids []int64) (map[int64]model.Athlete, error) {
	out := make(map[int64]model.Athlete, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	athletes, err := s.store.Athletes(ctx, repository.AthleteFilter{IDs: ids})
	if err != nil {
		return nil, storageErr(op, err)
	}
	for _, a := range athletes {
		out[a.ID] = a
	}
	return out, nil
}

func teamHistory(ctx context.Context, r repository.Reader, op string, teamID uuid.UUID) ([]model.RosterInterval, []model.CaptaincyInterval, error) {
	team := []uuid.UUID{teamID}
	rosters, err := r.RosterIntervals(ctx, repository.RosterFilter{TeamIDs: team})
	if err != nil {
		return nil, nil, storageErr(op, err)
	}
	captaincies, err := r.Captaincies(ctx, repository.CaptaincyFilter{TeamIDs: team})
	if err != nil {
		return nil, nil, storageErr(op, err)
	}
	return rosters, captaincies, nil
}

func hasOpenCaptaincy(cs []model.CaptaincyInterval) bool {
	for _, c := range cs {
		if c.Open() {
			return true
		}
	}
	return false
}

func singleCaptain(op string, entries []RosterEntry) (int64, error) {
	var captain int64
	n := 0
	for _, e := range entries {
		if e.IsCaptain {
			captain = e.AthleteID
			n++
		}
	}
	if n != 1 {
		return 0, fault.Newf(op, fault.ErrInvalidCaptainCount, "exactly one captain required, got %d", n)
	}
	return captain, nil
}

func distinctAthletes(op string, entries []RosterEntry) ([]int64, error) {
	seen := make(map[int64]struct{}, len(entries))
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.AthleteID]; dup {
			return nil, fault.New(op, fault.ErrDuplicateAthlete, fmt.Sprintf("athlete %d listed twice", e.AthleteID))
		}
		seen[e.AthleteID] = struct{}{}
		ids = append(ids, e.AthleteID)
	}
	return ids, nil
}
