package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// Zero-valued filter fields match everything.

// AthleteFilter selects athletes.
type AthleteFilter struct {
	IDs    []int64
	Gender model.Gender
}

func (f AthleteFilter) match(a model.Athlete) bool {
	return containsOrEmpty(f.IDs, a.ID) && (f.Gender == "" || f.Gender == a.Gender)
}

// EventFilter selects events.
type EventFilter struct {
	IDs        []int64
	Discipline model.Discipline
	Gender     model.Gender
	Statuses   []model.EventStatus
}

func (f EventFilter) match(e model.Event) bool {
	return containsOrEmpty(f.IDs, e.ID) &&
		(f.Discipline == "" || f.Discipline == e.Discipline) &&
		(f.Gender == "" || f.Gender == e.Gender) &&
		containsOrEmpty(f.Statuses, e.Status)
}

// ResultFilter selects results.
type ResultFilter struct {
	EventIDs   []int64
	AthleteIDs []int64
}

func (f ResultFilter) match(r model.Result) bool {
	return containsOrEmpty(f.EventIDs, r.EventID) && containsOrEmpty(f.AthleteIDs, r.AthleteID)
}

// RankingFilter selects world rankings.
type RankingFilter struct {
	Season     int
	Discipline model.Discipline
	Gender     model.Gender
	AthleteIDs []int64
}

func (f RankingFilter) match(r model.Ranking) bool {
	return (f.Season == 0 || f.Season == r.Season) &&
		(f.Discipline == "" || f.Discipline == r.Discipline) &&
		(f.Gender == "" || f.Gender == r.Gender) &&
		containsOrEmpty(f.AthleteIDs, r.AthleteID)
}

// LeagueFilter selects leagues.
type LeagueFilter struct {
	IDs        []uuid.UUID
	InviteCode string
}

func (f LeagueFilter) match(l model.League) bool {
	return containsOrEmpty(f.IDs, l.ID) && (f.InviteCode == "" || f.InviteCode == l.InviteCode)
}

// MemberFilter selects league memberships.
type MemberFilter struct {
	LeagueID uuid.UUID
	UserID   string
}

func (f MemberFilter) match(m model.LeagueMember) bool {
	return (f.LeagueID == uuid.Nil || f.LeagueID == m.LeagueID) && (f.UserID == "" || f.UserID == m.UserID)
}

// TeamFilter selects teams.
type TeamFilter struct {
	IDs       []uuid.UUID
	LeagueIDs []uuid.UUID
	UserID    string
}

func (f TeamFilter) match(t model.Team) bool {
	return containsOrEmpty(f.IDs, t.ID) && containsOrEmpty(f.LeagueIDs, t.LeagueID) &&
		(f.UserID == "" || f.UserID == t.UserID)
}

// RosterFilter selects roster intervals. AddedAt and RemovedAt match exact
// instants; OpenOnly keeps intervals with no RemovedAt.
type RosterFilter struct {
	TeamIDs    []uuid.UUID
	AthleteIDs []int64
	OpenOnly   bool
	AddedAt    *time.Time
	RemovedAt  *time.Time
}

func (f RosterFilter) match(r model.RosterInterval) bool {
	return containsOrEmpty(f.TeamIDs, r.TeamID) &&
		containsOrEmpty(f.AthleteIDs, r.AthleteID) &&
		(!f.OpenOnly || r.RemovedAt == nil) &&
		(f.AddedAt == nil || f.AddedAt.Equal(r.AddedAt)) &&
		(f.RemovedAt == nil || (r.RemovedAt != nil && f.RemovedAt.Equal(*r.RemovedAt)))
}

// RosterPatch updates roster intervals. Reopen clears RemovedAt and cannot be
// combined with RemovedAt.
type RosterPatch struct {
	RemovedAt *time.Time
	Reopen    bool
	IsCaptain *bool
}

func (p RosterPatch) validate() error {
	if p.Reopen && p.RemovedAt != nil {
		return ErrInvalidPatch
	}
	return nil
}

func (p RosterPatch) apply(r *model.RosterInterval) {
	if p.RemovedAt != nil {
		t := *p.RemovedAt
		r.RemovedAt = &t
	}
	if p.Reopen {
		r.RemovedAt = nil
	}
	if p.IsCaptain != nil {
		r.IsCaptain = *p.IsCaptain
	}
}

// CaptaincyFilter selects captaincy intervals.
type CaptaincyFilter struct {
	TeamIDs    []uuid.UUID
	OpenOnly   bool
	SetAt      *time.Time
	ReplacedAt *time.Time
}

func (f CaptaincyFilter) match(c model.CaptaincyInterval) bool {
	return containsOrEmpty(f.TeamIDs, c.TeamID) &&
		(!f.OpenOnly || c.ReplacedAt == nil) &&
		(f.SetAt == nil || f.SetAt.Equal(c.SetAt)) &&
		(f.ReplacedAt == nil || (c.ReplacedAt != nil && f.ReplacedAt.Equal(*c.ReplacedAt)))
}

// CaptaincyPatch updates captaincy intervals.
type CaptaincyPatch struct {
	ReplacedAt *time.Time
	Reopen     bool
}

func (p CaptaincyPatch) validate() error {
	if p.Reopen == (p.ReplacedAt != nil) {
		return ErrInvalidPatch
	}
	return nil
}

func (p CaptaincyPatch) apply(c *model.CaptaincyInterval) {
	if p.Reopen {
		c.ReplacedAt = nil
		return
	}
	t := *p.ReplacedAt
	c.ReplacedAt = &t
}

// TransferFilter selects transfers. Reverted nil matches both states.
type TransferFilter struct {
	IDs          []uuid.UUID
	TeamIDs      []uuid.UUID
	AfterEventID int64
	AthleteOutID int64
	Reverted     *bool
}

func (f TransferFilter) match(t model.Transfer) bool {
	return containsOrEmpty(f.IDs, t.ID) &&
		containsOrEmpty(f.TeamIDs, t.TeamID) &&
		(f.AfterEventID == 0 || f.AfterEventID == t.AfterEventID) &&
		(f.AthleteOutID == 0 || f.AthleteOutID == t.AthleteOutID) &&
		(f.Reverted == nil || *f.Reverted == (t.RevertedAt != nil))
}

// TransferPatch updates transfers.
type TransferPatch struct {
	RevertedAt *time.Time
}

func (p TransferPatch) validate() error {
	if p.RevertedAt == nil {
		return ErrInvalidPatch
	}
	return nil
}

// LeaguePatch updates a league. Only the draft lock latch is mutable.
type LeaguePatch struct {
	DraftLockedAt *time.Time
}

// Bool returns a pointer to b, for Reverted filters and IsCaptain patches.
func Bool(b bool) *bool { return &b }

func containsOrEmpty[T comparable](set []T, v T) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
