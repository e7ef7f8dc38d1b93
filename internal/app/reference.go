package service

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/tier"
)

// EventQuery filters the event catalogue. Zero fields match everything.
type EventQuery struct {
	Discipline model.Discipline
	Gender     model.Gender
	Status     model.EventStatus
}

// RankedAthlete is a world ranking row with the athlete's details.
type RankedAthlete struct {
	model.Ranking
	Name    string `json:"name"`
	Country string `json:"country"`
}

// AthleteTier is an athlete's tier within a league.
type AthleteTier struct {
	AthleteID int64  `json:"athlete_id"`
	Tier      string `json:"tier"`
	Rank      *int   `json:"rank,omitempty"`
	Season    int    `json:"season"`
}

// Athletes lists athletes, optionally of one gender.
func (s *Service) Athletes(ctx context.Context, gender model.Gender) ([]model.Athlete, error) {
	const op = "list_athletes"

	if gender != "" {
		g, ok := model.ParseGender(string(gender))
		if !ok {
			return nil, fault.Newf(op, fault.ErrBadRequest, "unknown gender %q", gender)
		}
		gender = g
	}
	athletes, err := s.store.Athletes(ctx, repository.AthleteFilter{Gender: gender})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return athletes, nil
}

// Athlete returns one athlete.
func (s *Service) Athlete(ctx context.Context, id int64) (model.Athlete, error) {
	const op = "get_athlete"

	athletes, err := s.store.Athletes(ctx, repository.AthleteFilter{IDs: []int64{id}})
	if err != nil {
		return model.Athlete{}, storageErr(op, err)
	}
	if len(athletes) == 0 {
		return model.Athlete{}, fault.Newf(op, fault.ErrAthleteNotFound, "athlete %d not found", id)
	}
	return athletes[0], nil
}

// Events lists events ordered by date.
func (s *Service) Events(ctx context.Context, q EventQuery) ([]model.Event, error) {
	const op = "list_events"

	f := repository.EventFilter{}
	if q.Discipline != "" {
		d, ok := model.ParseDiscipline(string(q.Discipline))
		if !ok {
			return nil, fault.Newf(op, fault.ErrBadRequest, "unknown discipline %q", q.Discipline)
		}
		f.Discipline = d
	}
	if q.Gender != "" {
		g, ok := model.ParseGender(string(q.Gender))
		if !ok {
			return nil, fault.Newf(op, fault.ErrBadRequest, "unknown gender %q", q.Gender)
		}
		f.Gender = g
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, fault.Newf(op, fault.ErrBadRequest, "unknown status %q", q.Status)
		}
		f.Statuses = []model.EventStatus{q.Status}
	}
	events, err := s.store.Events(ctx, f)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return events, nil
}

// Event returns one event.
func (s *Service) Event(ctx context.Context, id int64) (model.Event, error) {
	return s.loadEvent(ctx, s.store, "get_event", id)
}

// Rankings returns a world ranking ordered by rank.
func (s *Service) Rankings(ctx context.Context, discipline model.Discipline, gender model.Gender, season int) ([]RankedAthlete, error) {
	const op = "rankings"

	d, ok := model.ParseDiscipline(string(discipline))
	if !ok {
		return nil, fault.Newf(op, fault.ErrBadRequest, "unknown discipline %q", discipline)
	}
	g, ok := model.ParseGender(string(gender))
	if !ok {
		return nil, fault.Newf(op, fault.ErrBadRequest, "unknown gender %q", gender)
	}
	if season <= 0 {
		return nil, fault.Newf(op, fault.ErrBadRequest, "invalid season %d", season)
	}
	rankings, err := s.store.Rankings(ctx, repository.RankingFilter{Season: season, Discipline: d, Gender: g})
	if err != nil {
		return nil, storageErr(op, err)
	}
	sort.SliceStable(rankings, func(i, j int) bool { return rankings[i].Rank < rankings[j].Rank })

	ids := make([]int64, 0, len(rankings))
	for _, r := range rankings {
		ids = append(ids, r.AthleteID)
	}
	athletes, err := s.athletesByID(ctx, op, ids)
	if err != nil {
		return nil, err
	}
	out := make([]RankedAthlete, 0, len(rankings))
	for _, r := range rankings {
		a := athletes[r.AthleteID]
		out = append(out, RankedAthlete{Ranking: r, Name: a.Name, Country: a.Country})
	}
	return out, nil
}

// AthleteTier classifies an athlete under a league's tiers using the
// current season's ranking.
func (s *Service) AthleteTier(ctx context.Context, leagueID uuid.UUID, athleteID int64) (AthleteTier, error) {
	const op = "athlete_tier"

	league, err := s.loadLeague(ctx, s.store, op, leagueID)
	if err != nil {
		return AthleteTier{}, err
	}
	if _, err := s.Athlete(ctx, athleteID); err != nil {
		return AthleteTier{}, err
	}
	ranks, err := s.seasonRanks(ctx, s.store, op, league, []int64{athleteID})
	if err != nil {
		return AthleteTier{}, err
	}
	out := AthleteTier{AthleteID: athleteID, Season: s.clock.Now().UTC().Year()}
	if r, ok := ranks[athleteID]; ok {
		out.Rank = &r
	}
	out.Tier = tier.Classify(out.Rank, league.Tiers)
	return out, nil
}
