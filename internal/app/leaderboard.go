package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/scoring"
	"github.com/okian/fantasy-climbing/internal/domain/timeline"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// LeaderboardEntry is one team's standing in a league.
type LeaderboardEntry struct {
	Rank        int           `json:"rank"`
	TeamID      uuid.UUID     `json:"team_id"`
	TeamName    string        `json:"team_name"`
	UserID      string        `json:"user_id"`
	TotalScore  int           `json:"total_score"`
	EventScores map[int64]int `json:"event_scores"`
}

// AthleteScore is one athlete's contribution to a team in one event.
type AthleteScore struct {
	AthleteID   int64  `json:"athlete_id"`
	Name        string `json:"athlete_name"`
	Country     string `json:"country"`
	IsCaptain   bool   `json:"is_captain"`
	Rank        *int   `json:"rank"`
	BasePoints  int    `json:"base_points"`
	TotalPoints int    `json:"total_points"`
}

// EventBreakdown is a team's score in one event.
type EventBreakdown struct {
	EventID     int64             `json:"event_id"`
	EventName   string            `json:"event_name"`
	EventDate   time.Time         `json:"event_date"`
	EventStatus model.EventStatus `json:"event_status"`
	TeamTotal   int               `json:"team_total"`
	Athletes    []AthleteScore    `json:"athlete_scores"`
}

// TeamBreakdown is a team's score in every event of its league.
type TeamBreakdown struct {
	TeamID   uuid.UUID        `json:"team_id"`
	TeamName string           `json:"team_name"`
	LeagueID uuid.UUID        `json:"league_id"`
	Events   []EventBreakdown `json:"events"`
}

// TeamEventScore is one team's row in a league event breakdown.
type TeamEventScore struct {
	TeamID    uuid.UUID      `json:"team_id"`
	TeamName  string         `json:"team_name"`
	UserID    string         `json:"user_id"`
	TeamTotal int            `json:"team_total"`
	Athletes  []AthleteScore `json:"athletes"`
}

// LeagueEventBreakdown is every team's score in one event.
type LeagueEventBreakdown struct {
	EventID     int64             `json:"event_id"`
	EventName   string            `json:"event_name"`
	EventDate   time.Time         `json:"event_date"`
	EventStatus model.EventStatus `json:"event_status"`
	Teams       []TeamEventScore  `json:"teams"`
}

// LeagueBreakdown is the per-event score breakdown of a league.
type LeagueBreakdown struct {
	LeagueID uuid.UUID              `json:"league_id"`
	Events   []LeagueEventBreakdown `json:"events"`
}

// ScoringConfig is the read-only scoring surface shown to clients.
type ScoringConfig struct {
	Points                   []scoring.Entry `json:"points"`
	DefaultCaptainMultiplier float64         `json:"captain_multiplier"`
	FloorPoints              int             `json:"floor_points"`
}

// ScoringConfig returns the points table and default captain multiplier.
func (s *Service) ScoringConfig() ScoringConfig {
	return ScoringConfig{
		Points:                   s.table.Entries(),
		DefaultCaptainMultiplier: s.defaults.CaptainMultiplier,
		FloorPoints:              s.table.Floor(),
	}
}

// TeamScoreForEvent scores a team's roster as it stood at the event date.
// Athletes without a result contribute nothing.
func (s *Service) TeamScoreForEvent(ctx context.Context, teamID uuid.UUID, eventID int64) (int, error) {
	const op = "team_score"

	_, league, err := s.loadTeam(ctx, s.store, op, teamID)
	if err != nil {
		return 0, err
	}
	event, err := s.loadEvent(ctx, s.store, op, eventID)
	if err != nil {
		return 0, err
	}
	rosters, captaincies, err := teamHistory(ctx, s.store, op, teamID)
	if err != nil {
		return 0, err
	}
	results, err := s.store.Results(ctx, repository.ResultFilter{EventIDs: []int64{eventID}})
	if err != nil {
		return 0, storageErr(op, err)
	}
	snap := timeline.ActiveRosterAt(rosters, captaincies, event.Date)
	total, _ := scoreSnapshot(s.scorer(league.CaptainMultiplier), snap, ranksByAthlete(results), nil)
	metrics.RecordTeamEventScore()
	return total, nil
}

// LeagueLeaderboard totals every team's score over the completed events of a
// league and ranks them by total, highest first. Equal totals keep team
// creation order and still get distinct ranks.
func (s *Service) LeagueLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]LeaderboardEntry, error) {
	const op = "leaderboard"
	start := time.Now()

	league, err := s.loadLeague(ctx, s.store, op, leagueID)
	if err != nil {
		return nil, err
	}
	teams, err := s.store.Teams(ctx, repository.TeamFilter{LeagueIDs: []uuid.UUID{leagueID}})
	if err != nil {
		return nil, storageErr(op, err)
	}
	if len(teams) == 0 {
		return []LeaderboardEntry{}, nil
	}
	events, err := scopeEvents(ctx, s.store, league)
	if err != nil {
		return nil, storageErr(op, err)
	}
	completed := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.Status == model.EventCompleted {
			completed = append(completed, e)
		}
	}
	ranks, err := s.eventRanks(ctx, op, completed)
	if err != nil {
		return nil, err
	}

	scorer := s.scorer(league.CaptainMultiplier)
	entries := make([]LeaderboardEntry, len(teams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, team := range teams {
		g.Go(func() error {
			rosters, captaincies, err := teamHistory(gctx, s.store, op, team.ID)
			if err != nil {
				return err
			}
			entry := LeaderboardEntry{
				TeamID:      team.ID,
				TeamName:    team.Name,
				UserID:      team.UserID,
				EventScores: make(map[int64]int, len(completed)),
			}
			for _, e := range completed {
				snap := timeline.ActiveRosterAt(rosters, captaincies, e.Date)
				score, _ := scoreSnapshot(scorer, snap, ranks[e.ID], nil)
				entry.EventScores[e.ID] = score
				entry.TotalScore += score
				metrics.RecordTeamEventScore()
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].TotalScore > entries[j].TotalScore })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	metrics.RecordLeaderboardLatency(float64(time.Since(start).Microseconds()) / 1000)
	return entries, nil
}

// TeamBreakdown scores a team in every event of its league, oldest first.
func (s *Service) TeamBreakdown(ctx context.Context, teamID uuid.UUID) (TeamBreakdown, error) {
	const op = "team_breakdown"

	team, league, err := s.loadTeam(ctx, s.store, op, teamID)
	if err != nil {
		return TeamBreakdown{}, err
	}
	events, err := scopeEvents(ctx, s.store, league)
	if err != nil {
		return TeamBreakdown{}, storageErr(op, err)
	}
	rosters, captaincies, err := teamHistory(ctx, s.store, op, teamID)
	if err != nil {
		return TeamBreakdown{}, err
	}
	ranks, err := s.eventRanks(ctx, op, events)
	if err != nil {
		return TeamBreakdown{}, err
	}
	athletes, err := s.athletesByID(ctx, op, rosterAthletes(rosters))
	if err != nil {
		return TeamBreakdown{}, err
	}

	scorer := s.scorer(league.CaptainMultiplier)
	out := TeamBreakdown{TeamID: team.ID, TeamName: team.Name, LeagueID: league.ID, Events: make([]EventBreakdown, 0, len(events))}
	for _, e := range events {
		snap := timeline.ActiveRosterAt(rosters, captaincies, e.Date)
		total, rows := scoreSnapshot(scorer, snap, ranks[e.ID], athletes)
		out.Events = append(out.Events, EventBreakdown{
			EventID:     e.ID,
			EventName:   e.Name,
			EventDate:   e.Date,
			EventStatus: e.Status,
			TeamTotal:   total,
			Athletes:    rows,
		})
	}
	return out, nil
}

// LeagueBreakdown scores every team of a league in every event, oldest event
// first, teams ordered by their event total.
func (s *Service) LeagueBreakdown(ctx context.Context, leagueID uuid.UUID) (LeagueBreakdown, error) {
	const op = "league_breakdown"

	league, err := s.loadLeague(ctx, s.store, op, leagueID)
	if err != nil {
		return LeagueBreakdown{}, err
	}
	out := LeagueBreakdown{LeagueID: league.ID, Events: []LeagueEventBreakdown{}}
	teams, err := s.store.Teams(ctx, repository.TeamFilter{LeagueIDs: []uuid.UUID{leagueID}})
	if err != nil {
		return LeagueBreakdown{}, storageErr(op, err)
	}
	if len(teams) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(teams))
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	rosters, err := s.store.RosterIntervals(ctx, repository.RosterFilter{TeamIDs: ids})
	if err != nil {
		return LeagueBreakdown{}, storageErr(op, err)
	}
	captaincies, err := s.store.Captaincies(ctx, repository.CaptaincyFilter{TeamIDs: ids})
	if err != nil {
		return LeagueBreakdown{}, storageErr(op, err)
	}
	events, err := scopeEvents(ctx, s.store, league)
	if err != nil {
		return LeagueBreakdown{}, storageErr(op, err)
	}
	ranks, err := s.eventRanks(ctx, op, events)
	if err != nil {
		return LeagueBreakdown{}, err
	}
	athletes, err := s.athletesByID(ctx, op, rosterAthletes(rosters))
	if err != nil {
		return LeagueBreakdown{}, err
	}

	rostersByTeam := make(map[uuid.UUID][]model.RosterInterval, len(teams))
	for _, r := range rosters {
		rostersByTeam[r.TeamID] = append(rostersByTeam[r.TeamID], r)
	}
	captainsByTeam := make(map[uuid.UUID][]model.CaptaincyInterval, len(teams))
	for _, c := range captaincies {
		captainsByTeam[c.TeamID] = append(captainsByTeam[c.TeamID], c)
	}

	scorer := s.scorer(league.CaptainMultiplier)
	for _, e := range events {
		eb := LeagueEventBreakdown{
			EventID:     e.ID,
			EventName:   e.Name,
			EventDate:   e.Date,
			EventStatus: e.Status,
			Teams:       make([]TeamEventScore, 0, len(teams)),
		}
		for _, t := range teams {
			snap := timeline.ActiveRosterAt(rostersByTeam[t.ID], captainsByTeam[t.ID], e.Date)
			total, rows := scoreSnapshot(scorer, snap, ranks[e.ID], athletes)
			eb.Teams = append(eb.Teams, TeamEventScore{
				TeamID:    t.ID,
				TeamName:  t.Name,
				UserID:    t.UserID,
				TeamTotal: total,
				Athletes:  rows,
			})
		}
		sort.SliceStable(eb.Teams, func(i, j int) bool { return eb.Teams[i].TeamTotal > eb.Teams[j].TeamTotal })
		out.Events = append(out.Events, eb)
	}
	return out, nil
}

// eventRanks loads the results of events as event id -> athlete id -> rank.
func (s *Service) eventRanks(ctx context.Context, op string, events []model.Event) (map[int64]map[int64]int, error) {
	out := make(map[int64]map[int64]int, len(events))
	if len(events) == 0 {
		return out, nil
	}
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	results, err := s.store.Results(ctx, repository.ResultFilter{EventIDs: ids})
	if err != nil {
		return nil, storageErr(op, err)
	}
	for _, r := range results {
		if out[r.EventID] == nil {
			out[r.EventID] = make(map[int64]int)
		}
		out[r.EventID][r.AthleteID] = r.Rank
	}
	return out, nil
}

// scoreSnapshot sums the points of a reconstructed roster. When athletes is
// non-nil it also returns per-athlete rows sorted by points, highest first.
func scoreSnapshot(scorer *scoring.Scorer, snap timeline.Snapshot, ranks map[int64]int, athletes map[int64]model.Athlete) (int, []AthleteScore) {
	total := 0
	var rows []AthleteScore
	if athletes != nil {
		rows = make([]AthleteScore, 0, len(snap.AthleteIDs))
	}
	for _, id := range snap.AthleteIDs {
		captain := snap.IsCaptain(id)
		row := AthleteScore{AthleteID: id, IsCaptain: captain}
		if rank, ok := ranks[id]; ok {
			r := rank
			row.Rank = &r
			row.BasePoints = scorer.Base(rank)
			row.TotalPoints = scorer.Score(rank, captain)
			total += row.TotalPoints
		}
		if athletes != nil {
			a := athletes[id]
			row.Name, row.Country = a.Name, a.Country
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalPoints > rows[j].TotalPoints })
	return total, rows
}

func ranksByAthlete(results []model.Result) map[int64]int {
	out := make(map[int64]int, len(results))
	for _, r := range results {
		out[r.AthleteID] = r.Rank
	}
	return out
}

func rosterAthletes(rosters []model.RosterInterval) []int64 {
	seen := make(map[int64]struct{}, len(rosters))
	ids := make([]int64, 0, len(rosters))
	for _, r := range rosters {
		if _, ok := seen[r.AthleteID]; !ok {
			seen[r.AthleteID] = struct{}{}
			ids = append(ids, r.AthleteID)
		}
	}
	return ids
}
