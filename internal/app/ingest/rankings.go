package ingest

import (
	"context"
	"fmt"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

// Categories lists every discipline/gender pair with a world ranking.
var Categories = []struct { //nolint:gochecknoglobals // fixed category list
	Discipline model.Discipline
	Gender     model.Gender
}{
	{model.DisciplineBoulder, model.GenderMen},
	{model.DisciplineBoulder, model.GenderWomen},
	{model.DisciplineLead, model.GenderMen},
	{model.DisciplineLead, model.GenderWomen},
	{model.DisciplineSpeed, model.GenderMen},
	{model.DisciplineSpeed, model.GenderWomen},
}

// SyncRankings stores the world ranking of one discipline and gender for a
// season, upserting the ranked athletes first.
func (s *Syncer) SyncRankings(ctx context.Context, year int, d model.Discipline, g model.Gender) Report {
	rep := newReporter(s.logger)
	s.rankings(ctx, year, d, g, rep)
	return rep.result()
}

// SyncAllRankings runs SyncRankings for every category.
func (s *Syncer) SyncAllRankings(ctx context.Context, year int) Report {
	rep := newReporter(s.logger)
	for _, c := range Categories {
		if ctx.Err() != nil {
			rep.fail(ctx, KindRankings, ctx.Err())
			break
		}
		s.rankings(ctx, year, c.Discipline, c.Gender, rep)
	}
	return rep.result()
}

func (s *Syncer) rankings(ctx context.Context, year int, d model.Discipline, g model.Gender, rep *reporter) {
	cuwr, err := provider.CUWRID(d, g)
	if err != nil {
		rep.fail(ctx, KindRankings, err)
		return
	}
	entries, err := s.source.WorldRanking(ctx, cuwr, year)
	if err != nil {
		rep.fail(ctx, KindRankings, fmt.Errorf("ranking %s/%s %d: %w", d, g, year, err))
		return
	}

	athletes := make([]model.Athlete, 0, len(entries))
	rankings := make([]model.Ranking, 0, len(entries))
	for _, e := range entries {
		athletes = append(athletes, model.Athlete{ID: e.AthleteID, Name: e.FullName(), Country: e.Country, Gender: g})
		rankings = append(rankings, model.Ranking{
			Season:     year,
			Discipline: d,
			Gender:     g,
			AthleteID:  e.AthleteID,
			Rank:       e.Rank,
			Score:      e.Score,
		})
	}
	if err := s.store.UpsertAthletes(ctx, athletes); err != nil {
		rep.fail(ctx, KindRankings, fmt.Errorf("store athletes: %w", err))
		return
	}
	if err := s.store.UpsertRankings(ctx, rankings); err != nil {
		rep.fail(ctx, KindRankings, fmt.Errorf("store rankings: %w", err))
		return
	}
	rep.add(KindRankings, len(rankings))
	s.logger.Info(ctx, "synced rankings",
		logger.String("discipline", string(d)),
		logger.String("gender", string(g)),
		logger.Int("season", year),
		logger.Int("entries", len(rankings)))
}
