package ingest

import (
	"context"
	"fmt"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

// SyncEventResults stores athletes and results of every finished category of
// one provider event and marks those categories completed.
func (s *Syncer) SyncEventResults(ctx context.Context, providerID int64) Report {
	rep := newReporter(s.logger)
	s.eventResults(ctx, providerID, rep)
	return rep.result()
}

// SyncSeasonResults runs SyncEventResults for every season event that
// passes the league and discipline filters.
func (s *Syncer) SyncSeasonResults(ctx context.Context, year int) Report {
	rep := newReporter(s.logger)
	infos, ok := s.seasonEvents(ctx, year, rep)
	if !ok {
		return rep.result()
	}
	s.forEach(ctx, infos, func(ctx context.Context, info provider.EventInfo) {
		if s.eventResults(ctx, info.EventID, rep) {
			rep.add(KindEvents, 1)
		}
	})
	return rep.result()
}

// eventResults reports whether the provider event could be fetched.
func (s *Syncer) eventResults(ctx context.Context, providerID int64, rep *reporter) bool {
	full, err := s.source.Event(ctx, providerID)
	if err != nil {
		rep.fail(ctx, KindResults, fmt.Errorf("event %d: %w", providerID, err))
		return false
	}
	if full.ID == 0 {
		full.ID = providerID
	}
	for _, c := range full.DCats {
		if !c.Finished() {
			s.logger.Debug(ctx, "skipping unfinished category",
				logger.String("category", c.DcatName), logger.String("status", c.Status))
			continue
		}
		if _, _, ok := s.category(c); !ok {
			continue
		}
		athletes, results, err := s.categoryResults(ctx, full, c)
		if err != nil {
			rep.fail(ctx, KindResults, fmt.Errorf("event %d category %d: %w", providerID, c.DcatID, err))
			continue
		}
		rep.add(KindCategories, 1)
		rep.add(KindAthletes, athletes)
		rep.add(KindResults, results)
	}
	return true
}

// categoryResults upserts the category's event as completed, the placed
// athletes and their results. Unplaced athletes are skipped.
func (s *Syncer) categoryResults(ctx context.Context, full provider.FullEvent, c provider.Category) (int, int, error) {
	res, err := s.source.Results(ctx, full.ID, c.DcatID)
	if err != nil {
		return 0, 0, err
	}
	event, err := s.eventRecord(ctx, full, c, model.EventCompleted)
	if err != nil {
		return 0, 0, err
	}

	athletes := make(map[int64]model.Athlete, len(res.Ranking))
	results := make([]model.Result, 0, len(res.Ranking))
	for _, row := range res.Ranking {
		if row.Rank == nil {
			continue
		}
		athletes[row.AthleteID] = model.Athlete{
			ID:      row.AthleteID,
			Name:    row.FullName(),
			Country: row.Country,
			Gender:  event.Gender,
		}
		results = append(results, model.Result{
			EventID:   event.ID,
			AthleteID: row.AthleteID,
			Rank:      *row.Rank,
			Score:     s.table.Points(*row.Rank),
		})
	}

	rows := make([]model.Athlete, 0, len(athletes))
	for _, id := range sortedKeys(athletes) {
		rows = append(rows, athletes[id])
	}
	if err := s.store.UpsertEvents(ctx, []model.Event{event}); err != nil {
		return 0, 0, fmt.Errorf("store event: %w", err)
	}
	if err := s.store.UpsertAthletes(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("store athletes: %w", err)
	}
	if err := s.store.UpsertResults(ctx, results); err != nil {
		return 0, 0, fmt.Errorf("store results: %w", err)
	}
	s.logger.Info(ctx, "synced results",
		logger.Int64("event_id", event.ID),
		logger.String("category", c.DcatName),
		logger.Int("results", len(results)))
	return len(rows), len(results), nil
}
