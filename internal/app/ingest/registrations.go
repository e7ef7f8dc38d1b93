package ingest

import (
	"context"
	"fmt"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// SyncRegistrations stores the registered athletes of every matching season
// event and links them to the event of their gender.
func (s *Syncer) SyncRegistrations(ctx context.Context, year int) Report {
	rep := newReporter(s.logger)
	infos, ok := s.seasonEvents(ctx, year, rep)
	if !ok {
		return rep.result()
	}
	s.forEach(ctx, infos, func(ctx context.Context, info provider.EventInfo) {
		athletes, regs, err := s.eventRegistrations(ctx, info.EventID)
		if err != nil {
			rep.fail(ctx, KindRegistrations, fmt.Errorf("registrations for %d: %w", info.EventID, err))
			return
		}
		rep.add(KindEvents, 1)
		rep.add(KindAthletes, athletes)
		rep.add(KindRegistrations, regs)
	})
	return rep.result()
}

func (s *Syncer) eventRegistrations(ctx context.Context, providerID int64) (int, int, error) {
	list, err := s.source.Registrations(ctx, providerID)
	if err != nil {
		return 0, 0, err
	}
	athletes := make(map[int64]model.Athlete, len(list))
	regs := make([]model.Registration, 0, len(list))
	for _, r := range list {
		g := r.ModelGender()
		athletes[r.AthleteID] = model.Athlete{
			ID:      r.AthleteID,
			Name:    r.FullName(),
			Country: r.Country,
			Gender:  g,
		}
		regs = append(regs, model.Registration{
			EventID:   model.InternalEventID(providerID, g),
			AthleteID: r.AthleteID,
		})
	}
	rows := make([]model.Athlete, 0, len(athletes))
	for _, id := range sortedKeys(athletes) {
		rows = append(rows, athletes[id])
	}
	if err := s.store.UpsertAthletes(ctx, rows); err != nil {
		return 0, 0, fmt.Errorf("store athletes: %w", err)
	}
	if err := s.store.UpsertRegistrations(ctx, regs); err != nil {
		return 0, 0, fmt.Errorf("store registrations: %w", err)
	}
	return len(rows), len(regs), nil
}
