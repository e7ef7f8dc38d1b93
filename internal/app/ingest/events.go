package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

// SyncEvents stores one event per discipline/gender category of every
// matching season event. Status only moves forward.
func (s *Syncer) SyncEvents(ctx context.Context, year int) Report {
	rep := newReporter(s.logger)
	infos, ok := s.seasonEvents(ctx, year, rep)
	if !ok {
		return rep.result()
	}
	s.forEach(ctx, infos, func(ctx context.Context, info provider.EventInfo) {
		n, err := s.syncEvent(ctx, info.EventID)
		if err != nil {
			rep.fail(ctx, KindEvents, fmt.Errorf("sync event %d: %w", info.EventID, err))
			return
		}
		rep.add(KindCategories, n)
		rep.add(KindEvents, 1)
		s.logger.Debug(ctx, "synced event", logger.String("event", info.Event), logger.Int64("provider_id", info.EventID))
	})
	return rep.result()
}

func (s *Syncer) syncEvent(ctx context.Context, providerID int64) (int, error) {
	full, err := s.source.Event(ctx, providerID)
	if err != nil {
		return 0, err
	}
	if full.ID == 0 {
		full.ID = providerID
	}
	events := make([]model.Event, 0, len(full.DCats))
	for _, c := range full.DCats {
		if _, _, ok := s.category(c); !ok {
			continue
		}
		e, err := s.eventRecord(ctx, full, c, c.EventStatus())
		if err != nil {
			return 0, err
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertEvents(ctx, events); err != nil {
		return 0, fmt.Errorf("store events: %w", err)
	}
	return len(events), nil
}

// forEach runs fn for every info with bounded concurrency. fn reports its
// own failures, so the group never cancels siblings.
func (s *Syncer) forEach(ctx context.Context, infos []provider.EventInfo, fn func(context.Context, provider.EventInfo)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, info := range infos {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			fn(gctx, info)
			return nil
		})
	}
	_ = g.Wait()
}
