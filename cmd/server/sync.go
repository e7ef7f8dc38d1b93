package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/app/ingest"
	"github.com/okian/fantasy-climbing/internal/config"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

// startSync schedules a full season sync every cfg.SyncInterval. It returns a
// nil scheduler when periodic sync is disabled.
func startSync(ctx context.Context, cfg *config.Config, store repository.Store, opts ...gocron.SchedulerOption) (gocron.Scheduler, error) {
	if cfg.SyncInterval <= 0 {
		return nil, nil
	}
	log := logger.Named("sync")
	source := provider.NewClient(
		provider.WithBaseURL(cfg.ProviderBaseURL),
		provider.WithTimeout(cfg.ProviderTimeout()),
		provider.WithLogger(log),
	)
	syncer := ingest.New(source, store, ingest.WithLogger(log))

	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.SyncInterval),
		gocron.NewTask(func() {
			season := cfg.SyncSeason
			if season == 0 {
				season = time.Now().UTC().Year()
			}
			rep := syncer.SyncAll(ctx, season)
			log.Info(ctx, "season sync finished",
				logger.Int("season", season),
				logger.Any("counts", rep.Counts),
				logger.Int("errors", len(rep.Errors)),
			)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	log.Info(ctx, "periodic sync scheduled", logger.Duration("interval", cfg.SyncInterval))
	return sched, nil
}
