package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/fantasy-climbing/internal/adapters/auth"
	"github.com/okian/fantasy-climbing/internal/adapters/http/api"
	"github.com/okian/fantasy-climbing/internal/adapters/http/swagger"
	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/config"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the API until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeStore, err := repository.Open(ctx, cfg.Store, cfg.DatabaseDSN,
		repository.WithAttempts(cfg.ReadRetryAttempts),
		repository.WithBackoff(cfg.ReadRetryBackoff()),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	svc := newService(cfg, store)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	sched, err := startSync(ctx, cfg, store)
	if err != nil {
		return err
	}
	if sched != nil {
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Error(ctx, "sync scheduler shutdown failed", logger.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, auth.NewJWTResolver(auth.WithSecret(cfg.JWTSecret))),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func newService(cfg *config.Config, store repository.Store) *service.Service {
	return service.New(
		service.WithStore(store),
		service.WithLogger(logger.Named("league")),
		service.WithHistoryOffset(cfg.HistoryOffset()),
		service.WithLeaderboardConcurrency(cfg.LeaderboardConcurrency),
		service.WithDefaults(service.Defaults{
			TeamSize:          cfg.DefaultTeamSize,
			TransfersPerEvent: cfg.DefaultTransfersPerEvent,
			CaptainMultiplier: cfg.DefaultCaptainMultiplier,
		}),
	)
}

func newMux(ctx context.Context, svc *service.Service, resolver auth.Resolver) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, resolver).Register(ctx, mux)
	return mux
}
