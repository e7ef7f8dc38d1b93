// Command sync pulls season data from the results provider into the store.
//
// Usage:
//
//	sync season        [-year N] [-all-leagues] [-disciplines boulder,lead]
//	sync results       [-year N] [-event ID]
//	sync registrations [-year N]
//	sync rankings      [-year N] [-discipline D -gender G]
//	sync all           [-year N]
//
// The report is printed to stdout as JSON. The exit status is 1 when any item
// failed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/app/ingest"
	"github.com/okian/fantasy-climbing/internal/config"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

// Error constants.
var (
	ErrUsage = errors.New("usage: sync season|results|registrations|rankings|all [flags]")
	ErrFlag  = errors.New("invalid flag value")
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	store, closeStore, err := repository.Open(ctx, cfg.Store, cfg.DatabaseDSN,
		repository.WithAttempts(cfg.ReadRetryAttempts),
		repository.WithBackoff(cfg.ReadRetryBackoff()),
	)
	if err != nil {
		os.Stderr.WriteString("failed to open store: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()

	source := provider.NewClient(
		provider.WithBaseURL(cfg.ProviderBaseURL),
		provider.WithTimeout(cfg.ProviderTimeout()),
	)

	rep, err := execute(ctx, os.Args[1:], source, store, os.Stdout)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	if !rep.OK() {
		os.Exit(1)
	}
}

// execute runs one subcommand and writes its report to out.
func execute(ctx context.Context, args []string, source provider.Source, store repository.Store, out io.Writer) (ingest.Report, error) {
	if len(args) == 0 {
		return ingest.Report{}, ErrUsage
	}
	cmd := args[0]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	year := fs.Int("year", time.Now().UTC().Year(), "season year")
	allLeagues := fs.Bool("all-leagues", false, "include non World Cup events")
	disciplines := fs.String("disciplines", "", "comma separated disciplines to keep")
	eventID := fs.Int64("event", 0, "provider event id (results only)")
	discipline := fs.String("discipline", "", "ranking discipline (rankings only)")
	gender := fs.String("gender", "", "ranking gender (rankings only)")
	if err := fs.Parse(args[1:]); err != nil {
		return ingest.Report{}, fmt.Errorf("%w: %v", ErrFlag, err)
	}

	opts := []ingest.Option{ingest.WithLogger(logger.Named("sync"))}
	if *allLeagues {
		opts = append(opts, ingest.WithAllLeagues())
	}
	if *disciplines != "" {
		ds, err := parseDisciplines(*disciplines)
		if err != nil {
			return ingest.Report{}, err
		}
		opts = append(opts, ingest.WithDisciplines(ds...))
	}
	syncer := ingest.New(source, store, opts...)

	var rep ingest.Report
	switch cmd {
	case "season":
		rep = syncer.SyncEvents(ctx, *year)
	case "results":
		if *eventID > 0 {
			rep = syncer.SyncEventResults(ctx, *eventID)
		} else {
			rep = syncer.SyncSeasonResults(ctx, *year)
		}
	case "registrations":
		rep = syncer.SyncRegistrations(ctx, *year)
	case "rankings":
		if *discipline == "" && *gender == "" {
			rep = syncer.SyncAllRankings(ctx, *year)
			break
		}
		d, ok := model.ParseDiscipline(*discipline)
		if !ok {
			return ingest.Report{}, fmt.Errorf("%w: discipline %q", ErrFlag, *discipline)
		}
		g, ok := model.ParseGender(*gender)
		if !ok {
			return ingest.Report{}, fmt.Errorf("%w: gender %q", ErrFlag, *gender)
		}
		rep = syncer.SyncRankings(ctx, *year, d, g)
	case "all":
		rep = syncer.SyncAll(ctx, *year)
	default:
		return ingest.Report{}, ErrUsage
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func parseDisciplines(s string) ([]model.Discipline, error) {
	var out []model.Discipline
	for _, part := range strings.Split(s, ",") {
		d, ok := model.ParseDiscipline(part)
		if !ok {
			return nil, fmt.Errorf("%w: discipline %q", ErrFlag, part)
		}
		out = append(out, d)
	}
	return out, nil
}
