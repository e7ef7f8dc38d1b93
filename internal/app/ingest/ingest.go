// Package ingest translates results-provider payloads into athletes, events,
// results, rankings and registrations. Every sync collects per-item failures
// into a Report instead of aborting, so a flaky upstream still makes progress.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/fantasy-climbing/internal/adapters/provider"
	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/scoring"
	"github.com/okian/fantasy-climbing/pkg/logger"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

const defaultConcurrency = 4

// Report counter keys.
const (
	KindEvents        = "events"
	KindCategories    = "categories"
	KindAthletes      = "athletes"
	KindResults       = "results"
	KindRegistrations = "registrations"
	KindRankings      = "rankings"
)

// Report is the partial-success outcome of a sync.
type Report struct {
	Counts map[string]int `json:"counts"`
	Errors []string       `json:"errors"`
}

func newReport() *Report {
	return &Report{Counts: map[string]int{}, Errors: []string{}}
}

// OK reports whether the sync finished without item errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Count returns the counter for kind.
func (r Report) Count(kind string) int { return r.Counts[kind] }

// reporter is a Report shared between goroutines.
type reporter struct {
	mu     sync.Mutex
	report *Report
	log    logger.Logger
}

func newReporter(log logger.Logger) *reporter {
	return &reporter{report: newReport(), log: log}
}

func (r *reporter) add(kind string, n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	r.report.Counts[kind] += n
	r.mu.Unlock()
	metrics.RecordIngestItems(kind, n)
}

func (r *reporter) fail(ctx context.Context, kind string, err error) {
	r.mu.Lock()
	r.report.Errors = append(r.report.Errors, err.Error())
	r.mu.Unlock()
	metrics.RecordIngestError(kind)
	r.log.Error(ctx, "sync item failed", logger.String("kind", kind), logger.Error(err))
}

func (r *reporter) result() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := Report{Counts: make(map[string]int, len(r.report.Counts)), Errors: append([]string{}, r.report.Errors...)}
	for k, v := range r.report.Counts {
		out.Counts[k] = v
	}
	return out
}

// Syncer pulls provider data into a store.
type Syncer struct {
	source provider.Source
	store  repository.Store
	table  scoring.Table
	logger logger.Logger

	disciplines   []model.Discipline
	worldCupsOnly bool
	concurrency   int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScoringTable sets the table used to derive result scores.
func WithScoringTable(t scoring.Table) Option {
	return func(s *Syncer) {
		if len(t.Entries()) > 0 {
			s.table = t
		}
	}
}

// WithDisciplines restricts event syncs to the given disciplines.
func WithDisciplines(ds ...model.Discipline) Option {
	return func(s *Syncer) {
		if len(ds) > 0 {
			s.disciplines = append([]model.Discipline(nil), ds...)
		}
	}
}

// WithAllLeagues includes events outside the World Cup and World
// Championship leagues.
func WithAllLeagues() Option {
	return func(s *Syncer) { s.worldCupsOnly = false }
}

// WithConcurrency bounds the number of provider events processed at once.
func WithConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Syncer reading from source and writing to store.
func New(source provider.Source, store repository.Store, opts ...Option) *Syncer {
	s := &Syncer{
		source:        source,
		store:         store,
		table:         scoring.IFSC(),
		logger:        logger.Get().Named("ingest"),
		disciplines:   []model.Discipline{model.DisciplineBoulder, model.DisciplineLead, model.DisciplineSpeed},
		worldCupsOnly: true,
		concurrency:   defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncAll runs events, registrations, season results and rankings for year
// and merges their reports.
func (s *Syncer) SyncAll(ctx context.Context, year int) Report {
	s.logger.Info(ctx, "full sync started", logger.Int("year", year))
	out := newReport()
	for _, step := range []func(context.Context, int) Report{
		s.SyncEvents,
		s.SyncRegistrations,
		s.SyncSeasonResults,
		s.SyncAllRankings,
	} {
		r := step(ctx, year)
		for k, v := range r.Counts {
			out.Counts[k] += v
		}
		out.Errors = append(out.Errors, r.Errors...)
		if ctx.Err() != nil {
			out.Errors = append(out.Errors, ctx.Err().Error())
			break
		}
	}
	s.logger.Info(ctx, "full sync finished",
		logger.Int("year", year),
		logger.Int("errors", len(out.Errors)),
		logger.Any("counts", out.Counts))
	return *out
}

func (s *Syncer) wantDiscipline(d model.Discipline) bool {
	for _, w := range s.disciplines {
		if w == d {
			return true
		}
	}
	return false
}

// seasonEvents returns the season listing entries that pass the league and
// discipline filters.
func (s *Syncer) seasonEvents(ctx context.Context, year int, rep *reporter) ([]provider.EventInfo, bool) {
	season, err := s.source.Season(ctx, year)
	if err != nil {
		rep.fail(ctx, KindEvents, fmt.Errorf("season %d: %w", year, err))
		return nil, false
	}
	s.logger.Info(ctx, "fetched season",
		logger.String("season", season.Name),
		logger.Int("events", len(season.Events)))

	out := make([]provider.EventInfo, 0, len(season.Events))
	for _, info := range season.Events {
		if s.worldCupsOnly && !season.IsWorldCup(info.LeagueSeasonID) {
			continue
		}
		if !info.HasDiscipline(s.disciplines) {
			continue
		}
		out = append(out, info)
	}
	return out, true
}

// category resolves the discipline and gender of a dcat; ok is false for
// categories outside the configured disciplines or with an unknown gender.
func (s *Syncer) category(c provider.Category) (model.Discipline, model.Gender, bool) {
	d, ok := model.ParseDiscipline(c.DisciplineKind)
	if !ok || !s.wantDiscipline(d) {
		return "", "", false
	}
	g, ok := model.ParseGender(c.CategoryName)
	if !ok {
		return "", "", false
	}
	return d, g, true
}

// eventRecord builds the stored event for one category, keeping the status
// of an already stored event when it is further along.
func (s *Syncer) eventRecord(ctx context.Context, full provider.FullEvent, c provider.Category, status model.EventStatus) (model.Event, error) {
	d, g, ok := s.category(c)
	if !ok {
		return model.Event{}, fmt.Errorf("%w: %s", provider.ErrUnknownCategory, c.DcatName)
	}
	date, err := provider.ParseDate(full.StartsAt)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %d: %w", full.ID, err)
	}
	e := model.Event{
		ID:         model.InternalEventID(full.ID, g),
		Name:       fmt.Sprintf("%s - %s", full.Name, c.DcatName),
		Date:       date,
		Discipline: d,
		Gender:     g,
		Status:     status,
	}
	existing, err := s.store.Events(ctx, repository.EventFilter{IDs: []int64{e.ID}})
	if err != nil {
		return model.Event{}, fmt.Errorf("load event %d: %w", e.ID, err)
	}
	if len(existing) > 0 {
		e.Status = existing[0].Status.Advance(status)
	}
	return e, nil
}

func sortedKeys(m map[int64]model.Athlete) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
