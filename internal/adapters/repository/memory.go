package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/pkg/metrics"
)

// In-memory Store implementation.
//
// All tables live in one tables value guarded by a RWMutex. A transaction
// clones the tables, runs against the clone and swaps it in on success;
// rollback discards the clone. Rows are stored and returned by value.

const defaultMetricsUpdateInterval = 5 * time.Second

type resultKey struct {
	eventID   int64
	athleteID int64
}

type rankingKey struct {
	season     int
	discipline model.Discipline
	gender     model.Gender
	athleteID  int64
}

type memberKey struct {
	leagueID uuid.UUID
	userID   string
}

type tables struct {
	athletes      map[int64]model.Athlete
	events        map[int64]model.Event
	results       map[resultKey]model.Result
	rankings      map[rankingKey]model.Ranking
	registrations map[model.Registration]struct{}
	leagues       map[uuid.UUID]model.League
	members       map[memberKey]model.LeagueMember
	teams         map[uuid.UUID]model.Team
	rosters       map[uuid.UUID]model.RosterInterval
	captaincies   map[uuid.UUID]model.CaptaincyInterval
	transfers     map[uuid.UUID]model.Transfer
}

func newTables() *tables {
	return &tables{
		athletes:      make(map[int64]model.Athlete),
		events:        make(map[int64]model.Event),
		results:       make(map[resultKey]model.Result),
		rankings:      make(map[rankingKey]model.Ranking),
		registrations: make(map[model.Registration]struct{}),
		leagues:       make(map[uuid.UUID]model.League),
		members:       make(map[memberKey]model.LeagueMember),
		teams:         make(map[uuid.UUID]model.Team),
		rosters:       make(map[uuid.UUID]model.RosterInterval),
		captaincies:   make(map[uuid.UUID]model.CaptaincyInterval),
		transfers:     make(map[uuid.UUID]model.Transfer),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table. Row values are never mutated in place, so a
// shallow copy of each map is enough.
func (t *tables) clone() *tables {
	return &tables{
		athletes:      cloneMap(t.athletes),
		events:        cloneMap(t.events),
		results:       cloneMap(t.results),
		rankings:      cloneMap(t.rankings),
		registrations: cloneMap(t.registrations),
		leagues:       cloneMap(t.leagues),
		members:       cloneMap(t.members),
		teams:         cloneMap(t.teams),
		rosters:       cloneMap(t.rosters),
		captaincies:   cloneMap(t.captaincies),
		transfers:     cloneMap(t.transfers),
	}
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data *tables
	// inTx marks the store handed to a WithTx callback.
	inTx bool

	metricsUpdateInterval time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. Row count metrics are published in
// the background until ctx is done.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		data:                  newTables(),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.publishMetrics(ctx)
	return s
}

func (s *MemoryStore) publishMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			d := s.data
			metrics.UpdateStoreRows("athletes", len(d.athletes))
			metrics.UpdateStoreRows("events", len(d.events))
			metrics.UpdateStoreRows("results", len(d.results))
			metrics.UpdateStoreRows("leagues", len(d.leagues))
			metrics.UpdateStoreRows("teams", len(d.teams))
			metrics.UpdateStoreRows("roster_intervals", len(d.rosters))
			metrics.UpdateStoreRows("captaincy_intervals", len(d.captaincies))
			metrics.UpdateStoreRows("transfers", len(d.transfers))
			s.mu.RUnlock()
		}
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// WithTx runs fn against a private copy and commits it when fn succeeds.
// Transactions are serialized.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &MemoryStore{data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		metrics.RecordStoreTxFailure()
		return err
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordStoreTxFailure()
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) read(fn func(d *tables)) {
	start := time.Now()
	s.mu.RLock()
	fn(s.data)
	s.mu.RUnlock()
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func (s *MemoryStore) write(fn func(d *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func selectRows[K comparable, V any](m map[K]V, match func(V) bool, less func(a, b V) bool) []V {
	out := make([]V, 0)
	for _, v := range m {
		if match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Athletes implements Reader.
func (s *MemoryStore) Athletes(_ context.Context, f AthleteFilter) ([]model.Athlete, error) {
	var out []model.Athlete
	s.read(func(d *tables) {
		out = selectRows(d.athletes, f.match, func(a, b model.Athlete) bool { return a.ID < b.ID })
	})
	return out, nil
}

// Events implements Reader. Events are ordered by date then id.
func (s *MemoryStore) Events(_ context.Context, f EventFilter) ([]model.Event, error) {
	var out []model.Event
	s.read(func(d *tables) {
		out = selectRows(d.events, f.match, func(a, b model.Event) bool {
			if a.Date.Equal(b.Date) {
				return a.ID < b.ID
			}
			return a.Date.Before(b.Date)
		})
	})
	return out, nil
}

// Results implements Reader.
func (s *MemoryStore) Results(_ context.Context, f ResultFilter) ([]model.Result, error) {
	var out []model.Result
	s.read(func(d *tables) {
		out = selectRows(d.results, f.match, func(a, b model.Result) bool {
			if a.EventID != b.EventID {
				return a.EventID < b.EventID
			}
			return a.Rank < b.Rank
		})
	})
	return out, nil
}

// Rankings implements Reader.
func (s *MemoryStore) Rankings(_ context.Context, f RankingFilter) ([]model.Ranking, error) {
	var out []model.Ranking
	s.read(func(d *tables) {
		out = selectRows(d.rankings, f.match, func(a, b model.Ranking) bool {
			if a.Rank != b.Rank {
				return a.Rank < b.Rank
			}
			return a.AthleteID < b.AthleteID
		})
	})
	return out, nil
}

// Registrations implements Reader.
func (s *MemoryStore) Registrations(_ context.Context, eventID int64) ([]model.Registration, error) {
	out := make([]model.Registration, 0)
	s.read(func(d *tables) {
		for r := range d.registrations {
			if r.EventID == eventID {
				out = append(out, r)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AthleteID < out[j].AthleteID })
	return out, nil
}

// Leagues implements Reader.
func (s *MemoryStore) Leagues(_ context.Context, f LeagueFilter) ([]model.League, error) {
	var out []model.League
	s.read(func(d *tables) {
		out = selectRows(d.leagues, f.match, func(a, b model.League) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID.String() < b.ID.String()
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	})
	for i := range out {
		out[i].EventIDs = append([]int64(nil), out[i].EventIDs...)
	}
	return out, nil
}

// Members implements Reader.
func (s *MemoryStore) Members(_ context.Context, f MemberFilter) ([]model.LeagueMember, error) {
	var out []model.LeagueMember
	s.read(func(d *tables) {
		out = selectRows(d.members, f.match, func(a, b model.LeagueMember) bool {
			if a.LeagueID != b.LeagueID {
				return a.LeagueID.String() < b.LeagueID.String()
			}
			return a.UserID < b.UserID
		})
	})
	return out, nil
}

// Teams implements Reader. Teams are ordered by creation time then id.
func (s *MemoryStore) Teams(_ context.Context, f TeamFilter) ([]model.Team, error) {
	var out []model.Team
	s.read(func(d *tables) {
		out = selectRows(d.teams, f.match, func(a, b model.Team) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID.String() < b.ID.String()
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
	})
	return out, nil
}

// RosterIntervals implements Reader.
func (s *MemoryStore) RosterIntervals(_ context.Context, f RosterFilter) ([]model.RosterInterval, error) {
	var out []model.RosterInterval
	s.read(func(d *tables) {
		out = selectRows(d.rosters, f.match, func(a, b model.RosterInterval) bool {
			if a.AddedAt.Equal(b.AddedAt) {
				return a.AthleteID < b.AthleteID
			}
			return a.AddedAt.Before(b.AddedAt)
		})
	})
	return out, nil
}

// Captaincies implements Reader.
func (s *MemoryStore) Captaincies(_ context.Context, f CaptaincyFilter) ([]model.CaptaincyInterval, error) {
	var out []model.CaptaincyInterval
	s.read(func(d *tables) {
		out = selectRows(d.captaincies, f.match, func(a, b model.CaptaincyInterval) bool {
			return a.SetAt.Before(b.SetAt)
		})
	})
	return out, nil
}

// Transfers implements Reader. Newest first.
func (s *MemoryStore) Transfers(_ context.Context, f TransferFilter) ([]model.Transfer, error) {
	var out []model.Transfer
	s.read(func(d *tables) {
		out = selectRows(d.transfers, f.match, func(a, b model.Transfer) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.ID.String() < b.ID.String()
			}
			return a.CreatedAt.After(b.CreatedAt)
		})
	})
	return out, nil
}

// UpsertAthletes implements Writer.
func (s *MemoryStore) UpsertAthletes(_ context.Context, athletes []model.Athlete) error {
	return s.write(func(d *tables) error {
		for _, a := range athletes {
			d.athletes[a.ID] = a
		}
		return nil
	})
}

// UpsertEvents implements Writer.
func (s *MemoryStore) UpsertEvents(_ context.Context, events []model.Event) error {
	return s.write(func(d *tables) error {
		for _, e := range events {
			d.events[e.ID] = e
		}
		return nil
	})
}

// UpsertResults implements Writer.
func (s *MemoryStore) UpsertResults(_ context.Context, results []model.Result) error {
	return s.write(func(d *tables) error {
		for _, r := range results {
			d.results[resultKey{r.EventID, r.AthleteID}] = r
		}
		return nil
	})
}

// UpsertRankings implements Writer.
func (s *MemoryStore) UpsertRankings(_ context.Context, rankings []model.Ranking) error {
	return s.write(func(d *tables) error {
		for _, r := range rankings {
			d.rankings[rankingKey{r.Season, r.Discipline, r.Gender, r.AthleteID}] = r
		}
		return nil
	})
}

// UpsertRegistrations implements Writer.
func (s *MemoryStore) UpsertRegistrations(_ context.Context, regs []model.Registration) error {
	return s.write(func(d *tables) error {
		for _, r := range regs {
			d.registrations[r] = struct{}{}
		}
		return nil
	})
}

// InsertLeague implements Writer.
func (s *MemoryStore) InsertLeague(_ context.Context, l model.League) error {
	return s.write(func(d *tables) error {
		if _, ok := d.leagues[l.ID]; ok {
			return ErrDuplicate
		}
		for _, other := range d.leagues {
			if other.InviteCode == l.InviteCode {
				return ErrDuplicate
			}
		}
		l.EventIDs = append([]int64(nil), l.EventIDs...)
		d.leagues[l.ID] = l
		return nil
	})
}

// UpdateLeague implements Writer.
func (s *MemoryStore) UpdateLeague(_ context.Context, id uuid.UUID, p LeaguePatch) error {
	return s.write(func(d *tables) error {
		l, ok := d.leagues[id]
		if !ok {
			return ErrNotFound
		}
		if p.DraftLockedAt != nil {
			t := *p.DraftLockedAt
			l.DraftLockedAt = &t
		}
		d.leagues[id] = l
		return nil
	})
}

// DeleteLeague implements Writer.
func (s *MemoryStore) DeleteLeague(_ context.Context, id uuid.UUID) error {
	return s.write(func(d *tables) error {
		if _, ok := d.leagues[id]; !ok {
			return ErrNotFound
		}
		delete(d.leagues, id)
		for k := range d.members {
			if k.leagueID == id {
				delete(d.members, k)
			}
		}
		for tid, t := range d.teams {
			if t.LeagueID != id {
				continue
			}
			delete(d.teams, tid)
			for rid, r := range d.rosters {
				if r.TeamID == tid {
					delete(d.rosters, rid)
				}
			}
			for cid, c := range d.captaincies {
				if c.TeamID == tid {
					delete(d.captaincies, cid)
				}
			}
			for xid, x := range d.transfers {
				if x.TeamID == tid {
					delete(d.transfers, xid)
				}
			}
		}
		return nil
	})
}

// InsertMember implements Writer.
func (s *MemoryStore) InsertMember(_ context.Context, m model.LeagueMember) error {
	return s.write(func(d *tables) error {
		k := memberKey{m.LeagueID, m.UserID}
		if _, ok := d.members[k]; ok {
			return ErrDuplicate
		}
		d.members[k] = m
		return nil
	})
}

// InsertTeam implements Writer.
func (s *MemoryStore) InsertTeam(_ context.Context, t model.Team) error {
	return s.write(func(d *tables) error {
		for _, other := range d.teams {
			if other.ID == t.ID || (other.LeagueID == t.LeagueID && other.UserID == t.UserID) {
				return ErrDuplicate
			}
		}
		d.teams[t.ID] = t
		return nil
	})
}

// InsertRosterIntervals implements Writer. Opening a second interval for an
// athlete that already has an open one is rejected.
func (s *MemoryStore) InsertRosterIntervals(_ context.Context, rows []model.RosterInterval) error {
	return s.write(func(d *tables) error {
		for _, r := range rows {
			if _, ok := d.rosters[r.ID]; ok {
				return ErrDuplicate
			}
			if r.RemovedAt == nil {
				for _, other := range d.rosters {
					if other.TeamID == r.TeamID && other.AthleteID == r.AthleteID && other.RemovedAt == nil {
						return ErrDuplicate
					}
				}
			}
			d.rosters[r.ID] = r
		}
		return nil
	})
}

// UpdateRosterIntervals implements Writer.
func (s *MemoryStore) UpdateRosterIntervals(_ context.Context, f RosterFilter, p RosterPatch) (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	n := 0
	err := s.write(func(d *tables) error {
		for id, r := range d.rosters {
			if !f.match(r) {
				continue
			}
			p.apply(&r)
			d.rosters[id] = r
			n++
		}
		return nil
	})
	return n, err
}

// DeleteRosterIntervals implements Writer.
func (s *MemoryStore) DeleteRosterIntervals(_ context.Context, f RosterFilter) (int, error) {
	n := 0
	err := s.write(func(d *tables) error {
		for id, r := range d.rosters {
			if f.match(r) {
				delete(d.rosters, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// InsertCaptaincy implements Writer.
func (s *MemoryStore) InsertCaptaincy(_ context.Context, c model.CaptaincyInterval) error {
	return s.write(func(d *tables) error {
		if _, ok := d.captaincies[c.ID]; ok {
			return ErrDuplicate
		}
		d.captaincies[c.ID] = c
		return nil
	})
}

// UpdateCaptaincies implements Writer.
func (s *MemoryStore) UpdateCaptaincies(_ context.Context, f CaptaincyFilter, p CaptaincyPatch) (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	n := 0
	err := s.write(func(d *tables) error {
		for id, c := range d.captaincies {
			if !f.match(c) {
				continue
			}
			p.apply(&c)
			d.captaincies[id] = c
			n++
		}
		return nil
	})
	return n, err
}

// DeleteCaptaincies implements Writer.
func (s *MemoryStore) DeleteCaptaincies(_ context.Context, f CaptaincyFilter) (int, error) {
	n := 0
	err := s.write(func(d *tables) error {
		for id, c := range d.captaincies {
			if f.match(c) {
				delete(d.captaincies, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// InsertTransfer implements Writer.
func (s *MemoryStore) InsertTransfer(_ context.Context, t model.Transfer) error {
	return s.write(func(d *tables) error {
		if _, ok := d.transfers[t.ID]; ok {
			return ErrDuplicate
		}
		d.transfers[t.ID] = t
		return nil
	})
}

// UpdateTransfers implements Writer.
func (s *MemoryStore) UpdateTransfers(_ context.Context, f TransferFilter, p TransferPatch) (int, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	n := 0
	err := s.write(func(d *tables) error {
		for id, t := range d.transfers {
			if !f.match(t) {
				continue
			}
			at := *p.RevertedAt
			t.RevertedAt = &at
			d.transfers[id] = t
			n++
		}
		return nil
	})
	return n, err
}

// DeleteTransfers implements Writer.
func (s *MemoryStore) DeleteTransfers(_ context.Context, f TransferFilter) (int, error) {
	n := 0
	err := s.write(func(d *tables) error {
		for id, t := range d.transfers {
			if f.match(t) {
				delete(d.transfers, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
