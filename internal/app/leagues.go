package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/adapters/repository"
	"github.com/okian/fantasy-climbing/internal/domain/fault"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/tier"
	"github.com/okian/fantasy-climbing/pkg/logger"
)

const inviteCodeAttempts = 3

// NewLeague describes a league to create. Zero values take the service defaults;
// TransfersPerEvent is a pointer so that zero (transfers disabled) can be requested.
type NewLeague struct {
	Name              string           `json:"name"`
	Gender            model.Gender     `json:"gender"`
	Discipline        model.Discipline `json:"discipline"`
	TransfersPerEvent *int             `json:"transfers_per_event,omitempty"`
	TeamSize          int              `json:"team_size,omitempty"`
	CaptainMultiplier float64          `json:"captain_multiplier,omitempty"`
	Tiers             tier.Config      `json:"tier_config,omitempty"`
	EventIDs          []int64          `json:"event_ids,omitempty"`
}

// LeagueSummary is a league with its team count.
type LeagueSummary struct {
	model.League
	TeamCount int `json:"member_count"`
}

// CreateLeague creates a league owned by userID, who joins it as admin.
func (s *Service) CreateLeague(ctx context.Context, userID string, in NewLeague) (model.League, error) {
	const op = "create_league"

	league, err := s.buildLeague(userID, in)
	if err != nil {
		return model.League{}, s.reject(ctx, op, err)
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if len(league.EventIDs) > 0 {
			found, err := tx.Events(ctx, repository.EventFilter{IDs: league.EventIDs})
			if err != nil {
				return storageErr(op, err)
			}
			if missing := missingEvents(league.EventIDs, found); len(missing) > 0 {
				return fault.Newf(op, fault.ErrEventNotFound, "unknown events %v", missing)
			}
		}
		if err := s.insertLeague(ctx, tx, &league); err != nil {
			return err
		}
		return storageErr(op, tx.InsertMember(ctx, model.LeagueMember{
			LeagueID: league.ID,
			UserID:   userID,
			Role:     model.RoleAdmin,
		}))
	})
	if err != nil {
		return model.League{}, s.reject(ctx, op, err)
	}

	s.log().Info(ctx, "league created",
		logger.String("leagueID", league.ID.String()),
		logger.String("adminID", userID),
		logger.Int("events", len(league.EventIDs)),
	)
	return league, nil
}

func (s *Service) buildLeague(userID string, in NewLeague) (model.League, error) {
	const op = "create_league"

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.League{}, fault.New(op, fault.ErrBadRequest, "league name is required")
	}
	gender, ok := model.ParseGender(string(in.Gender))
	if !ok {
		return model.League{}, fault.Newf(op, fault.ErrBadRequest, "unknown gender %q", in.Gender)
	}
	discipline, ok := model.ParseDiscipline(string(in.Discipline))
	if !ok {
		return model.League{}, fault.Newf(op, fault.ErrBadRequest, "unknown discipline %q", in.Discipline)
	}

	league := model.League{
		ID:                uuid.New(),
		Name:              name,
		AdminID:           userID,
		Gender:            gender,
		Discipline:        discipline,
		TransfersPerEvent: s.defaults.TransfersPerEvent,
		TeamSize:          s.defaults.TeamSize,
		CaptainMultiplier: s.defaults.CaptainMultiplier,
		Tiers:             in.Tiers,
		EventIDs:          dedupeIDs(in.EventIDs),
		CreatedAt:         s.now(),
	}
	if in.TransfersPerEvent != nil {
		if *in.TransfersPerEvent < 0 {
			return model.League{}, fault.New(op, fault.ErrBadRequest, "transfers_per_event must not be negative")
		}
		league.TransfersPerEvent = *in.TransfersPerEvent
	}
	if in.TeamSize < 0 {
		return model.League{}, fault.New(op, fault.ErrBadRequest, "team_size must be positive")
	}
	if in.TeamSize > 0 {
		league.TeamSize = in.TeamSize
	}
	if in.CaptainMultiplier != 0 {
		if in.CaptainMultiplier <= 1 {
			return model.League{}, fault.New(op, fault.ErrBadRequest, "captain_multiplier must be greater than 1")
		}
		league.CaptainMultiplier = in.CaptainMultiplier
	}
	if league.Tiers == nil {
		league.Tiers = tier.Default()
	}
	if err := league.Tiers.Validate(); err != nil {
		return model.League{}, &fault.Error{Op: op, Kind: fault.ErrInvalidInput, Reason: fault.ErrBadRequest, Err: err}
	}
	return league, nil
}

// insertLeague stores l, drawing a fresh invite code on collision.
func (s *Service) insertLeague(ctx context.Context, tx repository.Store, l *model.League) error {
	var err error
	for i := 0; i < inviteCodeAttempts; i++ {
		l.InviteCode, err = inviteCode()
		if err != nil {
			return storageErr("create_league", err)
		}
		err = tx.InsertLeague(ctx, *l)
		if !errors.Is(err, repository.ErrDuplicate) {
			return storageErr("create_league", err)
		}
	}
	return storageErr("create_league", err)
}

// inviteCode returns 8 URL-safe characters.
func inviteCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Leagues lists the leagues userID belongs to with their team counts.
func (s *Service) Leagues(ctx context.Context, userID string) ([]LeagueSummary, error) {
	const op = "list_leagues"

	members, err := s.store.Members(ctx, repository.MemberFilter{UserID: userID})
	if err != nil {
		return nil, storageErr(op, err)
	}
	if len(members) == 0 {
		return []LeagueSummary{}, nil
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.LeagueID)
	}
	leagues, err := s.store.Leagues(ctx, repository.LeagueFilter{IDs: ids})
	if err != nil {
		return nil, storageErr(op, err)
	}
	teams, err := s.store.Teams(ctx, repository.TeamFilter{LeagueIDs: ids})
	if err != nil {
		return nil, storageErr(op, err)
	}
	counts := make(map[uuid.UUID]int, len(leagues))
	for _, t := range teams {
		counts[t.LeagueID]++
	}
	out := make([]LeagueSummary, 0, len(leagues))
	for _, l := range leagues {
		out = append(out, LeagueSummary{League: l, TeamCount: counts[l.ID]})
	}
	return out, nil
}

// League returns one league with its team count.
func (s *Service) League(ctx context.Context, id uuid.UUID) (LeagueSummary, error) {
	const op = "get_league"

	league, err := s.loadLeague(ctx, s.store, op, id)
	if err != nil {
		return LeagueSummary{}, err
	}
	teams, err := s.store.Teams(ctx, repository.TeamFilter{LeagueIDs: []uuid.UUID{id}})
	if err != nil {
		return LeagueSummary{}, storageErr(op, err)
	}
	return LeagueSummary{League: league, TeamCount: len(teams)}, nil
}

// LeagueEvents returns the events counting for a league, newest first,
// optionally restricted to one status.
func (s *Service) LeagueEvents(ctx context.Context, id uuid.UUID, status model.EventStatus) ([]model.Event, error) {
	const op = "league_events"

	if status != "" && !status.Valid() {
		return nil, fault.Newf(op, fault.ErrBadRequest, "unknown status %q", status)
	}
	league, err := s.loadLeague(ctx, s.store, op, id)
	if err != nil {
		return nil, err
	}
	events, err := scopeEvents(ctx, s.store, league)
	if err != nil {
		return nil, storageErr(op, err)
	}
	out := make([]model.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if status == "" || events[i].Status == status {
			out = append(out, events[i])
		}
	}
	return out, nil
}

// JoinLeague adds userID to the league holding code.
func (s *Service) JoinLeague(ctx context.Context, userID, code string) (model.League, error) {
	const op = "join_league"

	code = strings.TrimSpace(code)
	if code == "" {
		return model.League{}, s.reject(ctx, op, fault.New(op, fault.ErrBadRequest, "invite code is required"))
	}
	var league model.League
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		leagues, err := tx.Leagues(ctx, repository.LeagueFilter{InviteCode: code})
		if err != nil {
			return storageErr(op, err)
		}
		if len(leagues) == 0 {
			return fault.New(op, fault.ErrInviteNotFound, "invalid invite code")
		}
		league = leagues[0]
		existing, err := tx.Members(ctx, repository.MemberFilter{LeagueID: league.ID, UserID: userID})
		if err != nil {
			return storageErr(op, err)
		}
		if len(existing) > 0 {
			return fault.New(op, fault.ErrAlreadyMember, "already a member of this league")
		}
		err = tx.InsertMember(ctx, model.LeagueMember{LeagueID: league.ID, UserID: userID, Role: model.RoleMember})
		if errors.Is(err, repository.ErrDuplicate) {
			return fault.New(op, fault.ErrAlreadyMember, "already a member of this league")
		}
		return storageErr(op, err)
	})
	if err != nil {
		return model.League{}, s.reject(ctx, op, err)
	}
	s.log().Info(ctx, "league joined",
		logger.String("leagueID", league.ID.String()),
		logger.String("userID", userID),
	)
	return league, nil
}

// DeleteLeague removes a league and everything in it. Only the admin may do so.
func (s *Service) DeleteLeague(ctx context.Context, userID string, id uuid.UUID) error {
	const op = "delete_league"

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		league, err := s.loadLeague(ctx, tx, op, id)
		if err != nil {
			return err
		}
		if league.AdminID != userID {
			return fault.New(op, fault.ErrNotOwner, "only the league creator can delete the league")
		}
		return storageErr(op, tx.DeleteLeague(ctx, id))
	})
	if err != nil {
		return s.reject(ctx, op, err)
	}
	s.log().Info(ctx, "league deleted", logger.String("leagueID", id.String()))
	return nil
}

// CreateTeam creates userID's team in a league they belong to.
func (s *Service) CreateTeam(ctx context.Context, userID string, leagueID uuid.UUID, name string) (model.Team, error) {
	const op = "create_team"

	name = strings.TrimSpace(name)
	if name == "" {
		return model.Team{}, s.reject(ctx, op, fault.New(op, fault.ErrBadRequest, "team name is required"))
	}
	team := model.Team{
		ID:        uuid.New(),
		LeagueID:  leagueID,
		UserID:    userID,
		Name:      name,
		CreatedAt: s.now(),
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := s.loadLeague(ctx, tx, op, leagueID); err != nil {
			return err
		}
		members, err := tx.Members(ctx, repository.MemberFilter{LeagueID: leagueID, UserID: userID})
		if err != nil {
			return storageErr(op, err)
		}
		if len(members) == 0 {
			return fault.New(op, fault.ErrNotMember, "you are not a member of this league")
		}
		err = tx.InsertTeam(ctx, team)
		if errors.Is(err, repository.ErrDuplicate) {
			return fault.New(op, fault.ErrTeamExists, "you already have a team in this league")
		}
		return storageErr(op, err)
	})
	if err != nil {
		return model.Team{}, s.reject(ctx, op, err)
	}
	s.log().Info(ctx, "team created",
		logger.String("teamID", team.ID.String()),
		logger.String("leagueID", leagueID.String()),
	)
	return team, nil
}

// Teams lists the teams of a league in creation order.
func (s *Service) Teams(ctx context.Context, leagueID uuid.UUID) ([]model.Team, error) {
	const op = "list_teams"

	if _, err := s.loadLeague(ctx, s.store, op, leagueID); err != nil {
		return nil, err
	}
	teams, err := s.store.Teams(ctx, repository.TeamFilter{LeagueIDs: []uuid.UUID{leagueID}})
	if err != nil {
		return nil, storageErr(op, err)
	}
	return teams, nil
}

func (s *Service) loadLeague(ctx context.Context, r repository.Reader, op string, id uuid.UUID) (model.League, error) {
	leagues, err := r.Leagues(ctx, repository.LeagueFilter{IDs: []uuid.UUID{id}})
	if err != nil {
		return model.League{}, storageErr(op, err)
	}
	if len(leagues) == 0 {
		return model.League{}, fault.Newf(op, fault.ErrLeagueNotFound, "league %s not found", id)
	}
	return leagues[0], nil
}

// loadTeam returns a team and its league.
func (s *Service) loadTeam(ctx context.Context, r repository.Reader, op string, id uuid.UUID) (model.Team, model.League, error) {
	teams, err := r.Teams(ctx, repository.TeamFilter{IDs: []uuid.UUID{id}})
	if err != nil {
		return model.Team{}, model.League{}, storageErr(op, err)
	}
	if len(teams) == 0 {
		return model.Team{}, model.League{}, fault.Newf(op, fault.ErrTeamNotFound, "team %s not found", id)
	}
	league, err := s.loadLeague(ctx, r, op, teams[0].LeagueID)
	if err != nil {
		return model.Team{}, model.League{}, err
	}
	return teams[0], league, nil
}

// loadOwnedTeam is loadTeam plus the ownership check.
func (s *Service) loadOwnedTeam(ctx context.Context, r repository.Reader, op string, id uuid.UUID, userID string) (model.Team, model.League, error) {
	team, league, err := s.loadTeam(ctx, r, op, id)
	if err != nil {
		return team, league, err
	}
	if team.UserID != userID {
		return team, league, fault.New(op, fault.ErrNotOwner, "you don't own this team")
	}
	return team, league, nil
}

// scopeEvents returns the events counting for league ordered by date: its
// explicit event set, or every event of its discipline and gender.
func scopeEvents(ctx context.Context, r repository.Reader, league model.League) ([]model.Event, error) {
	f := repository.EventFilter{Discipline: league.Discipline, Gender: league.Gender}
	if league.HasExplicitEvents() {
		f = repository.EventFilter{IDs: league.EventIDs}
	}
	return r.Events(ctx, f)
}

func missingEvents(want []int64, found []model.Event) []int64 {
	have := make(map[int64]struct{}, len(found))
	for _, e := range found {
		have[e.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
