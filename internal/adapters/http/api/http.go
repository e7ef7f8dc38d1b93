// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/adapters/auth"
	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/domain/model"
	"github.com/okian/fantasy-climbing/internal/domain/policy"
)

// ReferenceService serves athletes, events, rankings and the scoring table.
type ReferenceService interface {
	ScoringConfig() service.ScoringConfig
	Athletes(ctx context.Context, gender model.Gender) ([]model.Athlete, error)
	Athlete(ctx context.Context, id int64) (model.Athlete, error)
	Events(ctx context.Context, q service.EventQuery) ([]model.Event, error)
	Event(ctx context.Context, id int64) (model.Event, error)
	Rankings(ctx context.Context, d model.Discipline, g model.Gender, season int) ([]service.RankedAthlete, error)
}

// LeagueService serves league management and league-wide scoring.
type LeagueService interface {
	CreateLeague(ctx context.Context, userID string, in service.NewLeague) (model.League, error)
	Leagues(ctx context.Context, userID string) ([]service.LeagueSummary, error)
	League(ctx context.Context, id uuid.UUID) (service.LeagueSummary, error)
	LeagueEvents(ctx context.Context, id uuid.UUID, status model.EventStatus) ([]model.Event, error)
	JoinLeague(ctx context.Context, userID, code string) (model.League, error)
	DeleteLeague(ctx context.Context, userID string, id uuid.UUID) error
	Teams(ctx context.Context, leagueID uuid.UUID) ([]model.Team, error)
	LockStatus(ctx context.Context, leagueID uuid.UUID) (policy.LockStatus, error)
	AthleteTier(ctx context.Context, leagueID uuid.UUID, athleteID int64) (service.AthleteTier, error)
	LeagueLeaderboard(ctx context.Context, leagueID uuid.UUID) ([]service.LeaderboardEntry, error)
	LeagueBreakdown(ctx context.Context, leagueID uuid.UUID) (service.LeagueBreakdown, error)
}

// TeamService serves teams, roster mutations and transfers.
type TeamService interface {
	CreateTeam(ctx context.Context, userID string, leagueID uuid.UUID, name string) (model.Team, error)
	Team(ctx context.Context, id uuid.UUID) (service.TeamView, error)
	RosterStatus(ctx context.Context, teamID uuid.UUID) (policy.LockStatus, error)
	ReplaceRoster(ctx context.Context, userID string, teamID uuid.UUID, entries []service.RosterEntry) (service.TeamView, error)
	SetCaptain(ctx context.Context, userID string, teamID uuid.UUID, athleteID int64) (service.TeamView, error)
	TeamBreakdown(ctx context.Context, teamID uuid.UUID) (service.TeamBreakdown, error)
	TeamScoreForEvent(ctx context.Context, teamID uuid.UUID, eventID int64) (int, error)
	Transfers(ctx context.Context, teamID uuid.UUID) ([]model.Transfer, error)
	CreateTransfer(ctx context.Context, userID string, teamID uuid.UUID, req service.TransferRequest) (model.Transfer, error)
	RevertTransfer(ctx context.Context, userID string, teamID uuid.UUID, afterEventID int64) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ReferenceService
	LeagueService
	TeamService
	Ping(ctx context.Context) error
}

var _ Dependencies = (*service.Service)(nil)

// Server wires HTTP routes for the business API.
type Server struct {
	auth *Authenticator

	healthHandler    *HealthHandler
	referenceHandler *ReferenceHandler
	leagueHandler    *LeagueHandler
	teamHandler      *TeamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, resolver auth.Resolver) *Server {
	return &Server{
		auth:             NewAuthenticator(resolver),
		healthHandler:    NewHealthHandler(deps),
		referenceHandler: NewReferenceHandler(deps),
		leagueHandler:    NewLeagueHandler(deps),
		teamHandler:      NewTeamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	public := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	private := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.auth.Require(h), endpoint))
	}

	public("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())

	ref := s.referenceHandler
	public("GET /api/v1/scoring", "scoring", ref.HandleScoring)
	public("GET /api/v1/athletes", "athletes", ref.HandleAthletes)
	public("GET /api/v1/athletes/{id}", "athlete", ref.HandleAthlete)
	public("GET /api/v1/events", "events", ref.HandleEvents)
	public("GET /api/v1/events/{id}", "event", ref.HandleEvent)
	public("GET /api/v1/rankings/{discipline}/{gender}/{season}", "rankings", ref.HandleRankings)

	lh := s.leagueHandler
	private("POST /api/v1/leagues", "leagues", lh.HandleCreate)
	private("GET /api/v1/leagues", "leagues", lh.HandleList)
	private("POST /api/v1/leagues/join", "league_join", lh.HandleJoin)
	private("GET /api/v1/leagues/{id}", "league", lh.HandleGet)
	private("DELETE /api/v1/leagues/{id}", "league", lh.HandleDelete)
	private("GET /api/v1/leagues/{id}/events", "league_events", lh.HandleEvents)
	private("GET /api/v1/leagues/{id}/teams", "league_teams", lh.HandleTeams)
	private("GET /api/v1/leagues/{id}/lock-status", "league_lock", lh.HandleLockStatus)
	private("GET /api/v1/leagues/{id}/athletes/{athleteID}/tier", "league_tier", lh.HandleAthleteTier)
	private("GET /api/v1/leagues/{id}/leaderboard", "leaderboard", lh.HandleLeaderboard)
	private("GET /api/v1/leagues/{id}/breakdown", "league_breakdown", lh.HandleBreakdown)

	th := s.teamHandler
	private("POST /api/v1/teams", "teams", th.HandleCreate)
	private("GET /api/v1/teams/{id}", "team", th.HandleGet)
	private("GET /api/v1/teams/{id}/roster-status", "roster_status", th.HandleRosterStatus)
	private("PUT /api/v1/teams/{id}/roster", "roster", th.HandleReplaceRoster)
	private("PUT /api/v1/teams/{id}/captain/{athleteID}", "captain", th.HandleSetCaptain)
	private("GET /api/v1/teams/{id}/breakdown", "team_breakdown", th.HandleBreakdown)
	private("GET /api/v1/teams/{id}/events/{eventID}/score", "team_score", th.HandleEventScore)
	private("GET /api/v1/teams/{id}/transfers", "transfers", th.HandleTransfers)
	private("POST /api/v1/teams/{id}/transfers", "transfers", th.HandleCreateTransfer)
	private("DELETE /api/v1/teams/{id}/transfers/{eventID}", "transfer", th.HandleRevertTransfer)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ackResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps a service error onto its status, code and message.
func writeFailure(w http.ResponseWriter, err error) {
	status, code, msg := classify(err)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
