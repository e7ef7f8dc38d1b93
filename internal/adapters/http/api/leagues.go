package api

import (
	"fmt"
	"net/http"

	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/domain/model"
)

type joinRequest struct {
	InviteCode string `json:"invite_code"`
}

// LeagueHandler handles league management and league scoring.
type LeagueHandler struct {
	deps LeagueService
}

// NewLeagueHandler creates a new league handler.
func NewLeagueHandler(deps LeagueService) *LeagueHandler {
	return &LeagueHandler{deps: deps}
}

// HandleCreate handles POST /api/v1/leagues.
func (h *LeagueHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req service.NewLeague
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	l, err := h.deps.CreateLeague(r.Context(), user, req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// HandleList handles GET /api/v1/leagues.
func (h *LeagueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	leagues, err := h.deps.Leagues(r.Context(), user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leagues)
}

// HandleJoin handles POST /api/v1/leagues/join.
func (h *LeagueHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil || req.InviteCode == "" {
		badRequest(w, fmt.Errorf("%w: invite_code is required", ErrBadRequest))
		return
	}
	l, err := h.deps.JoinLeague(r.Context(), user, req.InviteCode)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleGet handles GET /api/v1/leagues/{id}.
func (h *LeagueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	l, err := h.deps.League(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleDelete handles DELETE /api/v1/leagues/{id}.
func (h *LeagueHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.deps.DeleteLeague(r.Context(), user, id); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents handles GET /api/v1/leagues/{id}/events?status=.
func (h *LeagueHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	events, err := h.deps.LeagueEvents(r.Context(), id, model.EventStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleTeams handles GET /api/v1/leagues/{id}/teams.
func (h *LeagueHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	teams, err := h.deps.Teams(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// HandleLockStatus handles GET /api/v1/leagues/{id}/lock-status.
func (h *LeagueHandler) HandleLockStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	st, err := h.deps.LockStatus(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleAthleteTier handles GET /api/v1/leagues/{id}/athletes/{athleteID}/tier.
func (h *LeagueHandler) HandleAthleteTier(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	athleteID, err := pathInt64(r, "athleteID")
	if err != nil {
		badRequest(w, err)
		return
	}
	t, err := h.deps.AthleteTier(r.Context(), id, athleteID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleLeaderboard handles GET /api/v1/leagues/{id}/leaderboard.
func (h *LeagueHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	board, err := h.deps.LeagueLeaderboard(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// HandleBreakdown handles GET /api/v1/leagues/{id}/breakdown.
func (h *LeagueHandler) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	bd, err := h.deps.LeagueBreakdown(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bd)
}
