package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	service "github.com/okian/fantasy-climbing/internal/app"
)

type createTeamRequest struct {
	LeagueID uuid.UUID `json:"league_id"`
	Name     string    `json:"name"`
}

type rosterRequest struct {
	Roster []service.RosterEntry `json:"roster"`
}

type scoreResponse struct {
	TeamID  uuid.UUID `json:"team_id"`
	EventID int64     `json:"event_id"`
	Score   int       `json:"score"`
}

// TeamHandler handles teams, roster edits and transfers.
type TeamHandler struct {
	deps TeamService
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(deps TeamService) *TeamHandler {
	return &TeamHandler{deps: deps}
}

// HandleCreate handles POST /api/v1/teams.
func (h *TeamHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if req.LeagueID == uuid.Nil {
		badRequest(w, fmt.Errorf("%w: league_id is required", ErrBadRequest))
		return
	}
	t, err := h.deps.CreateTeam(r.Context(), user, req.LeagueID, req.Name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleGet handles GET /api/v1/teams/{id}.
func (h *TeamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	t, err := h.deps.Team(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleRosterStatus handles GET /api/v1/teams/{id}/roster-status.
func (h *TeamHandler) HandleRosterStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	st, err := h.deps.RosterStatus(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReplaceRoster handles PUT /api/v1/teams/{id}/roster.
func (h *TeamHandler) HandleReplaceRoster(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req rosterRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	view, err := h.deps.ReplaceRoster(r.Context(), user, id, req.Roster)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSetCaptain handles PUT /api/v1/teams/{id}/captain/{athleteID}.
func (h *TeamHandler) HandleSetCaptain(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
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
	view, err := h.deps.SetCaptain(r.Context(), user, id, athleteID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleBreakdown handles GET /api/v1/teams/{id}/breakdown.
func (h *TeamHandler) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	bd, err := h.deps.TeamBreakdown(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bd)
}

// HandleEventScore handles GET /api/v1/teams/{id}/events/{eventID}/score.
func (h *TeamHandler) HandleEventScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	eventID, err := pathInt64(r, "eventID")
	if err != nil {
		badRequest(w, err)
		return
	}
	score, err := h.deps.TeamScoreForEvent(r.Context(), id, eventID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{TeamID: id, EventID: eventID, Score: score})
}

// HandleTransfers handles GET /api/v1/teams/{id}/transfers.
func (h *TeamHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	list, err := h.deps.Transfers(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleCreateTransfer handles POST /api/v1/teams/{id}/transfers.
func (h *TeamHandler) HandleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var req service.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	t, err := h.deps.CreateTransfer(r.Context(), user, id, req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleRevertTransfer handles DELETE /api/v1/teams/{id}/transfers/{eventID}.
func (h *TeamHandler) HandleRevertTransfer(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	eventID, err := pathInt64(r, "eventID")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.deps.RevertTransfer(r.Context(), user, id, eventID); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "reverted"})
}
