package api

import (
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/fantasy-climbing/internal/app"
	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// ReferenceHandler handles the public read-only catalogue.
type ReferenceHandler struct {
	deps ReferenceService
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(deps ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{deps: deps}
}

// HandleScoring handles GET /api/v1/scoring.
func (h *ReferenceHandler) HandleScoring(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.ScoringConfig())
}

// HandleAthletes handles GET /api/v1/athletes?gender=.
func (h *ReferenceHandler) HandleAthletes(w http.ResponseWriter, r *http.Request) {
	athletes, err := h.deps.Athletes(r.Context(), model.Gender(r.URL.Query().Get("gender")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, athletes)
}

// HandleAthlete handles GET /api/v1/athletes/{id}.
func (h *ReferenceHandler) HandleAthlete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	a, err := h.deps.Athlete(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleEvents handles GET /api/v1/events?discipline=&gender=&status=.
func (h *ReferenceHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.deps.Events(r.Context(), service.EventQuery{
		Discipline: model.Discipline(q.Get("discipline")),
		Gender:     model.Gender(q.Get("gender")),
		Status:     model.EventStatus(q.Get("status")),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleEvent handles GET /api/v1/events/{id}.
func (h *ReferenceHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	e, err := h.deps.Event(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleRankings handles GET /api/v1/rankings/{discipline}/{gender}/{season}.
func (h *ReferenceHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	season, err := strconv.Atoi(r.PathValue("season"))
	if err != nil {
		badRequest(w, fmt.Errorf("%w: invalid season %q", ErrBadRequest, r.PathValue("season")))
		return
	}
	rows, err := h.deps.Rankings(r.Context(),
		model.Discipline(r.PathValue("discipline")),
		model.Gender(r.PathValue("gender")),
		season)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
