package api

import (
	"errors"
	"net/http"

	"github.com/okian/fantasy-climbing/internal/domain/fault"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

const (
	codeBadRequest   = "bad_request"
	codeUnauthorized = "unauthorized"
	codeInternal     = "internal_error"
)

// classify returns the HTTP status, reason code and message for err.
// Roster locks answer 403 while the other state errors answer 409.
func classify(err error) (int, string, string) {
	fe, ok := fault.As(err)
	if !ok {
		if errors.Is(err, ErrBadRequest) {
			return http.StatusBadRequest, codeBadRequest, err.Error()
		}
		return http.StatusInternalServerError, codeInternal, http.StatusText(http.StatusInternalServerError)
	}

	msg := fe.Detail
	if msg == "" {
		msg = fe.Reason.Error()
	}
	switch {
	case errors.Is(fe, fault.ErrRosterLocked), errors.Is(fe, fault.ErrForbidden):
		return http.StatusForbidden, fe.Code(), msg
	case errors.Is(fe, fault.ErrNotFound):
		return http.StatusNotFound, fe.Code(), msg
	case errors.Is(fe, fault.ErrConflict), errors.Is(fe, fault.ErrState):
		return http.StatusConflict, fe.Code(), msg
	case errors.Is(fe, fault.ErrInvalidInput):
		return http.StatusBadRequest, fe.Code(), msg
	case errors.Is(fe, fault.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, fe.Code(), msg
	default:
		return http.StatusInternalServerError, codeInternal, msg
	}
}
