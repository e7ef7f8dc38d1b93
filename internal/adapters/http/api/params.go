package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, r.PathValue(name))
	}
	return id, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, r.PathValue(name))
	}
	return v, nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, codeBadRequest, err)
}
