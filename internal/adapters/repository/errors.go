package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrInvalidPatch = errors.New("invalid patch")
	ErrUnavailable  = errors.New("store unavailable")
	ErrUnknownKind  = errors.New("unknown store kind")
)
