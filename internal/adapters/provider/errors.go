package provider

import "errors"

// Sentinel kinds for provider errors.
var (
	ErrUnsupportedSeason = errors.New("unsupported season")
	ErrUnknownCategory   = errors.New("unknown discipline/gender category")
	ErrNoSession         = errors.New("could not obtain provider session")
	ErrUnexpectedStatus  = errors.New("unexpected provider status")
	ErrBadDate           = errors.New("unparseable provider date")
)
