package config

import "errors"

// ErrInvalidConfig wraps every validation failure; ErrLoadConfig wraps
// failures reading .env, the YAML file or the environment.
var (
	ErrInvalidConfig = errors.New("invalid league service config")
	ErrLoadConfig    = errors.New("load league service config")
)

// Validation failures callers may want to tell apart.
var (
	ErrUnknownStore      = errors.New("unknown store backend")
	ErrMissingDSN        = errors.New("postgres store needs database_dsn")
	ErrCaptainMultiplier = errors.New("captain multiplier must be greater than 1")
)
