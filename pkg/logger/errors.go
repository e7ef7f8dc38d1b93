package logger

import "errors"

// Error constants.
var (
	ErrNilWriter    = errors.New("logger: nil writer")
	ErrUnknownLevel = errors.New("logger: unknown level")
)
