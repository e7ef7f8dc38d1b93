package tier

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid tier config")
	ErrLimitExceeded = errors.New("tier limit exceeded")
)

// LimitError reports a tier whose per-team limit was exceeded.
type LimitError struct {
	Tier   string
	Limit  int
	Actual int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("too many %s-tier athletes (max %d, got %d)", e.Tier, e.Limit, e.Actual)
}

// Is lets callers match any LimitError with ErrLimitExceeded.
func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }
