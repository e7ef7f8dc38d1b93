// Package fault defines the error kinds surfaced by the fantasy league core.
//
// Every failure returned by the application service is a *Error carrying a
// kind (what class of failure) and a reason (which rule rejected the request).
// Both are sentinels, so callers use errors.Is against either one.
package fault

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrState               = errors.New("state error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

// Reasons. Each reason belongs to exactly one kind, see kindOf.
var (
	ErrNotOwner             = errors.New("not_owner")
	ErrNotMember            = errors.New("not_member")
	ErrLeagueNotFound       = errors.New("league_not_found")
	ErrTeamNotFound         = errors.New("team_not_found")
	ErrEventNotFound        = errors.New("event_not_found")
	ErrAthleteNotFound      = errors.New("athlete_not_found")
	ErrTransferNotFound     = errors.New("transfer_not_found")
	ErrInviteNotFound       = errors.New("invite_not_found")
	ErrAlreadyMember        = errors.New("already_member")
	ErrTeamExists           = errors.New("team_exists")
	ErrRosterTooLarge       = errors.New("roster_too_large")
	ErrInvalidCaptainCount  = errors.New("invalid_captain_count")
	ErrDuplicateAthlete     = errors.New("duplicate_athlete")
	ErrTierLimitExceeded    = errors.New("tier_limit_exceeded")
	ErrNotOnRoster          = errors.New("not_on_roster")
	ErrAlreadyOnRoster      = errors.New("already_on_roster")
	ErrCaptainRequired      = errors.New("captain_required")
	ErrRosterLocked         = errors.New("roster_locked")
	ErrWindowClosed         = errors.New("window_closed")
	ErrEventNotCompleted    = errors.New("event_not_completed")
	ErrTransfersDisabled    = errors.New("transfers_disabled")
	ErrTransferLimitReached = errors.New("transfer_limit_reached")
	ErrStorage              = errors.New("storage_unavailable")
	ErrProvider             = errors.New("provider_unavailable")
	ErrBadRequest           = errors.New("bad_request")
)

var kindOf = map[error]error{
	ErrNotOwner:             ErrForbidden,
	ErrNotMember:            ErrForbidden,
	ErrLeagueNotFound:       ErrNotFound,
	ErrTeamNotFound:         ErrNotFound,
	ErrEventNotFound:        ErrNotFound,
	ErrAthleteNotFound:      ErrNotFound,
	ErrTransferNotFound:     ErrNotFound,
	ErrInviteNotFound:       ErrNotFound,
	ErrAlreadyMember:        ErrConflict,
	ErrTeamExists:           ErrConflict,
	ErrRosterTooLarge:       ErrConflict,
	ErrInvalidCaptainCount:  ErrConflict,
	ErrDuplicateAthlete:     ErrConflict,
	ErrTierLimitExceeded:    ErrConflict,
	ErrNotOnRoster:          ErrConflict,
	ErrAlreadyOnRoster:      ErrConflict,
	ErrCaptainRequired:      ErrConflict,
	ErrRosterLocked:         ErrState,
	ErrWindowClosed:         ErrState,
	ErrEventNotCompleted:    ErrState,
	ErrTransfersDisabled:    ErrState,
	ErrTransferLimitReached: ErrState,
	ErrStorage:              ErrUpstreamUnavailable,
	ErrProvider:             ErrUpstreamUnavailable,
	ErrBadRequest:           ErrInvalidInput,
}

// Error is a classified failure.
type Error struct {
	Op     string
	Kind   error
	Reason error
	Detail string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Reason.Error()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Is matches both the kind and the reason.
func (e *Error) Is(target error) bool {
	return target == e.Kind || target == e.Reason
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Code returns the reason as a stable machine readable string.
func (e *Error) Code() string { return e.Reason.Error() }

// New builds an Error for reason with a human readable detail.
func New(op string, reason error, detail string) *Error {
	return &Error{Op: op, Kind: KindOf(reason), Reason: reason, Detail: detail}
}

// Newf is New with fmt formatting.
func Newf(op string, reason error, format string, args ...any) *Error {
	return New(op, reason, fmt.Sprintf(format, args...))
}

// Wrap classifies err under reason, keeping it reachable through errors.Is/As.
// An err that is already an *Error is returned unchanged.
func Wrap(op string, reason error, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Op: op, Kind: KindOf(reason), Reason: reason, Err: err}
}

// KindOf returns the kind a reason belongs to. Unknown reasons are treated as
// upstream failures.
func KindOf(reason error) error {
	if k, ok := kindOf[reason]; ok {
		return k
	}
	return ErrUpstreamUnavailable
}

// As returns the *Error inside err, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}
