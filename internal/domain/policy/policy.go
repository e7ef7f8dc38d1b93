// Package policy holds the time-based gates on roster editing: the one-way
// draft lock and the post-event transfer window.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// LockStatus is the draft lock state of a league.
type LockStatus struct {
	Locked bool   `json:"locked"`
	Reason string `json:"reason,omitempty"`
	// Latched is set when the lock was observed now and not yet recorded on the league.
	Latched bool `json:"-"`
}

// DraftLock decides whether initial roster editing is closed for league.
// events are the league's associated events. A lock recorded on the league
// (DraftLockedAt) always holds; otherwise any associated event that has
// started or whose date is not after now locks the draft. Leagues without an
// explicit event set are never draft locked.
func DraftLock(league model.League, events []model.Event, now time.Time) LockStatus {
	if league.DraftLockedAt != nil {
		return LockStatus{
			Locked: true,
			Reason: fmt.Sprintf("draft locked since %s", league.DraftLockedAt.UTC().Format(time.RFC3339)),
		}
	}
	if !league.HasExplicitEvents() {
		return LockStatus{}
	}
	sorted := byDate(events)
	for _, e := range sorted {
		if !league.InScope(e) {
			continue
		}
		if e.Status.Started() {
			return LockStatus{Locked: true, Latched: true, Reason: fmt.Sprintf("event %q is %s", e.Name, e.Status)}
		}
		if !e.Date.After(now) {
			return LockStatus{Locked: true, Latched: true, Reason: fmt.Sprintf("event %q has started", e.Name)}
		}
	}
	return LockStatus{}
}

// NextEvent returns the first event in the league's scope dated after anchor,
// or nil when anchor is the last one. Only events of the league's discipline
// and gender count, restricted to the explicit event set when configured.
func NextEvent(league model.League, anchor model.Event, events []model.Event) *model.Event {
	for _, e := range byDate(events) {
		if e.ID == anchor.ID || !e.Date.After(anchor.Date) {
			continue
		}
		if !league.InScope(e) || e.Discipline != league.Discipline || e.Gender != league.Gender {
			continue
		}
		next := e
		return &next
	}
	return nil
}

// Window describes the transfer window following an anchor event.
type Window struct {
	Open bool
	Next *model.Event
}

// TransferWindow reports whether transfers anchored to anchor may still be
// created or reverted. The window closes once the next event in scope has
// started; with no next event it stays open.
func TransferWindow(league model.League, anchor model.Event, events []model.Event) Window {
	next := NextEvent(league, anchor, events)
	if next == nil {
		return Window{Open: true}
	}
	return Window{Open: !next.Status.Started(), Next: next}
}

// byDate returns a copy of events ordered by date then id.
func byDate(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
