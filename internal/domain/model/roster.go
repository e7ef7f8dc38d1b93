package model

import (
	"time"

	"github.com/google/uuid"
)

// RosterInterval is one continuous membership span of an athlete on a team.
// RemovedAt == nil means the membership is open (current).
type RosterInterval struct {
	ID        uuid.UUID  `json:"id"`
	TeamID    uuid.UUID  `json:"team_id"`
	AthleteID int64      `json:"athlete_id"`
	IsCaptain bool       `json:"is_captain"`
	AddedAt   time.Time  `json:"added_at"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// Open reports whether the interval has not been closed.
func (r RosterInterval) Open() bool { return r.RemovedAt == nil }

// Covers reports whether the interval is active at t: added_at <= t < removed_at.
func (r RosterInterval) Covers(t time.Time) bool {
	return !r.AddedAt.After(t) && (r.RemovedAt == nil || r.RemovedAt.After(t))
}

// CaptaincyInterval records who captained a team between SetAt and ReplacedAt.
type CaptaincyInterval struct {
	ID         uuid.UUID  `json:"id"`
	TeamID     uuid.UUID  `json:"team_id"`
	AthleteID  int64      `json:"athlete_id"`
	SetAt      time.Time  `json:"set_at"`
	ReplacedAt *time.Time `json:"replaced_at,omitempty"`
}

// Open reports whether the interval has not been replaced.
func (c CaptaincyInterval) Open() bool { return c.ReplacedAt == nil }

// Covers reports whether the captaincy is active at t: set_at <= t < replaced_at.
func (c CaptaincyInterval) Covers(t time.Time) bool {
	return !c.SetAt.After(t) && (c.ReplacedAt == nil || c.ReplacedAt.After(t))
}

// Transfer records one roster swap anchored to a completed event.
type Transfer struct {
	ID             uuid.UUID  `json:"id"`
	TeamID         uuid.UUID  `json:"team_id"`
	AfterEventID   int64      `json:"after_event_id"`
	AthleteOutID   int64      `json:"athlete_out_id"`
	AthleteInID    int64      `json:"athlete_in_id"`
	NewCaptainID   *int64     `json:"new_captain_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	RevertedAt     *time.Time `json:"reverted_at,omitempty"`
	AthleteOutName string     `json:"athlete_out_name,omitempty"`
	AthleteInName  string     `json:"athlete_in_name,omitempty"`
}

// Active reports whether the transfer has not been reverted.
func (t Transfer) Active() bool { return t.RevertedAt == nil }
