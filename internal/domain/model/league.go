package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/fantasy-climbing/internal/domain/tier"
)

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// League groups teams competing over a set of events.
type League struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	AdminID           string      `json:"admin_id"`
	Gender            Gender      `json:"gender"`
	Discipline        Discipline  `json:"discipline"`
	InviteCode        string      `json:"invite_code"`
	TransfersPerEvent int         `json:"transfers_per_event"`
	TeamSize          int         `json:"team_size"`
	CaptainMultiplier float64     `json:"captain_multiplier"`
	Tiers             tier.Config `json:"tier_config"`
	EventIDs          []int64     `json:"event_ids"`
	// DraftLockedAt latches the draft lock the first time it is observed.
	DraftLockedAt *time.Time `json:"draft_locked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasExplicitEvents reports whether the league restricts itself to a configured event set.
func (l League) HasExplicitEvents() bool { return len(l.EventIDs) > 0 }

// InScope reports whether e counts for this league: part of the explicit event
// set when one is configured, otherwise any event matching discipline and gender.
func (l League) InScope(e Event) bool {
	if l.HasExplicitEvents() {
		for _, id := range l.EventIDs {
			if id == e.ID {
				return true
			}
		}
		return false
	}
	return e.Discipline == l.Discipline && e.Gender == l.Gender
}

// LeagueMember links a user to a league.
type LeagueMember struct {
	LeagueID uuid.UUID `json:"league_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
}

// Team is one user's fantasy team in a league.
type Team struct {
	ID        uuid.UUID `json:"id"`
	LeagueID  uuid.UUID `json:"league_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
