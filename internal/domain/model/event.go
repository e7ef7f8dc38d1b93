// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Gender splits competitions and leagues.
type Gender string

// Supported genders. The offset used in internal event ids follows this order.
const (
	GenderMen   Gender = "men"
	GenderWomen Gender = "women"
)

// ParseGender maps a provider category name ("Men", "Women") to a Gender.
func ParseGender(s string) (Gender, bool) {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GenderMen:
		return GenderMen, true
	case GenderWomen:
		return GenderWomen, true
	}
	return "", false
}

// Offset is the gender component of an internal event id.
func (g Gender) Offset() int64 {
	if g == GenderWomen {
		return 1
	}
	return 0
}

// Discipline is the climbing discipline of an event or league.
type Discipline string

// Supported disciplines.
const (
	DisciplineBoulder Discipline = "boulder"
	DisciplineLead    Discipline = "lead"
	DisciplineSpeed   Discipline = "speed"
)

// ParseDiscipline maps a provider discipline kind to a Discipline.
func ParseDiscipline(s string) (Discipline, bool) {
	switch Discipline(strings.ToLower(strings.TrimSpace(s))) {
	case DisciplineBoulder:
		return DisciplineBoulder, true
	case DisciplineLead:
		return DisciplineLead, true
	case DisciplineSpeed:
		return DisciplineSpeed, true
	}
	return "", false
}

// EventStatus is the lifecycle state of an event: upcoming -> in_progress -> completed.
type EventStatus string

// Event statuses.
const (
	EventUpcoming   EventStatus = "upcoming"
	EventInProgress EventStatus = "in_progress"
	EventCompleted  EventStatus = "completed"
)

func (s EventStatus) order() int {
	switch s {
	case EventInProgress:
		return 1
	case EventCompleted:
		return 2
	default:
		return 0
	}
}

// Started reports whether the event is in progress or completed.
func (s EventStatus) Started() bool {
	return s == EventInProgress || s == EventCompleted
}

// Advance returns the later of s and next. Status never regresses.
func (s EventStatus) Advance(next EventStatus) EventStatus {
	if next.order() > s.order() {
		return next
	}
	return s
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s == EventUpcoming || s == EventInProgress || s == EventCompleted
}

// Athlete is immutable reference data upserted from ingestion.
type Athlete struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Gender  Gender `json:"gender"`
}

// Event is one per-gender competition category.
type Event struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Date       time.Time   `json:"date"`
	Discipline Discipline  `json:"discipline"`
	Gender     Gender      `json:"gender"`
	Status     EventStatus `json:"status"`
}

// InternalEventID derives the stored event id from the provider id and gender:
// providerID*10 + gender offset.
func InternalEventID(providerID int64, g Gender) int64 {
	return providerID*10 + g.Offset()
}

// Result is an athlete's placement in an event.
type Result struct {
	EventID   int64 `json:"event_id"`
	AthleteID int64 `json:"athlete_id"`
	Rank      int   `json:"rank"`
	Score     int   `json:"score"`
}

// Ranking is an athlete's world ranking for one discipline, gender and season.
type Ranking struct {
	Season     int        `json:"season"`
	Discipline Discipline `json:"discipline"`
	Gender     Gender     `json:"gender"`
	AthleteID  int64      `json:"athlete_id"`
	Rank       int        `json:"rank"`
	Score      *float64   `json:"score,omitempty"`
}

// Registration records that an athlete is registered for an event.
type Registration struct {
	EventID   int64 `json:"event_id"`
	AthleteID int64 `json:"athlete_id"`
}
