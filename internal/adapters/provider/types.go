package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// Discipline is a discipline tag on a season event.
type Discipline struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
}

// EventInfo is one event of a season listing.
type EventInfo struct {
	Event          string       `json:"event"`
	EventID        int64        `json:"event_id"`
	Location       string       `json:"location"`
	Country        string       `json:"country"`
	StartsAt       string       `json:"starts_at"`
	EndsAt         string       `json:"ends_at"`
	LeagueSeasonID int64        `json:"league_season_id"`
	URL            string       `json:"url"`
	Disciplines    []Discipline `json:"disciplines"`
}

// League is a league grouping inside a season.
type League struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Season is the payload of /seasons/{id}.
type Season struct {
	Name    string      `json:"name"`
	Leagues []League    `json:"leagues"`
	Events  []EventInfo `json:"events"`
}

// IsWorldCup reports whether leagueSeasonID belongs to the World Cups and
// World Championships league of the season.
func (s Season) IsWorldCup(leagueSeasonID int64) bool {
	suffix := fmt.Sprintf("/%d", leagueSeasonID)
	for _, l := range s.Leagues {
		if !strings.Contains(l.Name, "World Cups") && !strings.Contains(l.Name, "World Championships") {
			continue
		}
		if strings.Contains(l.URL, suffix) {
			return true
		}
	}
	return false
}

// HasDiscipline reports whether the event lists any of the disciplines.
func (e EventInfo) HasDiscipline(want []model.Discipline) bool {
	for _, d := range e.Disciplines {
		kind, ok := model.ParseDiscipline(d.Kind)
		if !ok {
			continue
		}
		for _, w := range want {
			if kind == w {
				return true
			}
		}
	}
	return false
}

// Category is one discipline/gender category (dcat) of an event.
type Category struct {
	DcatID         int64  `json:"dcat_id"`
	EventID        int64  `json:"event_id"`
	DcatName       string `json:"dcat_name"`
	DisciplineKind string `json:"discipline_kind"`
	CategoryName   string `json:"category_name"`
	Status         string `json:"status"`
}

// Finished reports whether the category's results are final.
func (c Category) Finished() bool { return c.Status == "finished" }

// EventStatus maps the category status onto an event status.
func (c Category) EventStatus() model.EventStatus {
	switch c.Status {
	case "finished":
		return model.EventCompleted
	case "active", "running", "in_progress":
		return model.EventInProgress
	default:
		return model.EventUpcoming
	}
}

// FullEvent is the payload of /events/{id}.
type FullEvent struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Location string     `json:"location"`
	Country  string     `json:"country"`
	StartsAt string     `json:"starts_at"`
	EndsAt   string     `json:"ends_at"`
	DCats    []Category `json:"d_cats"`
}

// AthleteResult is one row of a category ranking. Rank is nil for athletes
// that did not place.
type AthleteResult struct {
	AthleteID int64  `json:"athlete_id"`
	Rank      *int   `json:"rank"`
	Name      string `json:"name"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Country   string `json:"country"`
}

// FullName joins first and last name, falling back to Name.
func (a AthleteResult) FullName() string {
	return fullName(a.Firstname, a.Lastname, a.Name)
}

// Results is the payload of /events/{id}/result/{dcat_id}.
type Results struct {
	Event   string          `json:"event"`
	Dcat    string          `json:"dcat"`
	Status  string          `json:"status"`
	Ranking []AthleteResult `json:"ranking"`
}

// Gender derives the category gender from the dcat name ("BOULDER Men").
func (r Results) Gender() model.Gender {
	if strings.Contains(r.Dcat, "Women") {
		return model.GenderWomen
	}
	return model.GenderMen
}

// Registration is one athlete registration for an event. Gender is 0 for men
// and 1 for women.
type Registration struct {
	AthleteID int64  `json:"athlete_id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Name      string `json:"name"`
	Gender    int    `json:"gender"`
	Country   string `json:"country"`
}

// ModelGender maps the numeric gender.
func (r Registration) ModelGender() model.Gender {
	if r.Gender == 1 {
		return model.GenderWomen
	}
	return model.GenderMen
}

// FullName joins first and last name, falling back to Name.
func (r Registration) FullName() string {
	return fullName(r.Firstname, r.Lastname, r.Name)
}

// RankingEntry is one row of a world ranking.
type RankingEntry struct {
	Rank      int      `json:"rank"`
	AthleteID int64    `json:"athlete_id"`
	Name      string   `json:"name"`
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	Country   string   `json:"country"`
	Score     *float64 `json:"score"`
}

// FullName joins first and last name, falling back to Name.
func (r RankingEntry) FullName() string {
	return fullName(r.Firstname, r.Lastname, r.Name)
}

func fullName(first, last, fallback string) string {
	if n := strings.TrimSpace(first + " " + last); n != "" {
		return n
	}
	return fallback
}

var seasonIDs = map[int]int{ //nolint:gochecknoglobals // provider constant table
	2024: 36,
	2025: 37,
	2026: 38,
}

// SeasonID maps a calendar year to the provider's season id.
func SeasonID(year int) (int, error) {
	id, ok := seasonIDs[year]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedSeason, year)
	}
	return id, nil
}

type cuwrKey struct {
	discipline model.Discipline
	gender     model.Gender
}

var cuwrIDs = map[cuwrKey]int{ //nolint:gochecknoglobals // provider constant table
	{model.DisciplineLead, model.GenderMen}:      1,
	{model.DisciplineSpeed, model.GenderMen}:     2,
	{model.DisciplineBoulder, model.GenderMen}:   3,
	{model.DisciplineLead, model.GenderWomen}:    5,
	{model.DisciplineSpeed, model.GenderWomen}:   6,
	{model.DisciplineBoulder, model.GenderWomen}: 7,
}

// CUWRID returns the world ranking id of a discipline and gender.
func CUWRID(d model.Discipline, g model.Gender) (int, error) {
	id, ok := cuwrIDs[cuwrKey{d, g}]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownCategory, d, g)
	}
	return id, nil
}

var dateLayouts = []string{ //nolint:gochecknoglobals // accepted provider date formats
	"2006-01-02 15:04:05 MST",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
}

// ParseDate parses the provider's date strings ("2025-03-07 11:00:00 UTC").
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		if t, err := time.Parse("2006-01-02", s[:i]); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}
