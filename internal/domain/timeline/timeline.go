// Package timeline reconstructs a team's roster and captain at any instant
// from its roster and captaincy interval history.
//
// Functions here are pure reads over the intervals they are given; callers
// pass the intervals of a single team.
package timeline

import (
	"sort"
	"time"

	"github.com/okian/fantasy-climbing/internal/domain/model"
)

// Snapshot is the reconstructed state of a team at one instant.
type Snapshot struct {
	AthleteIDs []int64 `json:"athlete_ids"`
	CaptainID  *int64  `json:"captain_id,omitempty"`
}

// Contains reports whether id is on the roster.
func (s Snapshot) Contains(id int64) bool {
	for _, a := range s.AthleteIDs {
		if a == id {
			return true
		}
	}
	return false
}

// IsCaptain reports whether id is the captain.
func (s Snapshot) IsCaptain(id int64) bool {
	return s.CaptainID != nil && *s.CaptainID == id
}

// Swap returns the roster ids with out replaced by in.
func (s Snapshot) Swap(out, in int64) []int64 {
	ids := make([]int64, 0, len(s.AthleteIDs))
	for _, a := range s.AthleteIDs {
		if a != out {
			ids = append(ids, a)
		}
	}
	return append(ids, in)
}

// ActiveRosterAt returns the athletes whose roster interval covers t and the
// captain whose captaincy interval covers t.
//
// When no captaincy interval covers t (teams drafted before captaincy history
// was recorded), the captain falls back to the athlete flagged IsCaptain among
// the covering roster intervals.
func ActiveRosterAt(rosters []model.RosterInterval, captaincies []model.CaptaincyInterval, t time.Time) Snapshot {
	return reconstruct(rosters, captaincies, func(r model.RosterInterval) bool {
		return r.Covers(t)
	}, func(c model.CaptaincyInterval) bool {
		return c.Covers(t)
	})
}

// Current returns the roster made of open intervals and the captain of the
// open captaincy interval, with the same flag fallback as ActiveRosterAt.
func Current(rosters []model.RosterInterval, captaincies []model.CaptaincyInterval) Snapshot {
	return reconstruct(rosters, captaincies, model.RosterInterval.Open, model.CaptaincyInterval.Open)
}

func reconstruct(
	rosters []model.RosterInterval,
	captaincies []model.CaptaincyInterval,
	rosterMatch func(model.RosterInterval) bool,
	captainMatch func(model.CaptaincyInterval) bool,
) Snapshot {
	var snap Snapshot
	seen := make(map[int64]struct{}, len(rosters))
	var flagged *model.RosterInterval
	for i := range rosters {
		r := rosters[i]
		if !rosterMatch(r) {
			continue
		}
		if _, dup := seen[r.AthleteID]; !dup {
			seen[r.AthleteID] = struct{}{}
			snap.AthleteIDs = append(snap.AthleteIDs, r.AthleteID)
		}
		if r.IsCaptain && (flagged == nil || r.AddedAt.After(flagged.AddedAt)) {
			flagged = &rosters[i]
		}
	}
	sort.Slice(snap.AthleteIDs, func(i, j int) bool { return snap.AthleteIDs[i] < snap.AthleteIDs[j] })

	var chosen *model.CaptaincyInterval
	for i := range captaincies {
		c := captaincies[i]
		if !captainMatch(c) {
			continue
		}
		// At most one should match; prefer the latest if history is inconsistent.
		if chosen == nil || c.SetAt.After(chosen.SetAt) {
			chosen = &captaincies[i]
		}
	}
	switch {
	case chosen != nil:
		id := chosen.AthleteID
		snap.CaptainID = &id
	case flagged != nil:
		id := flagged.AthleteID
		snap.CaptainID = &id
	}
	return snap
}
