// Package tier classifies athletes into rank buckets and enforces per-team
// tier limits.
package tier

import (
	"fmt"
	"strings"
)

// Tier is one rank bucket. A nil MaxRank makes the tier a catch-all; a nil
// MaxPerTeam means unlimited.
type Tier struct {
	Name       string `json:"name" koanf:"name"`
	MaxRank    *int   `json:"max_rank" koanf:"max_rank"`
	MaxPerTeam *int   `json:"max_per_team" koanf:"max_per_team"`
}

// Config is an ordered list of tiers; the last tier should be the catch-all.
type Config []Tier

// Default mirrors the league defaults offered to clients: S (top 10, two per
// team), A (top 30, three per team), B (everyone else).
func Default() Config {
	return Config{
		{Name: "S", MaxRank: intPtr(10), MaxPerTeam: intPtr(2)},
		{Name: "A", MaxRank: intPtr(30), MaxPerTeam: intPtr(3)},
		{Name: "B"},
	}
}

// Validate checks that tiers are non-empty, uniquely named, non-negative and
// that the last tier is the catch-all.
func (c Config) Validate() error {
	if len(c) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(c))
	for i, t := range c {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate tier %q", ErrInvalidConfig, name)
		}
		seen[name] = struct{}{}
		if t.MaxRank != nil && *t.MaxRank < 1 {
			return fmt.Errorf("%w: tier %q max_rank must be positive", ErrInvalidConfig, name)
		}
		if t.MaxPerTeam != nil && *t.MaxPerTeam < 0 {
			return fmt.Errorf("%w: tier %q max_per_team must not be negative", ErrInvalidConfig, name)
		}
	}
	if c[len(c)-1].MaxRank != nil {
		return fmt.Errorf("%w: last tier %q must have no max_rank", ErrInvalidConfig, c[len(c)-1].Name)
	}
	return nil
}

// Classify returns the tier name for an athlete ranking. An absent ranking
// falls into the last tier; otherwise the first tier (in order) whose MaxRank
// is nil or >= rank wins. If no tier matches, the last tier is returned.
func Classify(rank *int, tiers Config) string {
	if len(tiers) == 0 {
		return ""
	}
	last := tiers[len(tiers)-1].Name
	if rank == nil {
		return last
	}
	for _, t := range tiers {
		if t.MaxRank == nil || *t.MaxRank >= *rank {
			return t.Name
		}
	}
	return last
}

// Count tallies athletes per tier using rankings (athlete id -> rank).
func Count(athleteIDs []int64, rankings map[int64]int, tiers Config) map[string]int {
	counts := make(map[string]int, len(tiers))
	for _, t := range tiers {
		counts[t.Name] = 0
	}
	for _, id := range athleteIDs {
		var rank *int
		if r, ok := rankings[id]; ok {
			rank = &r
		}
		counts[Classify(rank, tiers)]++
	}
	return counts
}

// ValidateRoster fails with a *LimitError for the first tier, in configured
// order, whose count exceeds its MaxPerTeam.
func ValidateRoster(athleteIDs []int64, rankings map[int64]int, tiers Config) error {
	if len(tiers) == 0 || len(athleteIDs) == 0 {
		return nil
	}
	counts := Count(athleteIDs, rankings, tiers)
	for _, t := range tiers {
		if t.MaxPerTeam == nil {
			continue
		}
		if got := counts[t.Name]; got > *t.MaxPerTeam {
			return &LimitError{Tier: t.Name, Limit: *t.MaxPerTeam, Actual: got}
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
