// Package scoring turns competition placements into fantasy points.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Default scoring configuration constants.
const (
	DefaultCaptainMultiplier = 1.2
	defaultFloor             = 1
)

// ifscPoints is the official World Cup points table, ranks 1..80.
var ifscPoints = []int{ //nolint:gochecknoglobals // immutable table, copied on use
	1000, 805, 690, 610, 545, 495, 455, 415, 380, 350,
	325, 300, 280, 260, 240, 220, 205, 185, 170, 155,
	145, 130, 120, 105, 95, 84, 73, 63, 56, 48,
	42, 37, 33, 30, 27, 24, 21, 19, 17, 15,
	14, 13, 12, 11, 11, 10, 9, 9, 8, 8,
	7, 7, 7, 6, 6, 6, 5, 5, 5, 4,
	4, 4, 4, 3, 3, 3, 3, 3, 2, 2,
	2, 2, 2, 2, 1, 1, 1, 1, 1, 1,
}

// Entry is one row of a points table.
type Entry struct {
	Rank   int `json:"rank"`
	Points int `json:"points"`
}

// Table is an immutable rank -> points step function. Ranks beyond the table
// score the floor value.
type Table struct {
	points []int
	floor  int
}

// NewTable validates and builds a Table. Points must be positive and
// non-increasing; the floor must be positive and not above the last entry.
func NewTable(points []int, floor int) (Table, error) {
	if len(points) == 0 {
		return Table{}, fmt.Errorf("%w: empty points table", ErrInvalidTable)
	}
	for i, p := range points {
		if p <= 0 {
			return Table{}, fmt.Errorf("%w: rank %d has non-positive points", ErrInvalidTable, i+1)
		}
		if i > 0 && p > points[i-1] {
			return Table{}, fmt.Errorf("%w: rank %d scores more than rank %d", ErrInvalidTable, i+1, i)
		}
	}
	if floor <= 0 || floor > points[len(points)-1] {
		return Table{}, fmt.Errorf("%w: floor %d out of range", ErrInvalidTable, floor)
	}
	cp := make([]int, len(points))
	copy(cp, points)
	return Table{points: cp, floor: floor}, nil
}

// IFSC returns the official World Cup table with a floor of one point.
func IFSC() Table {
	t, _ := NewTable(ifscPoints, defaultFloor)
	return t
}

// Points returns base points for rank. Ranks below 1 are not placements and
// score zero.
func (t Table) Points(rank int) int {
	switch {
	case rank < 1:
		return 0
	case rank <= len(t.points):
		return t.points[rank-1]
	default:
		return t.floor
	}
}

// Floor is the score of any rank beyond the table.
func (t Table) Floor() int { return t.floor }

// Entries returns a copy of the table rows.
func (t Table) Entries() []Entry {
	out := make([]Entry, len(t.points))
	for i, p := range t.points {
		out[i] = Entry{Rank: i + 1, Points: p}
	}
	return out
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithTable sets the points table.
func WithTable(t Table) Option {
	return func(s *Scorer) {
		if len(t.points) > 0 {
			s.table = t
		}
	}
}

// WithCaptainMultiplier sets the captain multiplier. Values <= 1 are ignored.
func WithCaptainMultiplier(m float64) Option {
	return func(s *Scorer) {
		if m > 1 {
			s.multiplier = decimal.NewFromFloat(m)
		}
	}
}

// Scorer applies a points table and a captain multiplier.
type Scorer struct {
	table      Table
	multiplier decimal.Decimal
}

// NewScorer creates a Scorer with the IFSC table and the default multiplier.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		table:      IFSC(),
		multiplier: decimal.NewFromFloat(DefaultCaptainMultiplier),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the points for rank. Captains get base points times the
// multiplier, rounded half up, and always at least one point more than base.
func (s *Scorer) Score(rank int, captain bool) int {
	base := s.table.Points(rank)
	if !captain || base == 0 {
		return base
	}
	boosted := int(decimal.NewFromInt(int64(base)).Mul(s.multiplier).Round(0).IntPart())
	if boosted <= base {
		return base + 1
	}
	return boosted
}

// Base returns base points for rank without any multiplier.
func (s *Scorer) Base(rank int) int { return s.table.Points(rank) }

// Multiplier returns the captain multiplier.
func (s *Scorer) Multiplier() float64 {
	f, _ := s.multiplier.Float64()
	return f
}

// Table returns the points table in use.
func (s *Scorer) Table() Table { return s.table }
