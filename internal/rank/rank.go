// Package rank allocates how many search hits from each dimension survive
// into the assembled context.
package rank

import (
	"maps"
	"time"

	"github.com/rcliao/sixmem/internal/model"
)

// Item is one rendered search hit.
type Item struct {
	Dimension model.Dimension
	ID        string
	Score     float64
	// Block is the record rendered for the context, without a trailing newline.
	Block     string
	UpdatedAt time.Time
	// Group and Order position procedural steps: Group is the procedure
	// name and Order the step number. Other dimensions leave them zero.
	Group string
	Order int
}

// Caps is the maximum number of items kept per dimension.
type Caps map[model.Dimension]int

// DefaultCaps returns one core block, five episodes, five concepts, eight
// procedure steps, three resources and three knowledge entries.
func DefaultCaps() Caps {
	return Caps{
		model.DimensionCore:       1,
		model.DimensionEpisodic:   5,
		model.DimensionSemantic:   5,
		model.DimensionProcedural: 8,
		model.DimensionResource:   3,
		model.DimensionKnowledge:  3,
	}
}

// Ranker applies fixed per-dimension caps. It never reorders items within a
// dimension; the managers already return them best first.
type Ranker struct {
	caps Caps
}

// New returns a Ranker using caps over the defaults. A dimension missing
// from caps keeps its default; a cap of zero or less excludes it.
func New(caps Caps) *Ranker {
	merged := DefaultCaps()
	maps.Copy(merged, caps)
	return &Ranker{caps: merged}
}

// Cap returns the cap applied to d.
func (r *Ranker) Cap(d model.Dimension) int { return r.caps[d] }

// Allocate truncates each dimension's items to its cap. Dimensions that
// end up empty are omitted from the result.
func (r *Ranker) Allocate(hits map[model.Dimension][]Item) map[model.Dimension][]Item {
	out := make(map[model.Dimension][]Item, len(hits))
	for d, items := range hits {
		n := min(len(items), max(r.caps[d], 0))
		if n == 0 {
			continue
		}
		out[d] = items[:n:n]
	}
	return out
}
