package memory

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rcliao/sixmem/internal/lexical"
	"github.com/rcliao/sixmem/internal/model"
)

const (
	viaVector    = "vector"
	viaLexical   = "lexical"
	viaExpansion = "expansion"
	viaIdentity  = "identity"
)

type candidate[T model.Record] struct {
	rec   T
	score float64
	sim   float64
	via   string
	// order breaks the last tie; larger means inserted later.
	order string
}

// relevance scores one record: the best vector similarity among its keys
// when sims has any of them, keyword overlap otherwise.
func relevance(sims map[string]float64, keys []string, m *lexical.Matcher, texts ...string) (float64, string) {
	if sims != nil {
		best, found := 0.0, false
		for _, k := range keys {
			if s, ok := sims[k]; ok {
				if !found || s > best {
					best = s
				}
				found = true
			}
		}
		if found {
			return math.Max(best, 0), viaVector
		}
	}
	return m.Score(texts...), viaLexical
}

// passes applies the relevance cut-off shared by every dimension except
// episodic.
func (d *deps) passes(sim float64, via string) bool {
	if via == viaVector {
		return sim >= d.cfg.MinSimilarity
	}
	return sim > 0
}

// recency maps the age of t to (0, 1], newest scoring highest.
func (d *deps) recency(t time.Time) float64 {
	age := d.now().Sub(t)
	if age < 0 {
		age = 0
	}
	switch d.cfg.RecencyDecay {
	case DecayLinear:
		if d.cfg.RecencyWindow <= 0 {
			return 1
		}
		return math.Max(0, 1-float64(age)/float64(d.cfg.RecencyWindow))
	default:
		if d.cfg.RecencyHalfLife <= 0 {
			return 1
		}
		return math.Exp(-math.Ln2 * float64(age) / float64(d.cfg.RecencyHalfLife))
	}
}

// rank sorts by score, then newer UpdatedAt, then later insertion, and
// truncates to limit.
func rank[T model.Record](cands []candidate[T], limit int) []Scored[T] {
	slices.SortStableFunc(cands, func(a, b candidate[T]) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := b.rec.Header().UpdatedAt.Compare(a.rec.Header().UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.order, a.order)
	})
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]Scored[T], len(cands))
	for i, c := range cands {
		out[i] = Scored[T]{Record: c.rec, Score: c.score, Similarity: c.sim, Via: c.via}
	}
	return out
}

// position is the insertion-order tie-break key for list index i.
func position(i int) string { return fmt.Sprintf("%010d", i) }
