// Package similarity scores stored vectors against a query vector for one
// (user, dimension) partition.
package similarity

import (
	"context"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
)

// Partition scopes an index to one owner's records in one dimension.
type Partition struct {
	UserID    string
	Dimension model.Dimension
}

// Entry is one stored vector. A record may contribute several entries under
// distinct keys (episodic summary and details).
type Entry struct {
	Key    string
	Vector embedding.Vector
}

// Index computes cosine similarities for every entry of a partition. The
// entries callback is only invoked when the index needs the current vectors.
// Invalidate must be called after any write to the partition.
type Index interface {
	Similarities(ctx context.Context, p Partition, query embedding.Vector, entries func() []Entry) (map[string]float64, error)
	Invalidate(p Partition)
}

// New returns the named strategy: "bruteforce" (default) or "chromem".
func New(strategy string) (Index, bool) {
	switch strategy {
	case "", "bruteforce":
		return BruteForce{}, true
	case "chromem":
		return NewChromem(), true
	}
	return nil, false
}

// BruteForce rescans every entry on each call. Entries whose length differs
// from the query are skipped.
type BruteForce struct{}

func (BruteForce) Similarities(ctx context.Context, p Partition, query embedding.Vector, entries func() []Entry) (map[string]float64, error) {
	out := make(map[string]float64)
	if len(query) == 0 {
		return out, nil
	}
	for _, e := range entries() {
		if len(e.Vector) != len(query) {
			continue
		}
		out[e.Key] = embedding.CosineSimilarity(query, e.Vector)
	}
	return out, ctx.Err()
}

func (BruteForce) Invalidate(Partition) {}
