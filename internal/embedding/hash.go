package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/rcliao/sixmem/internal/lexical"
)

// HashEmbedder is a deterministic offline provider. It feature-hashes the
// non-stop-word terms of the text into a fixed-size vector, so texts sharing
// terms score higher than unrelated ones.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder. Default 256 dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make(Vector, e.dims)
	for _, term := range lexical.Terms(text) {
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(e.dims)] += sign
	}
	return normalize(vec), nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

// normalize scales vec to unit length in place. A zero vector is returned
// unchanged.
func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
