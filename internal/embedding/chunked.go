package embedding

import (
	"context"
	"fmt"

	"github.com/rcliao/sixmem/internal/chunker"
)

// Chunked embeds long texts piecewise and mean-pools the unit-normalized
// chunk vectors, so texts past the provider's input limit still get one
// vector. Texts within the chunk limit pass straight through.
type Chunked struct {
	inner Embedder
	opts  chunker.Options
}

// NewChunked wraps inner, splitting texts longer than maxRunes.
func NewChunked(inner Embedder, maxRunes int) *Chunked {
	return &Chunked{inner: inner, opts: chunker.Options{Target: maxRunes * 2 / 3, Max: maxRunes}}
}

func (c *Chunked) Embed(ctx context.Context, text string) (Vector, error) {
	chunks := chunker.Split(text, c.opts)
	if len(chunks) <= 1 {
		return c.inner.Embed(ctx, text)
	}

	var sum []float64
	for i, chunk := range chunks {
		v, err := c.inner.Embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			return nil, fmt.Errorf("chunk %d/%d: got %d dimensions, want %d", i+1, len(chunks), len(v), len(sum))
		}
		v = normalize(clone(v))
		for j, x := range v {
			sum[j] += float64(x)
		}
	}
	out := make(Vector, len(sum))
	for j, x := range sum {
		out[j] = float32(x / float64(len(chunks)))
	}
	return normalize(out), nil
}

func (c *Chunked) Dims() int { return c.inner.Dims() }
