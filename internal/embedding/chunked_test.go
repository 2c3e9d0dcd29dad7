package embedding

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmbedder struct {
	mu    sync.Mutex
	texts []string
	inner Embedder
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	return r.inner.Embed(ctx, text)
}

func (r *recordingEmbedder) Dims() int { return r.inner.Dims() }

func TestChunkedPassesShortTextThrough(t *testing.T) {
	rec := &recordingEmbedder{inner: NewHashEmbedder(64)}
	c := NewChunked(rec, 100)

	v, err := c.Embed(context.Background(), "peanut allergy")
	require.NoError(t, err)
	assert.Len(t, v, 64)
	assert.Equal(t, []string{"peanut allergy"}, rec.texts)
}

func TestChunkedPoolsLongText(t *testing.T) {
	rec := &recordingEmbedder{inner: NewHashEmbedder(256)}
	c := NewChunked(rec, 120)
	ctx := context.Background()

	text := strings.Repeat("peanut allergy reactions in children. ", 3) + "\n\n" +
		strings.Repeat("sourdough bread baking schedule. ", 4)
	v, err := c.Embed(ctx, text)
	require.NoError(t, err)
	require.Greater(t, len(rec.texts), 1)
	for _, chunk := range rec.texts {
		assert.LessOrEqual(t, len([]rune(chunk)), 120)
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1, norm, 1e-5)

	peanut, err := c.Embed(ctx, "peanut allergy children")
	require.NoError(t, err)
	bread, err := c.Embed(ctx, "sourdough bread baking")
	require.NoError(t, err)
	unrelated, err := c.Embed(ctx, "quarterly tax filing")
	require.NoError(t, err)

	assert.Greater(t, CosineSimilarity(v, peanut), CosineSimilarity(v, unrelated))
	assert.Greater(t, CosineSimilarity(v, bread), CosineSimilarity(v, unrelated))
}

func TestChunkedPropagatesChunkErrors(t *testing.T) {
	c := NewChunked(failing{}, 50)
	_, err := c.Embed(context.Background(), strings.Repeat("word ", 40))
	assert.ErrorContains(t, err, "chunk 1/")
}

type failing struct{}

func (failing) Embed(context.Context, string) (Vector, error) { return nil, assert.AnError }
func (failing) Dims() int                                      { return 8 }
