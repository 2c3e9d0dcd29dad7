package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
)

var part = Partition{UserID: "u1", Dimension: model.DimensionSemantic}

func strategies() map[string]Index {
	return map[string]Index{
		"bruteforce": BruteForce{},
		"chromem":    NewChromem(),
	}
}

func TestSimilarities(t *testing.T) {
	entries := []Entry{
		{Key: "same", Vector: embedding.Vector{1, 0, 0}},
		{Key: "close", Vector: embedding.Vector{1, 1, 0}},
		{Key: "orthogonal", Vector: embedding.Vector{0, 0, 1}},
		{Key: "wrong-dims", Vector: embedding.Vector{1, 0}},
	}
	for name, idx := range strategies() {
		t.Run(name, func(t *testing.T) {
			got, err := idx.Similarities(context.Background(), part, embedding.Vector{1, 0, 0},
				func() []Entry { return entries })
			require.NoError(t, err)

			assert.InDelta(t, 1.0, got["same"], 1e-5)
			assert.InDelta(t, 0.7071, got["close"], 1e-3)
			assert.InDelta(t, 0.0, got["orthogonal"], 1e-5)
			assert.NotContains(t, got, "wrong-dims")
		})
	}
}

func TestSimilaritiesEmpty(t *testing.T) {
	for name, idx := range strategies() {
		t.Run(name, func(t *testing.T) {
			got, err := idx.Similarities(context.Background(), part, embedding.Vector{1, 0},
				func() []Entry { return nil })
			require.NoError(t, err)
			assert.Empty(t, got)

			got, err = idx.Similarities(context.Background(), part, nil,
				func() []Entry { return []Entry{{Key: "a", Vector: embedding.Vector{1, 0}}} })
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestChromemInvalidate(t *testing.T) {
	idx := NewChromem()
	ctx := context.Background()
	calls := 0
	entries := []Entry{{Key: "a", Vector: embedding.Vector{1, 0}}}
	load := func() []Entry {
		calls++
		return entries
	}

	_, err := idx.Similarities(ctx, part, embedding.Vector{1, 0}, load)
	require.NoError(t, err)
	_, err = idx.Similarities(ctx, part, embedding.Vector{1, 0}, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "collection should be cached between queries")

	entries = append(entries, Entry{Key: "b", Vector: embedding.Vector{0, 1}})
	idx.Invalidate(part)

	got, err := idx.Similarities(ctx, part, embedding.Vector{0, 1}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 1.0, got["b"], 1e-5)
}

func TestChromemPartitionsAreIsolated(t *testing.T) {
	idx := NewChromem()
	ctx := context.Background()
	other := Partition{UserID: "u2", Dimension: model.DimensionSemantic}

	_, err := idx.Similarities(ctx, part, embedding.Vector{1, 0},
		func() []Entry { return []Entry{{Key: "mine", Vector: embedding.Vector{1, 0}}} })
	require.NoError(t, err)

	got, err := idx.Similarities(ctx, other, embedding.Vector{1, 0},
		func() []Entry { return []Entry{{Key: "theirs", Vector: embedding.Vector{1, 0}}} })
	require.NoError(t, err)
	assert.Contains(t, got, "theirs")
	assert.NotContains(t, got, "mine")
}

func TestNew(t *testing.T) {
	idx, ok := New("")
	assert.True(t, ok)
	assert.IsType(t, BruteForce{}, idx)

	idx, ok = New("chromem")
	assert.True(t, ok)
	assert.IsType(t, &Chromem{}, idx)

	_, ok = New("faiss")
	assert.False(t, ok)
}
