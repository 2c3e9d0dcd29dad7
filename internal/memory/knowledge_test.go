package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
)

func TestKnowledgeConfidenceThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	k, err := f.Knowledge.Create(ctx, "alice", model.KnowledgeEntry{
		Domain: "nutrition", Topic: "allergens", Content: "Peanuts are legumes", Confidence: 0.3,
	})
	require.NoError(t, err)

	hits, err := f.Knowledge.Search(ctx, "alice", "peanuts legumes", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	c := 0.5
	_, err = f.Knowledge.Update(ctx, "alice", k.ID, model.KnowledgePatch{Confidence: &c})
	require.NoError(t, err)
	hits, err = f.Knowledge.Search(ctx, "alice", "peanuts legumes", 3)
	require.NoError(t, err)
	assert.Empty(t, hits, "threshold is exclusive")

	c = 0.6
	_, err = f.Knowledge.Update(ctx, "alice", k.ID, model.KnowledgePatch{Confidence: &c})
	require.NoError(t, err)
	hits, err = f.Knowledge.Search(ctx, "alice", "peanuts legumes", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, k.ID, hits[0].Record.ID)
	assert.InDelta(t, 0.7*1+0.3*0.6, hits[0].Score, 1e-9)
}

func TestKnowledgeConfidenceBreaksTies(t *testing.T) {
	emb := &stubEmbedder{dims: 2, vectors: map[string]embedding.Vector{
		"legumes: Peanuts are legumes":  {1, 0},
		"legumes: Peanuts grow in soil": {1, 0},
		"peanuts":                       {1, 0},
	}}
	f := newFixture(t, withEmbedder(emb))
	ctx := context.Background()

	low, err := f.Knowledge.Create(ctx, "alice", model.KnowledgeEntry{
		Domain: "botany", Topic: "legumes", Content: "Peanuts are legumes", Confidence: 0.6,
	})
	require.NoError(t, err)
	high, err := f.Knowledge.Create(ctx, "alice", model.KnowledgeEntry{
		Domain: "botany", Topic: "legumes", Content: "Peanuts grow in soil", Confidence: 0.95,
	})
	require.NoError(t, err)

	hits, err := f.Knowledge.Search(ctx, "alice", "peanuts", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{high.ID, low.ID}, ids(hits))
	assert.Equal(t, "vector", hits[0].Via)
}
