package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
)

func allergyEmbedder() *stubEmbedder {
	return &stubEmbedder{dims: 3, vectors: map[string]embedding.Vector{
		"peanut: a legume snack":           {1, 0, 0},
		"allergy: immune reaction to food": {0, 1, 0},
		"weather: rain and sun":            {0, 0, 1},
		"peanut":                           {1, 0, 0},
	}}
}

type concepts struct {
	peanut, allergy, weather model.SemanticMemory
}

func seedConcepts(t *testing.T, f *fixture) concepts {
	t.Helper()
	ctx := context.Background()
	var c concepts
	var err error
	c.peanut, err = f.Semantic.Create(ctx, "alice", model.SemanticMemory{Name: "peanut", Description: "a legume snack"})
	require.NoError(t, err)
	c.allergy, err = f.Semantic.Create(ctx, "alice", model.SemanticMemory{Name: "allergy", Description: "immune reaction to food"})
	require.NoError(t, err)
	c.weather, err = f.Semantic.Create(ctx, "alice", model.SemanticMemory{Name: "weather", Description: "rain and sun"})
	require.NoError(t, err)
	return c
}

func TestSemanticRelationshipExpansion(t *testing.T) {
	indexes := map[string]similarity.Index{
		"bruteforce": similarity.BruteForce{},
		"chromem":    similarity.NewChromem(),
	}
	for name, idx := range indexes {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, withEmbedder(allergyEmbedder()), withIndex(idx))
			ctx := context.Background()
			c := seedConcepts(t, f)

			_, err := f.Semantic.Link(ctx, "alice", model.SemanticRelationship{
				SourceID: c.peanut.ID, TargetID: c.allergy.ID, RelationshipType: "causes", Strength: 0.9,
			})
			require.NoError(t, err)

			hits, err := f.Semantic.Search(ctx, "alice", "peanut", 5)
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, c.peanut.ID, hits[0].Record.ID)
			assert.Equal(t, "vector", hits[0].Via)
			assert.Equal(t, c.allergy.ID, hits[1].Record.ID)
			assert.Equal(t, "expansion", hits[1].Via)
			assert.InDelta(t, hits[0].Score*0.9, hits[1].Score, 1e-6)
		})
	}
}

func TestSemanticWeakEdgeNotFollowed(t *testing.T) {
	f := newFixture(t, withEmbedder(allergyEmbedder()))
	ctx := context.Background()
	c := seedConcepts(t, f)

	_, err := f.Semantic.Link(ctx, "alice", model.SemanticRelationship{
		SourceID: c.allergy.ID, TargetID: c.peanut.ID, RelationshipType: "related", Strength: 0.3,
	})
	require.NoError(t, err)

	hits, err := f.Semantic.Search(ctx, "alice", "peanut", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{c.peanut.ID}, ids(hits))
}

func TestSemanticExpansionKeywordMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedConcepts(t, f)

	// Edges are undirected for expansion.
	_, err := f.Semantic.Link(ctx, "alice", model.SemanticRelationship{
		SourceID: c.allergy.ID, TargetID: c.peanut.ID, RelationshipType: "triggered_by", Strength: 0.9,
	})
	require.NoError(t, err)

	hits, err := f.Semantic.Search(ctx, "alice", "peanut", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "lexical", hits[0].Via)
	assert.Equal(t, c.allergy.ID, hits[1].Record.ID)
	assert.InDelta(t, 0.9, hits[1].Score, 1e-9)
}

func TestLinkValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedConcepts(t, f)
	bobs, err := f.Semantic.Create(ctx, "bob", model.SemanticMemory{Name: "bob's concept"})
	require.NoError(t, err)

	tests := []struct {
		name string
		rel  model.SemanticRelationship
	}{
		{"self loop", model.SemanticRelationship{SourceID: c.peanut.ID, TargetID: c.peanut.ID, RelationshipType: "is", Strength: 0.5}},
		{"strength above one", model.SemanticRelationship{SourceID: c.peanut.ID, TargetID: c.allergy.ID, RelationshipType: "causes", Strength: 1.5}},
		{"negative strength", model.SemanticRelationship{SourceID: c.peanut.ID, TargetID: c.allergy.ID, RelationshipType: "causes", Strength: -0.1}},
		{"missing type", model.SemanticRelationship{SourceID: c.peanut.ID, TargetID: c.allergy.ID, Strength: 0.5}},
		{"unknown target", model.SemanticRelationship{SourceID: c.peanut.ID, TargetID: "sem_missing", RelationshipType: "causes", Strength: 0.5}},
		{"foreign target", model.SemanticRelationship{SourceID: c.peanut.ID, TargetID: bobs.ID, RelationshipType: "causes", Strength: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Semantic.Link(ctx, "alice", tt.rel)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	edges, err := f.Semantic.Relationships(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestSemanticDeleteCascadesEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedConcepts(t, f)

	rel, err := f.Semantic.Link(ctx, "alice", model.SemanticRelationship{
		SourceID: c.peanut.ID, TargetID: c.allergy.ID, RelationshipType: "causes", Strength: 0.9,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^rel_`, rel.ID)
	_, err = f.Semantic.Link(ctx, "alice", model.SemanticRelationship{
		SourceID: c.weather.ID, TargetID: c.allergy.ID, RelationshipType: "worsens", Strength: 0.4,
	})
	require.NoError(t, err)

	touching, err := f.Semantic.Relationships(ctx, "alice", c.allergy.ID)
	require.NoError(t, err)
	assert.Len(t, touching, 2)

	ok, err := f.Semantic.Delete(ctx, "alice", c.peanut.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.Semantic.Relationship(ctx, "alice", rel.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	touching, err = f.Semantic.Relationships(ctx, "alice", c.allergy.ID)
	require.NoError(t, err)
	assert.Len(t, touching, 1)
}

func TestUpdateRelationship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := seedConcepts(t, f)
	rel, err := f.Semantic.Link(ctx, "alice", model.SemanticRelationship{
		SourceID: c.peanut.ID, TargetID: c.allergy.ID, RelationshipType: "causes", Strength: 0.9,
	})
	require.NoError(t, err)

	s := 0.2
	got, err := f.Semantic.UpdateRelationship(ctx, "alice", rel.ID, model.RelationshipPatch{Strength: &s})
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.Strength)
	assert.Equal(t, c.peanut.ID, got.SourceID)

	s = 2
	_, err = f.Semantic.UpdateRelationship(ctx, "alice", rel.ID, model.RelationshipPatch{Strength: &s})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.Semantic.UpdateRelationship(ctx, "bob", rel.ID, model.RelationshipPatch{Strength: &s})
	assert.ErrorIs(t, err, model.ErrNotFound)

	ok, err := f.Semantic.Unlink(ctx, "alice", rel.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.Semantic.Unlink(ctx, "alice", rel.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
