package store

import (
	"maps"
	"slices"
	"time"

	"github.com/rcliao/sixmem/internal/model"
)

func cloneBase(b model.Base) model.Base {
	b.Metadata = maps.Clone(b.Metadata)
	return b
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneCore(c model.CoreMemory) model.CoreMemory {
	c.Base = cloneBase(c.Base)
	return c
}

func cloneEpisodic(e model.EpisodicMemory) model.EpisodicMemory {
	e.Base = cloneBase(e.Base)
	e.TreePath = slices.Clone(e.TreePath)
	e.SummaryEmbedding = slices.Clone(e.SummaryEmbedding)
	e.DetailsEmbedding = slices.Clone(e.DetailsEmbedding)
	return e
}

func cloneSemantic(s model.SemanticMemory) model.SemanticMemory {
	s.Base = cloneBase(s.Base)
	s.Embedding = slices.Clone(s.Embedding)
	return s
}

func cloneRelationship(r model.SemanticRelationship) model.SemanticRelationship {
	r.Base = cloneBase(r.Base)
	return r
}

func cloneProcedural(p model.ProceduralMemory) model.ProceduralMemory {
	p.Base = cloneBase(p.Base)
	p.Conditions = slices.Clone(p.Conditions)
	p.Actions = slices.Clone(p.Actions)
	p.ExpectedResults = slices.Clone(p.ExpectedResults)
	return p
}

func cloneResource(r model.ResourceMemory) model.ResourceMemory {
	r.Base = cloneBase(r.Base)
	r.Tags = slices.Clone(r.Tags)
	r.AccessedAt = cloneTime(r.AccessedAt)
	return r
}

func cloneKnowledge(k model.KnowledgeEntry) model.KnowledgeEntry {
	k.Base = cloneBase(k.Base)
	k.Embedding = slices.Clone(k.Embedding)
	k.ValidatedAt = cloneTime(k.ValidatedAt)
	return k
}
