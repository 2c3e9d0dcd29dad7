package memory

import (
	"context"
	"sync"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
	"github.com/rcliao/sixmem/internal/store"
)

// SemanticManager stores concepts and the weighted relationships between
// them.
type SemanticManager struct {
	*deps
	table store.Table[model.SemanticMemory]
	edges store.RelationshipTable
	// mu serializes node deletes against edge inserts so no edge outlives
	// its endpoints.
	mu sync.Mutex
}

func semanticText(s model.SemanticMemory) string {
	if s.Description == "" {
		return s.Name
	}
	return s.Name + ": " + s.Description
}

func (m *SemanticManager) Create(ctx context.Context, userID string, rec model.SemanticMemory) (model.SemanticMemory, error) {
	if err := requireUser(model.DimensionSemantic, userID); err != nil {
		return rec, err
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	if err := m.checkVector(model.DimensionSemantic, "embedding", rec.Embedding); err != nil {
		return rec, err
	}

	ctx = context.WithoutCancel(ctx)
	m.stampNew(&rec.Base, userID, model.DimensionSemantic)
	if rec.Embedding == nil {
		rec.Embedding = m.embed(ctx, userID, model.DimensionSemantic, semanticText(rec))
	}
	if err := m.table.Insert(ctx, rec); err != nil {
		return rec, err
	}
	m.invalidate(userID, model.DimensionSemantic)
	return rec, nil
}

func (m *SemanticManager) Update(ctx context.Context, userID, id string, patch model.SemanticPatch) (model.SemanticMemory, error) {
	ctx = context.WithoutCancel(ctx)
	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionSemantic, id)
	}
	next := prev
	patch.Apply(&next)
	if err := next.Validate(); err != nil {
		return prev, err
	}
	m.stampUpdate(&next.Base, prev.Base)
	if patch.TextChanged() {
		next.Embedding = m.embed(ctx, userID, model.DimensionSemantic, semanticText(next))
	}
	if ok, err := m.table.Replace(ctx, next); err != nil {
		return prev, err
	} else if !ok {
		return prev, notFound(model.DimensionSemantic, id)
	}
	m.invalidate(userID, model.DimensionSemantic)
	return next, nil
}

// Delete removes the concept and every relationship touching it.
func (m *SemanticManager) Delete(ctx context.Context, userID, id string) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.edges.DeleteByNode(ctx, userID, id); err != nil {
		return false, err
	}
	ok, err := m.table.Delete(ctx, userID, id)
	if ok {
		m.invalidate(userID, model.DimensionSemantic)
	}
	return ok, err
}

func (m *SemanticManager) Get(ctx context.Context, userID, id string) (*model.SemanticMemory, error) {
	rec, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (m *SemanticManager) GetAll(ctx context.Context, userID string) ([]model.SemanticMemory, error) {
	return m.table.List(ctx, userID)
}

func (m *SemanticManager) Search(ctx context.Context, userID, query string, limit int) ([]Scored[model.SemanticMemory], error) {
	return m.SearchQuery(ctx, userID, m.query(ctx, userID, model.DimensionSemantic, query), limit)
}

// SearchQuery scores concepts directly, then adds the one-hop neighbours of
// every direct hit over edges at least ExpansionMinStrength strong. A
// neighbour scores seed score times edge strength and keeps its best score.
func (m *SemanticManager) SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[model.SemanticMemory], error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	sims := m.similarities(ctx, userID, model.DimensionSemantic, q, func() []similarity.Entry {
		entries := make([]similarity.Entry, 0, len(all))
		for _, s := range all {
			if len(s.Embedding) > 0 {
				entries = append(entries, similarity.Entry{Key: s.ID, Vector: s.Embedding})
			}
		}
		return entries
	})
	matcher := m.matcher(userID, model.DimensionSemantic, q.Text)

	byID := make(map[string]int, len(all))
	hits := make(map[string]*candidate[model.SemanticMemory])
	for i, s := range all {
		byID[s.ID] = i
		sim, via := relevance(sims, []string{s.ID}, matcher, s.Name, s.Description, s.Category)
		if !m.passes(sim, via) {
			continue
		}
		hits[s.ID] = &candidate[model.SemanticMemory]{rec: s, score: sim, sim: sim, via: via, order: position(i)}
	}

	if len(hits) > 0 {
		edges, err := m.edges.List(ctx, userID)
		if err != nil {
			m.log.Warn("relationship expansion skipped", "user", userID, "dimension", model.DimensionSemantic, "err", err)
			edges = nil
		}
		seeds := make(map[string]float64, len(hits))
		for id, c := range hits {
			seeds[id] = c.score
		}
		for _, e := range edges {
			if e.Strength < m.cfg.ExpansionMinStrength {
				continue
			}
			for _, seed := range []string{e.SourceID, e.TargetID} {
				seedScore, ok := seeds[seed]
				if !ok {
					continue
				}
				other := e.Other(seed)
				i, exists := byID[other]
				if !exists {
					continue
				}
				score := seedScore * e.Strength
				if c, ok := hits[other]; ok && c.score >= score {
					continue
				}
				hits[other] = &candidate[model.SemanticMemory]{
					rec: all[i], score: score, sim: 0, via: viaExpansion, order: position(i),
				}
				if c, ok := seeds[other]; ok {
					hits[other].sim = c
				}
			}
		}
	}

	cands := make([]candidate[model.SemanticMemory], 0, len(hits))
	for _, c := range hits {
		cands = append(cands, *c)
	}
	return rank(cands, m.limit(limit)), nil
}

// Link creates a relationship between two of the user's concepts.
func (m *SemanticManager) Link(ctx context.Context, userID string, rel model.SemanticRelationship) (model.SemanticRelationship, error) {
	if err := requireUser(model.DimensionRelationship, userID); err != nil {
		return rel, err
	}
	if err := rel.Validate(); err != nil {
		return rel, err
	}

	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	for field, id := range map[string]string{"source_id": rel.SourceID, "target_id": rel.TargetID} {
		_, ok, err := m.table.Get(ctx, userID, id)
		if err != nil {
			return rel, err
		}
		if !ok {
			return rel, model.Invalid(model.DimensionRelationship, field, "no semantic memory %s for this user", id)
		}
	}
	m.stampNew(&rel.Base, userID, model.DimensionRelationship)
	if err := m.edges.Insert(ctx, rel); err != nil {
		return rel, err
	}
	return rel, nil
}

// Unlink deletes a relationship. Idempotent like Delete.
func (m *SemanticManager) Unlink(ctx context.Context, userID, id string) (bool, error) {
	return m.edges.Delete(context.WithoutCancel(ctx), userID, id)
}

// UpdateRelationship changes an edge's type, strength or metadata.
func (m *SemanticManager) UpdateRelationship(ctx context.Context, userID, id string, patch model.RelationshipPatch) (model.SemanticRelationship, error) {
	ctx = context.WithoutCancel(ctx)
	prev, ok, err := m.edges.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionRelationship, id)
	}
	next := prev
	patch.Apply(&next)
	if err := next.Validate(); err != nil {
		return prev, err
	}
	m.stampUpdate(&next.Base, prev.Base)
	if ok, err := m.edges.Replace(ctx, next); err != nil {
		return prev, err
	} else if !ok {
		return prev, notFound(model.DimensionRelationship, id)
	}
	return next, nil
}

// Relationship returns one edge, or nil when absent.
func (m *SemanticManager) Relationship(ctx context.Context, userID, id string) (*model.SemanticRelationship, error) {
	rel, ok, err := m.edges.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rel, nil
}

// Relationships lists the edges touching nodeID, or all of the user's edges
// when nodeID is empty.
func (m *SemanticManager) Relationships(ctx context.Context, userID, nodeID string) ([]model.SemanticRelationship, error) {
	all, err := m.edges.List(ctx, userID)
	if err != nil || nodeID == "" {
		return all, err
	}
	var out []model.SemanticRelationship
	for _, e := range all {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			out = append(out, e)
		}
	}
	return out, nil
}
