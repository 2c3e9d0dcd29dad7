package memory

import (
	"context"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
	"github.com/rcliao/sixmem/internal/store"
)

// KnowledgeManager stores validated domain facts. Only entries whose
// confidence is strictly above the configured threshold are retrievable.
type KnowledgeManager struct {
	*deps
	table store.Table[model.KnowledgeEntry]
}

func knowledgeText(k model.KnowledgeEntry) string {
	return k.Topic + ": " + k.Content
}

func (m *KnowledgeManager) Create(ctx context.Context, userID string, rec model.KnowledgeEntry) (model.KnowledgeEntry, error) {
	if err := requireUser(model.DimensionKnowledge, userID); err != nil {
		return rec, err
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	if err := m.checkVector(model.DimensionKnowledge, "embedding", rec.Embedding); err != nil {
		return rec, err
	}

	ctx = context.WithoutCancel(ctx)
	m.stampNew(&rec.Base, userID, model.DimensionKnowledge)
	if rec.ValidatedAt != nil {
		t := rec.ValidatedAt.UTC()
		rec.ValidatedAt = &t
	}
	if rec.Embedding == nil {
		rec.Embedding = m.embed(ctx, userID, model.DimensionKnowledge, knowledgeText(rec))
	}
	if err := m.table.Insert(ctx, rec); err != nil {
		return rec, err
	}
	m.invalidate(userID, model.DimensionKnowledge)
	return rec, nil
}

func (m *KnowledgeManager) Update(ctx context.Context, userID, id string, patch model.KnowledgePatch) (model.KnowledgeEntry, error) {
	ctx = context.WithoutCancel(ctx)
	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionKnowledge, id)
	}
	next := prev
	patch.Apply(&next)
	if err := next.Validate(); err != nil {
		return prev, err
	}
	m.stampUpdate(&next.Base, prev.Base)
	if patch.TextChanged() {
		next.Embedding = m.embed(ctx, userID, model.DimensionKnowledge, knowledgeText(next))
	}
	if ok, err := m.table.Replace(ctx, next); err != nil {
		return prev, err
	} else if !ok {
		return prev, notFound(model.DimensionKnowledge, id)
	}
	m.invalidate(userID, model.DimensionKnowledge)
	return next, nil
}

func (m *KnowledgeManager) Delete(ctx context.Context, userID, id string) (bool, error) {
	ok, err := m.table.Delete(context.WithoutCancel(ctx), userID, id)
	if ok {
		m.invalidate(userID, model.DimensionKnowledge)
	}
	return ok, err
}

func (m *KnowledgeManager) Get(ctx context.Context, userID, id string) (*model.KnowledgeEntry, error) {
	rec, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (m *KnowledgeManager) GetAll(ctx context.Context, userID string) ([]model.KnowledgeEntry, error) {
	return m.table.List(ctx, userID)
}

func (m *KnowledgeManager) Search(ctx context.Context, userID, query string, limit int) ([]Scored[model.KnowledgeEntry], error) {
	return m.SearchQuery(ctx, userID, m.query(ctx, userID, model.DimensionKnowledge, query), limit)
}

// SearchQuery drops entries at or below the confidence threshold before
// scoring, then blends relevance with confidence.
func (m *KnowledgeManager) SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[model.KnowledgeEntry], error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	eligible := all[:0:0]
	for _, k := range all {
		if k.Confidence > m.cfg.KnowledgeConfidenceThreshold {
			eligible = append(eligible, k)
		}
	}

	sims := m.similarities(ctx, userID, model.DimensionKnowledge, q, func() []similarity.Entry {
		entries := make([]similarity.Entry, 0, len(all))
		for _, k := range all {
			if len(k.Embedding) > 0 {
				entries = append(entries, similarity.Entry{Key: k.ID, Vector: k.Embedding})
			}
		}
		return entries
	})
	matcher := m.matcher(userID, model.DimensionKnowledge, q.Text)

	w := m.cfg.ConfidenceWeight
	var cands []candidate[model.KnowledgeEntry]
	for i, k := range eligible {
		sim, via := relevance(sims, []string{k.ID}, matcher, k.Domain, k.Topic, k.Content)
		if !m.passes(sim, via) {
			continue
		}
		score := (1-w)*sim + w*k.Confidence
		cands = append(cands, candidate[model.KnowledgeEntry]{rec: k, score: score, sim: sim, via: via, order: position(i)})
	}
	return rank(cands, m.limit(limit)), nil
}
