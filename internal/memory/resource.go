package memory

import (
	"context"
	"strings"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/store"
)

// ResourceManager stores pointers to external artifacts. AccessedAt records
// the last time a resource was surfaced by retrieval.
type ResourceManager struct {
	*deps
	table store.Table[model.ResourceMemory]
}

func (m *ResourceManager) Create(ctx context.Context, userID string, rec model.ResourceMemory) (model.ResourceMemory, error) {
	if err := requireUser(model.DimensionResource, userID); err != nil {
		return rec, err
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	m.stampNew(&rec.Base, userID, model.DimensionResource)
	rec.AccessedAt = nil
	if err := m.table.Insert(context.WithoutCancel(ctx), rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (m *ResourceManager) Update(ctx context.Context, userID, id string, patch model.ResourcePatch) (model.ResourceMemory, error) {
	ctx = context.WithoutCancel(ctx)
	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionResource, id)
	}
	next := prev
	patch.Apply(&next)
	if err := next.Validate(); err != nil {
		return prev, err
	}
	m.stampUpdate(&next.Base, prev.Base)
	if ok, err := m.table.Replace(ctx, next); err != nil {
		return prev, err
	} else if !ok {
		return prev, notFound(model.DimensionResource, id)
	}
	return next, nil
}

func (m *ResourceManager) Delete(ctx context.Context, userID, id string) (bool, error) {
	return m.table.Delete(context.WithoutCancel(ctx), userID, id)
}

func (m *ResourceManager) Get(ctx context.Context, userID, id string) (*model.ResourceMemory, error) {
	rec, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (m *ResourceManager) GetAll(ctx context.Context, userID string) ([]model.ResourceMemory, error) {
	return m.table.List(ctx, userID)
}

// MarkAccessed sets AccessedAt to now on the given resources. Unknown ids
// are ignored. UpdatedAt is left alone: access is not a content change.
func (m *ResourceManager) MarkAccessed(ctx context.Context, userID string, ids ...string) error {
	ctx = context.WithoutCancel(ctx)
	now := m.now().UTC()
	for _, id := range ids {
		rec, ok, err := m.table.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		rec.AccessedAt = &now
		if _, err := m.table.Replace(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *ResourceManager) Search(ctx context.Context, userID, query string, limit int) ([]Scored[model.ResourceMemory], error) {
	return m.SearchQuery(ctx, userID, Query{Text: query}, limit)
}

// SearchQuery matches resources by keyword and marks every returned resource
// as accessed. A failed access update is logged and does not fail the search.
func (m *ResourceManager) SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[model.ResourceMemory], error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	matcher := m.matcher(userID, model.DimensionResource, q.Text)
	var cands []candidate[model.ResourceMemory]
	for i, r := range all {
		sim := matcher.Score(r.Name, r.Summary, strings.Join(r.Tags, " "), string(r.ResourceType), r.Location)
		if !m.passes(sim, viaLexical) {
			continue
		}
		cands = append(cands, candidate[model.ResourceMemory]{rec: r, score: sim, sim: sim, via: viaLexical, order: position(i)})
	}
	hits := rank(cands, m.limit(limit))

	if len(hits) > 0 {
		now := m.now().UTC()
		ids := make([]string, len(hits))
		for i := range hits {
			ids[i] = hits[i].Record.ID
			hits[i].Record.AccessedAt = &now
		}
		if err := m.MarkAccessed(ctx, userID, ids...); err != nil {
			m.log.Warn("marking resources accessed failed", "user", userID, "dimension", model.DimensionResource, "err", err)
		}
	}
	return hits, nil
}
