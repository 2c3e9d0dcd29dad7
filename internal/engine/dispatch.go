package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rcliao/sixmem/internal/model"
)

// Get looks up any record by id; the dimension comes from the id prefix.
// It returns nil, nil when the record is absent.
func (e *Engine) Get(ctx context.Context, userID, id string) (any, error) {
	d, ok := model.DimensionOf(id)
	if !ok {
		return nil, model.Invalid("", "id", "%q has no known dimension prefix", id)
	}
	m := e.managers
	switch d {
	case model.DimensionCore:
		rec, err := m.Core.Get(ctx, userID, id)
		return nilIfAbsent(rec, err)
	case model.DimensionEpisodic:
		rec, err := m.Episodic.Get(ctx, userID, id)
		return nilIfAbsent(rec, err)
	case model.DimensionSemantic:
		rec, err := m.Semantic.Get(ctx, userID, id)
		return nilIfAbsent(rec, err)
	case model.DimensionRelationship:
		rec, err := m.Semantic.Relationship(ctx, userID, id)
		return nilIfAbsent(rec, err)
	case model.DimensionProcedural:
		rec, err := m.Procedural.Get(ctx, userID, id)
		return nilIfAbsent(rec, err)
	case model.DimensionResource:
		rec, err := m.Resource.Get(ctx, userID, id)
		return nilIfAbsent(rec, err)
	case model.DimensionKnowledge:
		rec, err := m.Knowledge.Get(ctx, userID, id)
		return nilIfAbsent(rec, err)
	}
	return nil, fmt.Errorf("get %s: unsupported dimension %s", id, d)
}

// nilIfAbsent turns a typed nil pointer into an untyped nil so callers can
// compare the result with nil.
func nilIfAbsent[T any](rec *T, err error) (any, error) {
	if err != nil || rec == nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes any record by id. Deleting an absent record reports false.
func (e *Engine) Delete(ctx context.Context, userID, id string) (bool, error) {
	d, ok := model.DimensionOf(id)
	if !ok {
		return false, model.Invalid("", "id", "%q has no known dimension prefix", id)
	}
	m := e.managers
	switch d {
	case model.DimensionCore:
		return m.Core.Delete(ctx, userID, id)
	case model.DimensionEpisodic:
		return m.Episodic.Delete(ctx, userID, id)
	case model.DimensionSemantic:
		return m.Semantic.Delete(ctx, userID, id)
	case model.DimensionRelationship:
		return m.Semantic.Unlink(ctx, userID, id)
	case model.DimensionProcedural:
		return m.Procedural.Delete(ctx, userID, id)
	case model.DimensionResource:
		return m.Resource.Delete(ctx, userID, id)
	case model.DimensionKnowledge:
		return m.Knowledge.Delete(ctx, userID, id)
	}
	return false, fmt.Errorf("delete %s: unsupported dimension %s", id, d)
}

// Search runs one dimension's search. The result is a []memory.Scored of
// the dimension's record type.
func (e *Engine) Search(ctx context.Context, userID string, d model.Dimension, query string, limit int) (any, error) {
	m := e.managers
	switch d {
	case model.DimensionCore:
		return m.Core.Search(ctx, userID, query, limit)
	case model.DimensionEpisodic:
		return m.Episodic.Search(ctx, userID, query, limit)
	case model.DimensionSemantic:
		return m.Semantic.Search(ctx, userID, query, limit)
	case model.DimensionProcedural:
		return m.Procedural.Search(ctx, userID, query, limit)
	case model.DimensionResource:
		return m.Resource.Search(ctx, userID, query, limit)
	case model.DimensionKnowledge:
		return m.Knowledge.Search(ctx, userID, query, limit)
	}
	return nil, model.Invalid(d, "dimension", "%q is not searchable", d)
}

// List returns every record of one dimension for the user.
func (e *Engine) List(ctx context.Context, userID string, d model.Dimension) (any, error) {
	m := e.managers
	switch d {
	case model.DimensionCore:
		return m.Core.GetAll(ctx, userID)
	case model.DimensionEpisodic:
		return m.Episodic.GetAll(ctx, userID)
	case model.DimensionSemantic:
		return m.Semantic.GetAll(ctx, userID)
	case model.DimensionRelationship:
		return m.Semantic.Relationships(ctx, userID, "")
	case model.DimensionProcedural:
		return m.Procedural.GetAll(ctx, userID)
	case model.DimensionResource:
		return m.Resource.GetAll(ctx, userID)
	case model.DimensionKnowledge:
		return m.Knowledge.GetAll(ctx, userID)
	}
	return nil, model.Invalid(d, "dimension", "%q is not a dimension", d)
}

// Create decodes raw JSON into the dimension's record type and stores it.
// Relationships are created through SemanticManager.Link.
func (e *Engine) Create(ctx context.Context, userID string, d model.Dimension, raw []byte) (any, error) {
	m := e.managers
	switch d {
	case model.DimensionCore:
		return create(ctx, userID, d, raw, m.Core.Create)
	case model.DimensionEpisodic:
		return create(ctx, userID, d, raw, m.Episodic.Create)
	case model.DimensionSemantic:
		return create(ctx, userID, d, raw, m.Semantic.Create)
	case model.DimensionRelationship:
		return create(ctx, userID, d, raw, m.Semantic.Link)
	case model.DimensionProcedural:
		return create(ctx, userID, d, raw, m.Procedural.Create)
	case model.DimensionResource:
		return create(ctx, userID, d, raw, m.Resource.Create)
	case model.DimensionKnowledge:
		return create(ctx, userID, d, raw, m.Knowledge.Create)
	}
	return nil, model.Invalid(d, "dimension", "%q is not a dimension", d)
}

// Update decodes raw JSON into the patch type for the id's dimension and
// applies it.
func (e *Engine) Update(ctx context.Context, userID, id string, raw []byte) (any, error) {
	d, ok := model.DimensionOf(id)
	if !ok {
		return nil, model.Invalid("", "id", "%q has no known dimension prefix", id)
	}
	m := e.managers
	switch d {
	case model.DimensionCore:
		return update(ctx, userID, id, d, raw, m.Core.Update)
	case model.DimensionEpisodic:
		return update(ctx, userID, id, d, raw, m.Episodic.Update)
	case model.DimensionSemantic:
		return update(ctx, userID, id, d, raw, m.Semantic.Update)
	case model.DimensionRelationship:
		return update(ctx, userID, id, d, raw, m.Semantic.UpdateRelationship)
	case model.DimensionProcedural:
		return update(ctx, userID, id, d, raw, m.Procedural.Update)
	case model.DimensionResource:
		return update(ctx, userID, id, d, raw, m.Resource.Update)
	case model.DimensionKnowledge:
		return update(ctx, userID, id, d, raw, m.Knowledge.Update)
	}
	return nil, fmt.Errorf("update %s: unsupported dimension %s", id, d)
}

func create[T any](ctx context.Context, userID string, d model.Dimension, raw []byte, fn func(context.Context, string, T) (T, error)) (any, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, model.Invalid(d, "body", "%v", err)
	}
	return fn(ctx, userID, rec)
}

func update[P, T any](ctx context.Context, userID, id string, d model.Dimension, raw []byte, fn func(context.Context, string, string, P) (T, error)) (any, error) {
	var patch P
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, model.Invalid(d, "body", "%v", err)
	}
	return fn(ctx, userID, id, patch)
}
