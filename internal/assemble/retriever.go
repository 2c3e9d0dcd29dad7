package assemble

import (
	"context"

	"github.com/rcliao/sixmem/internal/memory"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/rank"
)

// Retriever searches one dimension and renders its hits.
type Retriever interface {
	Dimension() model.Dimension
	Retrieve(ctx context.Context, userID string, q memory.Query, limit int) ([]rank.Item, error)
}

// Searcher is the search half of memory.Manager.
type Searcher[T model.Record] interface {
	SearchQuery(ctx context.Context, userID string, q memory.Query, limit int) ([]memory.Scored[T], error)
}

type source[T model.Record] struct {
	dim    model.Dimension
	search Searcher[T]
	render func(T) rank.Item
}

// Source adapts a manager to a Retriever. render fills Block, and Group and
// Order where they apply; the rest of the item comes from the hit.
func Source[T model.Record](dim model.Dimension, s Searcher[T], render func(T) rank.Item) Retriever {
	return &source[T]{dim: dim, search: s, render: render}
}

func (s *source[T]) Dimension() model.Dimension { return s.dim }

func (s *source[T]) Retrieve(ctx context.Context, userID string, q memory.Query, limit int) ([]rank.Item, error) {
	hits, err := s.search.SearchQuery(ctx, userID, q, limit)
	if err != nil {
		return nil, err
	}
	items := make([]rank.Item, len(hits))
	for i, h := range hits {
		it := s.render(h.Record)
		head := h.Record.Header()
		it.Dimension = s.dim
		it.ID = head.ID
		it.Score = h.Score
		it.UpdatedAt = head.UpdatedAt
		items[i] = it
	}
	return items, nil
}

// Retrievers returns one retriever per dimension, in section order.
func Retrievers(m *memory.Managers) []Retriever {
	return []Retriever{
		Source(model.DimensionCore, m.Core, RenderCore),
		Source(model.DimensionEpisodic, m.Episodic, RenderEpisode),
		Source(model.DimensionSemantic, m.Semantic, RenderConcept),
		Source(model.DimensionProcedural, m.Procedural, RenderStep),
		Source(model.DimensionResource, m.Resource, RenderResource),
		Source(model.DimensionKnowledge, m.Knowledge, RenderKnowledge),
	}
}
