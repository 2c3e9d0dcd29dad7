package memory

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
	"github.com/rcliao/sixmem/internal/store"
)

// EpisodicManager stores the append-only event timeline.
type EpisodicManager struct {
	*deps
	table store.Table[model.EpisodicMemory]
}

const detailsKeySuffix = "#details"

func (m *EpisodicManager) Create(ctx context.Context, userID string, rec model.EpisodicMemory) (model.EpisodicMemory, error) {
	if err := requireUser(model.DimensionEpisodic, userID); err != nil {
		return rec, err
	}
	if rec.Actor == "" {
		rec.Actor = model.ActorUser
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	if err := m.checkVector(model.DimensionEpisodic, "summary_embedding", rec.SummaryEmbedding); err != nil {
		return rec, err
	}
	if err := m.checkVector(model.DimensionEpisodic, "details_embedding", rec.DetailsEmbedding); err != nil {
		return rec, err
	}

	ctx = context.WithoutCancel(ctx)
	m.stampNew(&rec.Base, userID, model.DimensionEpisodic)
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = rec.CreatedAt
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	rec.Seq = ulid.Make().String()
	if rec.SummaryEmbedding == nil {
		rec.SummaryEmbedding = m.embed(ctx, userID, model.DimensionEpisodic, rec.Summary)
	}
	if rec.DetailsEmbedding == nil {
		rec.DetailsEmbedding = m.embed(ctx, userID, model.DimensionEpisodic, rec.Details)
	}

	if err := m.table.Insert(ctx, rec); err != nil {
		return rec, err
	}
	m.invalidate(userID, model.DimensionEpisodic)
	return rec, nil
}

func (m *EpisodicManager) Update(ctx context.Context, userID, id string, patch model.EpisodicPatch) (model.EpisodicMemory, error) {
	ctx = context.WithoutCancel(ctx)
	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionEpisodic, id)
	}
	next := prev
	patch.Apply(&next)
	if err := next.Validate(); err != nil {
		return prev, err
	}
	m.stampUpdate(&next.Base, prev.Base)
	next.Seq = prev.Seq
	next.OccurredAt = next.OccurredAt.UTC()
	if patch.Summary != nil {
		next.SummaryEmbedding = m.embed(ctx, userID, model.DimensionEpisodic, next.Summary)
	}
	if patch.Details != nil {
		next.DetailsEmbedding = m.embed(ctx, userID, model.DimensionEpisodic, next.Details)
	}
	if ok, err := m.table.Replace(ctx, next); err != nil {
		return prev, err
	} else if !ok {
		return prev, notFound(model.DimensionEpisodic, id)
	}
	m.invalidate(userID, model.DimensionEpisodic)
	return next, nil
}

func (m *EpisodicManager) Delete(ctx context.Context, userID, id string) (bool, error) {
	ok, err := m.table.Delete(context.WithoutCancel(ctx), userID, id)
	if ok {
		m.invalidate(userID, model.DimensionEpisodic)
	}
	return ok, err
}

func (m *EpisodicManager) Get(ctx context.Context, userID, id string) (*model.EpisodicMemory, error) {
	rec, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (m *EpisodicManager) GetAll(ctx context.Context, userID string) ([]model.EpisodicMemory, error) {
	return m.table.List(ctx, userID)
}

// PruneBefore deletes every episode that occurred before cutoff and returns
// how many were removed.
func (m *EpisodicManager) PruneBefore(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	ctx = context.WithoutCancel(ctx)
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range all {
		if !e.OccurredAt.Before(cutoff) {
			continue
		}
		ok, err := m.table.Delete(ctx, userID, e.ID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	if n > 0 {
		m.invalidate(userID, model.DimensionEpisodic)
	}
	return n, nil
}

func (m *EpisodicManager) Search(ctx context.Context, userID, query string, limit int) ([]Scored[model.EpisodicMemory], error) {
	return m.SearchQuery(ctx, userID, m.query(ctx, userID, model.DimensionEpisodic, query), limit)
}

// SearchQuery blends similarity with recency over OccurredAt. There is no
// relevance cut-off: with nothing matching, the most recent episodes win.
func (m *EpisodicManager) SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[model.EpisodicMemory], error) {
	all, err := m.table.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	sims := m.similarities(ctx, userID, model.DimensionEpisodic, q, func() []similarity.Entry {
		entries := make([]similarity.Entry, 0, 2*len(all))
		for _, e := range all {
			if len(e.SummaryEmbedding) > 0 {
				entries = append(entries, similarity.Entry{Key: e.ID, Vector: e.SummaryEmbedding})
			}
			if len(e.DetailsEmbedding) > 0 {
				entries = append(entries, similarity.Entry{Key: e.ID + detailsKeySuffix, Vector: e.DetailsEmbedding})
			}
		}
		return entries
	})
	matcher := m.matcher(userID, model.DimensionEpisodic, q.Text)

	cands := make([]candidate[model.EpisodicMemory], 0, len(all))
	for _, e := range all {
		sim, via := relevance(sims, []string{e.ID, e.ID + detailsKeySuffix}, matcher,
			e.EventType, e.Summary, e.Details, strings.Join(e.TreePath, " "))
		score := m.cfg.SimilarityWeight*sim + m.cfg.RecencyWeight*m.recency(e.OccurredAt)
		cands = append(cands, candidate[model.EpisodicMemory]{rec: e, score: score, sim: sim, via: via, order: e.Seq})
	}
	return rank(cands, m.limit(limit)), nil
}
