package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/store"
)

// CheckSnapshot applies the rules Create enforces to every record of snap
// that the store does not already hold, and the cross-record rules over the
// snapshot and the store together: one core block per user, relationship
// endpoints that exist for the same user, and procedures numbered 1..N.
// Nothing is written.
func (m *Managers) CheckSnapshot(ctx context.Context, snap *store.Snapshot) error {
	user := snap.UserID
	if err := requireUser("", user); err != nil {
		return err
	}
	seen := make(map[string]bool)
	d := m.Core.deps

	cores, err := freshRecords(ctx, model.DimensionCore, m.Core.table, user, snap.Core, seen,
		model.CoreMemory.Validate)
	if err != nil {
		return err
	}
	if err := m.checkCore(ctx, user, cores); err != nil {
		return err
	}

	if _, err := freshRecords(ctx, model.DimensionEpisodic, m.Episodic.table, user, snap.Episodic, seen,
		func(rec model.EpisodicMemory) error {
			if err := rec.Validate(); err != nil {
				return err
			}
			if err := d.checkVector(model.DimensionEpisodic, "summary_embedding", rec.SummaryEmbedding); err != nil {
				return err
			}
			return d.checkVector(model.DimensionEpisodic, "details_embedding", rec.DetailsEmbedding)
		}); err != nil {
		return err
	}

	if _, err := freshRecords(ctx, model.DimensionSemantic, m.Semantic.table, user, snap.Semantic, seen,
		func(rec model.SemanticMemory) error {
			if err := rec.Validate(); err != nil {
				return err
			}
			return d.checkVector(model.DimensionSemantic, "embedding", rec.Embedding)
		}); err != nil {
		return err
	}

	concepts := make(map[string]bool, len(snap.Semantic))
	for _, s := range snap.Semantic {
		concepts[s.ID] = true
	}
	if _, err := freshRecords[model.SemanticRelationship](ctx, model.DimensionRelationship, m.Semantic.edges, user, snap.Relationships, seen,
		func(rec model.SemanticRelationship) error {
			if err := rec.Validate(); err != nil {
				return err
			}
			for _, end := range [...]struct{ field, id string }{{"source_id", rec.SourceID}, {"target_id", rec.TargetID}} {
				field, id := end.field, end.id
				if concepts[id] {
					continue
				}
				if _, ok, err := m.Semantic.table.Get(ctx, user, id); err != nil {
					return err
				} else if !ok {
					return model.Invalid(model.DimensionRelationship, field, "%s is not a semantic memory of %q", id, user)
				}
			}
			return nil
		}); err != nil {
		return err
	}

	steps, err := freshRecords(ctx, model.DimensionProcedural, m.Procedural.table, user, snap.Procedural, seen,
		model.ProceduralMemory.Validate)
	if err != nil {
		return err
	}
	if err := m.checkSteps(ctx, user, steps); err != nil {
		return err
	}

	if _, err := freshRecords(ctx, model.DimensionResource, m.Resource.table, user, snap.Resources, seen,
		model.ResourceMemory.Validate); err != nil {
		return err
	}

	_, err = freshRecords(ctx, model.DimensionKnowledge, m.Knowledge.table, user, snap.Knowledge, seen,
		func(rec model.KnowledgeEntry) error {
			if err := rec.Validate(); err != nil {
				return err
			}
			return d.checkVector(model.DimensionKnowledge, "embedding", rec.Embedding)
		})
	return err
}

// freshRecords checks ownership and id shape of every record and runs
// validate on those the table does not hold yet, which it returns.
func freshRecords[T model.Record](ctx context.Context, dim model.Dimension, t store.Table[T], userID string,
	recs []T, seen map[string]bool, validate func(T) error) ([]T, error) {
	var fresh []T
	for _, rec := range recs {
		h := rec.Header()
		if got, ok := model.DimensionOf(h.ID); !ok || got != dim {
			return nil, model.Invalid(dim, "id", "%q is not a %s id", h.ID, dim)
		}
		if seen[h.ID] {
			return nil, model.Invalid(dim, "id", "%s appears twice", h.ID)
		}
		seen[h.ID] = true
		if h.UserID != userID {
			return nil, model.Invalid(dim, "user_id", "%s belongs to %q, not %q", h.ID, h.UserID, userID)
		}
		if _, exists, err := t.Get(ctx, userID, h.ID); err != nil {
			return nil, err
		} else if exists {
			continue
		}
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("%s: %w", h.ID, err)
		}
		fresh = append(fresh, rec)
	}
	return fresh, nil
}

func (m *Managers) checkCore(ctx context.Context, userID string, fresh []model.CoreMemory) error {
	if len(fresh) == 0 {
		return nil
	}
	if len(fresh) > 1 {
		return model.Invalid(model.DimensionCore, "id", "snapshot holds %d core blocks, a user has one", len(fresh))
	}
	stored, err := m.Core.table.List(ctx, userID)
	if err != nil {
		return err
	}
	if len(stored) > 0 {
		return model.Invalid(model.DimensionCore, "id", "%q already has core memory %s", userID, stored[0].ID)
	}
	return nil
}

// checkSteps requires every procedure touched by fresh to number its stored
// and new steps 1..N with no gap or repeat.
func (m *Managers) checkSteps(ctx context.Context, userID string, fresh []model.ProceduralMemory) error {
	if len(fresh) == 0 {
		return nil
	}
	stored, err := m.Procedural.table.List(ctx, userID)
	if err != nil {
		return err
	}
	numbers := make(map[string][]int)
	for _, p := range fresh {
		numbers[p.ProcedureName] = append(numbers[p.ProcedureName], p.StepNumber)
	}
	for _, p := range stored {
		if _, ok := numbers[p.ProcedureName]; ok {
			numbers[p.ProcedureName] = append(numbers[p.ProcedureName], p.StepNumber)
		}
	}
	for name, ns := range numbers {
		slices.Sort(ns)
		for i, n := range ns {
			if n != i+1 {
				return model.Invalid(model.DimensionProcedural, "step_number",
					"procedure %q has step %d where %d belongs", name, n, i+1)
			}
		}
	}
	return nil
}
