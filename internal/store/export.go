package store

import (
	"context"
	"fmt"

	"github.com/rcliao/sixmem/internal/model"
)

// Snapshot is every record one user owns, as written by export and read by
// import.
type Snapshot struct {
	UserID        string                       `json:"user_id"`
	Core          []model.CoreMemory           `json:"core,omitempty"`
	Episodic      []model.EpisodicMemory       `json:"episodic,omitempty"`
	Semantic      []model.SemanticMemory       `json:"semantic,omitempty"`
	Relationships []model.SemanticRelationship `json:"relationships,omitempty"`
	Procedural    []model.ProceduralMemory     `json:"procedural,omitempty"`
	Resources     []model.ResourceMemory       `json:"resources,omitempty"`
	Knowledge     []model.KnowledgeEntry       `json:"knowledge_vault,omitempty"`
}

// ExportAll returns every record of one user in insertion order.
func ExportAll(ctx context.Context, s Store, userID string) (*Snapshot, error) {
	snap := &Snapshot{UserID: userID}
	var err error
	if snap.Core, err = s.Core().List(ctx, userID); err != nil {
		return nil, err
	}
	if snap.Episodic, err = s.Episodic().List(ctx, userID); err != nil {
		return nil, err
	}
	if snap.Semantic, err = s.Semantic().List(ctx, userID); err != nil {
		return nil, err
	}
	if snap.Relationships, err = s.Relationships().List(ctx, userID); err != nil {
		return nil, err
	}
	if snap.Procedural, err = s.Procedural().List(ctx, userID); err != nil {
		return nil, err
	}
	if snap.Resources, err = s.Resources().List(ctx, userID); err != nil {
		return nil, err
	}
	if snap.Knowledge, err = s.Knowledge().List(ctx, userID); err != nil {
		return nil, err
	}
	return snap, nil
}

// Import stores the records of a snapshot under their original ids. Records
// whose id already exists are skipped. Records owned by another user than
// the snapshot's are rejected. Returns the number imported.
func Import(ctx context.Context, s Store, snap *Snapshot) (int, error) {
	imported := 0
	steps := []func() (int, error){
		func() (int, error) { return importTable(ctx, s.Core(), snap.UserID, snap.Core) },
		func() (int, error) { return importTable(ctx, s.Episodic(), snap.UserID, snap.Episodic) },
		func() (int, error) { return importTable(ctx, s.Semantic(), snap.UserID, snap.Semantic) },
		func() (int, error) { return importTable[model.SemanticRelationship](ctx, s.Relationships(), snap.UserID, snap.Relationships) },
		func() (int, error) { return importTable(ctx, s.Procedural(), snap.UserID, snap.Procedural) },
		func() (int, error) { return importTable(ctx, s.Resources(), snap.UserID, snap.Resources) },
		func() (int, error) { return importTable(ctx, s.Knowledge(), snap.UserID, snap.Knowledge) },
	}
	for _, step := range steps {
		n, err := step()
		imported += n
		if err != nil {
			return imported, err
		}
	}
	return imported, nil
}

// importTable writes the records not yet present as one batch, so a table
// is imported completely or not at all.
func importTable[T model.Record](ctx context.Context, t Table[T], userID string, recs []T) (int, error) {
	b := Batch[T]{UserID: userID}
	for _, rec := range recs {
		h := rec.Header()
		if h.UserID != userID {
			d, _ := model.DimensionOf(h.ID)
			return 0, model.Invalid(d, "user_id", "%s belongs to %q, not %q", h.ID, h.UserID, userID)
		}
		if _, exists, err := t.Get(ctx, userID, h.ID); err != nil {
			return 0, err
		} else if exists {
			continue
		}
		b.Insert = append(b.Insert, rec)
	}
	if err := t.Write(ctx, b); err != nil {
		return 0, fmt.Errorf("import %s: %w", userID, err)
	}
	return len(b.Insert), nil
}
