// Package store persists the six memory dimensions and the semantic
// relationship table. Every operation is scoped by owner: a record belonging
// to another user is indistinguishable from an absent one.
package store

import (
	"context"
	"fmt"

	"github.com/rcliao/sixmem/internal/model"
)

// Table is the per-dimension storage contract.
type Table[T model.Record] interface {
	// Insert persists a new record. The id must not exist yet.
	Insert(ctx context.Context, rec T) error

	// Replace overwrites the content fields of an existing record owned by
	// rec.UserID. Returns false when there is no such record.
	Replace(ctx context.Context, rec T) (bool, error)

	// Delete hard-deletes a record. Returns false when there was nothing to
	// delete.
	Delete(ctx context.Context, userID, id string) (bool, error)

	// Get looks up one record by owner and id.
	Get(ctx context.Context, userID, id string) (T, bool, error)

	// List returns all of an owner's records in insertion order.
	List(ctx context.Context, userID string) ([]T, error)

	// Count returns the number of records for an owner, or for all owners
	// when userID is empty.
	Count(ctx context.Context, userID string) (int, error)

	// Write applies a batch atomically: either every change is stored or
	// none is. A replace of a missing record fails the batch with a
	// NotFoundError.
	Write(ctx context.Context, b Batch[T]) error
}

// Batch is a multi-record change to one table, applied in order: deletes,
// then replaces, then inserts. Deletes are scoped to UserID; replaces and
// inserts use each record's own owner.
type Batch[T model.Record] struct {
	UserID  string
	Delete  []string
	Replace []T
	Insert  []T
}

// Empty reports whether the batch changes nothing.
func (b Batch[T]) Empty() bool {
	return len(b.Delete) == 0 && len(b.Replace) == 0 && len(b.Insert) == 0
}

// RelationshipTable stores semantic relationship edges.
type RelationshipTable interface {
	Table[model.SemanticRelationship]

	// DeleteByNode removes every edge touching nodeID and returns how many
	// were removed.
	DeleteByNode(ctx context.Context, userID, nodeID string) (int, error)
}

// Store groups the dimension tables of one backend.
type Store interface {
	Core() Table[model.CoreMemory]
	Episodic() Table[model.EpisodicMemory]
	Semantic() Table[model.SemanticMemory]
	Relationships() RelationshipTable
	Procedural() Table[model.ProceduralMemory]
	Resources() Table[model.ResourceMemory]
	Knowledge() Table[model.KnowledgeEntry]

	// Stats returns per-dimension counts for one owner, or for all owners
	// when userID is empty.
	Stats(ctx context.Context, userID string) (*Stats, error)

	// Close closes the store.
	Close() error
}

// Open returns the named backend: "sqlite" at path, or "memory".
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
