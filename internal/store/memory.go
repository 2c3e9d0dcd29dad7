package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rcliao/sixmem/internal/model"
)

// MemoryStore implements Store in process memory. Records are deep-copied on
// the way in and out.
type MemoryStore struct {
	core          *memTable[model.CoreMemory]
	episodic      *memTable[model.EpisodicMemory]
	semantic      *memTable[model.SemanticMemory]
	relationships *memRelationships
	procedural    *memTable[model.ProceduralMemory]
	resources     *memTable[model.ResourceMemory]
	knowledge     *memTable[model.KnowledgeEntry]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		core:          newMemTable(model.DimensionCore, cloneCore),
		episodic:      newMemTable(model.DimensionEpisodic, cloneEpisodic),
		semantic:      newMemTable(model.DimensionSemantic, cloneSemantic),
		relationships: &memRelationships{newMemTable(model.DimensionRelationship, cloneRelationship)},
		procedural:    newMemTable(model.DimensionProcedural, cloneProcedural),
		resources:     newMemTable(model.DimensionResource, cloneResource),
		knowledge:     newMemTable(model.DimensionKnowledge, cloneKnowledge),
	}
}

func (s *MemoryStore) Core() Table[model.CoreMemory]             { return s.core }
func (s *MemoryStore) Episodic() Table[model.EpisodicMemory]     { return s.episodic }
func (s *MemoryStore) Semantic() Table[model.SemanticMemory]     { return s.semantic }
func (s *MemoryStore) Relationships() RelationshipTable          { return s.relationships }
func (s *MemoryStore) Procedural() Table[model.ProceduralMemory] { return s.procedural }
func (s *MemoryStore) Resources() Table[model.ResourceMemory]    { return s.resources }
func (s *MemoryStore) Knowledge() Table[model.KnowledgeEntry]    { return s.knowledge }

func (s *MemoryStore) Close() error { return nil }

type memTable[T model.Record] struct {
	dimension model.Dimension
	clone     func(T) T

	mu    sync.RWMutex
	rows  map[string]map[string]T // user -> id -> record
	order map[string][]string     // user -> ids in insertion order
}

func newMemTable[T model.Record](d model.Dimension, clone func(T) T) *memTable[T] {
	return &memTable[T]{
		dimension: d,
		clone:     clone,
		rows:      make(map[string]map[string]T),
		order:     make(map[string][]string),
	}
}

func (t *memTable[T]) Insert(ctx context.Context, rec T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.existsLocked(rec.Header().ID) {
		return t.duplicate(rec.Header().ID)
	}
	t.insertLocked(rec)
	return nil
}

func (t *memTable[T]) duplicate(id string) error {
	return &model.StorageError{Op: "insert " + string(t.dimension), Err: fmt.Errorf("duplicate id %s", id)}
}

// existsLocked reports whether id is taken by any owner.
func (t *memTable[T]) existsLocked(id string) bool {
	for _, byID := range t.rows {
		if _, ok := byID[id]; ok {
			return true
		}
	}
	return false
}

func (t *memTable[T]) insertLocked(rec T) {
	h := rec.Header()
	if t.rows[h.UserID] == nil {
		t.rows[h.UserID] = make(map[string]T)
	}
	t.rows[h.UserID][h.ID] = t.clone(rec)
	t.order[h.UserID] = append(t.order[h.UserID], h.ID)
}

// Replace keeps the stored identity fields and CreatedAt.
func (t *memTable[T]) Replace(ctx context.Context, rec T) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replaceLocked(rec), nil
}

func (t *memTable[T]) replaceLocked(rec T) bool {
	h := rec.Header()
	old, ok := t.rows[h.UserID][h.ID]
	if !ok {
		return false
	}
	next := t.clone(rec)
	if k, ok := any(&next).(interface{ KeepIdentity(model.Base) }); ok {
		k.KeepIdentity(old.Header())
	}
	t.rows[h.UserID][h.ID] = next
	return true
}

// Write checks every change of the batch before applying any, all under one
// lock, so a failing batch leaves the table untouched.
func (t *memTable[T]) Write(ctx context.Context, b Batch[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	deleting := make(map[string]bool, len(b.Delete))
	for _, id := range b.Delete {
		if _, ok := t.rows[b.UserID][id]; ok {
			deleting[id] = true
		}
	}
	for _, rec := range b.Replace {
		h := rec.Header()
		if _, ok := t.rows[h.UserID][h.ID]; !ok || deleting[h.ID] {
			return &model.NotFoundError{Dimension: t.dimension, ID: h.ID}
		}
	}
	inserting := make(map[string]bool, len(b.Insert))
	for _, rec := range b.Insert {
		id := rec.Header().ID
		if inserting[id] || (t.existsLocked(id) && !deleting[id]) {
			return t.duplicate(id)
		}
		inserting[id] = true
	}

	for id := range deleting {
		t.deleteLocked(b.UserID, id)
	}
	for _, rec := range b.Replace {
		t.replaceLocked(rec)
	}
	for _, rec := range b.Insert {
		t.insertLocked(rec)
	}
	return nil
}

func (t *memTable[T]) Delete(ctx context.Context, userID, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteLocked(userID, id), nil
}

func (t *memTable[T]) deleteLocked(userID, id string) bool {
	if _, ok := t.rows[userID][id]; !ok {
		return false
	}
	delete(t.rows[userID], id)
	t.order[userID] = slices.DeleteFunc(t.order[userID], func(s string) bool { return s == id })
	return true
}

func (t *memTable[T]) Get(ctx context.Context, userID, id string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.rows[userID][id]
	if !ok {
		return zero, false, nil
	}
	return t.clone(rec), true, nil
}

func (t *memTable[T]) List(ctx context.Context, userID string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.order[userID]
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.clone(t.rows[userID][id]))
	}
	return out, nil
}

func (t *memTable[T]) Count(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if userID != "" {
		return len(t.rows[userID]), nil
	}
	n := 0
	for _, byID := range t.rows {
		n += len(byID)
	}
	return n, nil
}

type memRelationships struct {
	*memTable[model.SemanticRelationship]
}

func (t *memRelationships) DeleteByNode(ctx context.Context, userID, nodeID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var doomed []string
	for id, r := range t.rows[userID] {
		if r.SourceID == nodeID || r.TargetID == nodeID {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		t.deleteLocked(userID, id)
	}
	return len(doomed), nil
}
