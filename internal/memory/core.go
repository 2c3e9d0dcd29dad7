package memory

import (
	"context"
	"sync"

	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/store"
)

// CoreManager keeps the single persona/human block per user.
type CoreManager struct {
	*deps
	table store.Table[model.CoreMemory]
	mu    sync.Mutex
}

// Create stores the user's core block. When one already exists it is
// overwritten in place, keeping its id and creation time.
func (m *CoreManager) Create(ctx context.Context, userID string, rec model.CoreMemory) (model.CoreMemory, error) {
	if err := requireUser(model.DimensionCore, userID); err != nil {
		return rec, err
	}
	if rec.PersonaLimit == 0 {
		rec.PersonaLimit = m.cfg.CoreLimit
	}
	if rec.HumanLimit == 0 {
		rec.HumanLimit = m.cfg.CoreLimit
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}

	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.table.List(ctx, userID)
	if err != nil {
		return rec, err
	}
	if len(existing) > 0 {
		m.stampUpdate(&rec.Base, existing[0].Base)
		if _, err := m.table.Replace(ctx, rec); err != nil {
			return rec, err
		}
		return rec, nil
	}

	m.stampNew(&rec.Base, userID, model.DimensionCore)
	if err := m.table.Insert(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func (m *CoreManager) Update(ctx context.Context, userID, id string, patch model.CorePatch) (model.CoreMemory, error) {
	ctx = context.WithoutCancel(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok, err := m.table.Get(ctx, userID, id)
	if err != nil {
		return prev, err
	}
	if !ok {
		return prev, notFound(model.DimensionCore, id)
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
		return prev, notFound(model.DimensionCore, id)
	}
	return next, nil
}

// Delete refuses to remove an existing core block: it lives as long as the
// user does. Clear it with Update instead. An absent id reports false.
func (m *CoreManager) Delete(ctx context.Context, userID, id string) (bool, error) {
	_, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return false, err
	}
	return false, model.Invalid(model.DimensionCore, "id", "core memory %s cannot be deleted; update it instead", id)
}

func (m *CoreManager) Get(ctx context.Context, userID, id string) (*model.CoreMemory, error) {
	rec, ok, err := m.table.Get(ctx, userID, id)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (m *CoreManager) GetAll(ctx context.Context, userID string) ([]model.CoreMemory, error) {
	return m.table.List(ctx, userID)
}

// ForUser returns the user's core block, or nil when none exists.
func (m *CoreManager) ForUser(ctx context.Context, userID string) (*model.CoreMemory, error) {
	all, err := m.table.List(ctx, userID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[0], nil
}

// Search ignores the query: the core block is identity context and is
// always returned when present.
func (m *CoreManager) Search(ctx context.Context, userID, query string, limit int) ([]Scored[model.CoreMemory], error) {
	return m.SearchQuery(ctx, userID, Query{Text: query}, limit)
}

func (m *CoreManager) SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[model.CoreMemory], error) {
	core, err := m.ForUser(ctx, userID)
	if err != nil || core == nil {
		return nil, err
	}
	return []Scored[model.CoreMemory]{{Record: *core, Score: 1, Similarity: 1, Via: viaIdentity}}, nil
}
