package similarity

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rcliao/sixmem/internal/embedding"
)

// Chromem keeps one chromem-go collection per partition, built lazily from
// the partition's entries and dropped on Invalidate.
type Chromem struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[Partition]*chromem.Collection
	generation  map[Partition]uint64
}

// NewChromem creates an in-process chromem-go index.
func NewChromem() *Chromem {
	return &Chromem{
		db:          chromem.NewDB(),
		collections: make(map[Partition]*chromem.Collection),
		generation:  make(map[Partition]uint64),
	}
}

func collectionName(p Partition) string {
	return fmt.Sprintf("%s:%s", p.Dimension, p.UserID)
}

func (c *Chromem) Similarities(ctx context.Context, p Partition, query embedding.Vector, entries func() []Entry) (map[string]float64, error) {
	out := make(map[string]float64)
	if len(query) == 0 || zero(query) {
		return out, nil
	}
	col, err := c.collection(ctx, p, len(query), entries)
	if err != nil {
		return nil, err
	}
	if col == nil || col.Count() == 0 {
		return out, nil
	}
	results, err := col.QueryEmbedding(ctx, query, col.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	for _, r := range results {
		out[r.ID] = float64(r.Similarity)
	}
	return out, nil
}

// collection returns the cached collection or rebuilds it. Entries of another
// length than dims, or with zero norm, are left out.
func (c *Chromem) collection(ctx context.Context, p Partition, dims int, entries func() []Entry) (*chromem.Collection, error) {
	c.mu.Lock()
	if col, ok := c.collections[p]; ok {
		c.mu.Unlock()
		return col, nil
	}
	gen := c.generation[p]
	c.mu.Unlock()

	var docs []chromem.Document
	for _, e := range entries() {
		if len(e.Vector) != dims || zero(e.Vector) {
			continue
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		docs = append(docs, chromem.Document{ID: e.Key, Content: e.Key, Embedding: vec})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[p]; ok {
		return col, nil
	}
	name := collectionName(p)
	_ = c.db.DeleteCollection(name)
	col, err := c.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			_ = c.db.DeleteCollection(name)
			return nil, fmt.Errorf("add documents: %w", err)
		}
	}
	// A write landed while the entries were read; serve this result once
	// without caching it.
	if c.generation[p] != gen {
		return col, nil
	}
	c.collections[p] = col
	return col, nil
}

func (c *Chromem) Invalidate(p Partition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation[p]++
	if _, ok := c.collections[p]; ok {
		delete(c.collections, p)
		_ = c.db.DeleteCollection(collectionName(p))
	}
}

func zero(v embedding.Vector) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
