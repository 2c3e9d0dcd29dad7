// Package engine wires storage, embeddings, the six managers and the
// context assembler from one configuration.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rcliao/sixmem/internal/assemble"
	"github.com/rcliao/sixmem/internal/config"
	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/memory"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/rank"
	"github.com/rcliao/sixmem/internal/similarity"
	"github.com/rcliao/sixmem/internal/store"
)

// Options overrides collaborators normally built from config.
type Options struct {
	Store    store.Store
	Embedder embedding.Embedder
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Engine is the entry point for hosts: one per process, safe for
// concurrent use.
type Engine struct {
	cfg       *config.Config
	store     store.Store
	embedder  embedding.Embedder
	cache     *embedding.Cached
	index     similarity.Index
	managers  *memory.Managers
	assembler *assemble.Assembler
	log       *slog.Logger
}

// New validates cfg and builds an Engine. The engine owns the store it
// opens; a store passed in Options is closed by Close as well.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	index, ok := similarity.New(cfg.Search.Index)
	if !ok {
		return nil, fmt.Errorf("unknown similarity index %q", cfg.Search.Index)
	}

	e := &Engine{cfg: cfg, index: index, log: log}

	e.embedder = opts.Embedder
	if e.embedder == nil {
		emb, err := embedding.New(cfg.EmbeddingOptions())
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		e.embedder = emb
	}
	if e.embedder != nil && cfg.Embedding.ChunkRunes > 0 {
		e.embedder = embedding.NewChunked(e.embedder, cfg.Embedding.ChunkRunes)
	}
	if e.embedder != nil && cfg.Embedding.CacheSize > 0 {
		cached, err := embedding.NewCached(e.embedder, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cached
		e.embedder = cached
	}

	e.store = opts.Store
	if e.store == nil {
		s, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
		if err != nil {
			e.closeCache()
			return nil, fmt.Errorf("open store: %w", err)
		}
		e.store = s
	}

	e.managers = memory.New(memory.Options{
		Store:    e.store,
		Embedder: e.embedder,
		Index:    index,
		Config:   cfg.MemoryConfig(),
		Logger:   log.With("component", "memory"),
		Clock:    opts.Clock,
	})
	e.assembler = assemble.New(assemble.Options{
		Embedder:   e.embedder,
		Retrievers: assemble.Retrievers(e.managers),
		Ranker:     rank.New(cfg.Caps()),
		Config:     cfg.AssembleConfig(),
		Logger:     log.With("component", "assemble"),
	})

	log.Debug("engine ready",
		"backend", cfg.Store.Backend,
		"embedding", cfg.Embedding.Provider,
		"index", cfg.Search.Index,
		"budget_chars", cfg.BudgetChars())
	return e, nil
}

// BuildContext assembles the memory context for one turn. It never fails.
func (e *Engine) BuildContext(ctx context.Context, userID, message string) assemble.Result {
	return e.assembler.BuildContext(ctx, userID, message)
}

// RecordEpisode appends a turn or event to the user's timeline.
func (e *Engine) RecordEpisode(ctx context.Context, userID string, ep model.EpisodicMemory) (model.EpisodicMemory, error) {
	return e.managers.Episodic.Create(ctx, userID, ep)
}

func (e *Engine) Core() *memory.CoreManager             { return e.managers.Core }
func (e *Engine) Episodic() *memory.EpisodicManager     { return e.managers.Episodic }
func (e *Engine) Semantic() *memory.SemanticManager     { return e.managers.Semantic }
func (e *Engine) Procedural() *memory.ProceduralManager { return e.managers.Procedural }
func (e *Engine) Resources() *memory.ResourceManager    { return e.managers.Resource }
func (e *Engine) Knowledge() *memory.KnowledgeManager   { return e.managers.Knowledge }

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Stats returns per-dimension counts for one user, or for everyone when
// userID is empty.
func (e *Engine) Stats(ctx context.Context, userID string) (*store.Stats, error) {
	return e.store.Stats(ctx, userID)
}

// Export returns every record the user owns.
func (e *Engine) Export(ctx context.Context, userID string) (*store.Snapshot, error) {
	return store.ExportAll(ctx, e.store, userID)
}

// Import checks a snapshot, loads it and drops the user's cached vector
// partitions. A snapshot that fails any check writes nothing.
func (e *Engine) Import(ctx context.Context, snap *store.Snapshot) (int, error) {
	if snap.UserID == "" {
		return 0, model.Invalid("", "user_id", "snapshot has no user")
	}
	if err := e.managers.CheckSnapshot(ctx, snap); err != nil {
		return 0, fmt.Errorf("import %s: %w", snap.UserID, err)
	}
	n, err := store.Import(context.WithoutCancel(ctx), e.store, snap)
	for _, d := range []model.Dimension{model.DimensionEpisodic, model.DimensionSemantic, model.DimensionKnowledge} {
		e.index.Invalidate(similarity.Partition{UserID: snap.UserID, Dimension: d})
	}
	return n, err
}

// Close releases the store and the embedding cache.
func (e *Engine) Close() error {
	e.closeCache()
	return e.store.Close()
}

func (e *Engine) closeCache() {
	if e.cache != nil {
		e.cache.Close()
	}
}
