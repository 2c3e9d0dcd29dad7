// Package memory implements one manager per memory dimension. Every manager
// offers the same CRUD and search contract; dimension-specific behaviour
// (recency blending, confidence gating, relationship expansion, step
// contiguity, access tracking) lives in the individual managers.
package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
	"github.com/rcliao/sixmem/internal/store"
)

// Manager is the contract every dimension implements.
type Manager[T model.Record, P any] interface {
	Create(ctx context.Context, userID string, rec T) (T, error)
	Update(ctx context.Context, userID, id string, patch P) (T, error)
	// Delete is idempotent: it reports false when the record was already
	// absent.
	Delete(ctx context.Context, userID, id string) (bool, error)
	// Get returns nil, nil when the record is absent or owned by someone else.
	Get(ctx context.Context, userID, id string) (*T, error)
	GetAll(ctx context.Context, userID string) ([]T, error)
	Search(ctx context.Context, userID, query string, limit int) ([]Scored[T], error)
	// SearchQuery is Search with a caller-supplied query embedding, so one
	// embedding can be shared across dimensions.
	SearchQuery(ctx context.Context, userID string, q Query, limit int) ([]Scored[T], error)
}

// Scored is a search hit.
type Scored[T model.Record] struct {
	Record     T       `json:"record"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	// Via is "vector", "lexical", "expansion" or "identity".
	Via string `json:"via"`
}

// Query is a search request. A nil Vector means keyword matching only.
type Query struct {
	Text   string
	Vector embedding.Vector
}

// Recency decay modes.
const (
	DecayExponential = "exponential"
	DecayLinear      = "linear"
)

// Config tunes validation defaults and the scoring blend.
type Config struct {
	// EmbeddingDims is the required vector length. Zero takes the
	// embedder's Dims().
	EmbeddingDims int
	EmbedTimeout  time.Duration

	CoreLimit    int
	DefaultLimit int

	// MinSimilarity drops vector candidates below it in the semantic,
	// knowledge and (when embedded) other dimensions. Lexical candidates
	// need at least one keyword hit instead.
	MinSimilarity float64

	// Episodic score = SimilarityWeight*similarity + RecencyWeight*recency.
	SimilarityWeight float64
	RecencyWeight    float64
	RecencyDecay     string
	RecencyHalfLife  time.Duration
	RecencyWindow    time.Duration

	// Knowledge score = (1-ConfidenceWeight)*similarity + ConfidenceWeight*confidence,
	// over entries with confidence strictly above the threshold.
	ConfidenceWeight             float64
	KnowledgeConfidenceThreshold float64

	// ExpansionMinStrength is the minimum edge strength followed when
	// expanding semantic hits by one hop.
	ExpansionMinStrength float64
}

// DefaultConfig returns the defaults used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		EmbedTimeout:                 5 * time.Second,
		CoreLimit:                    2000,
		DefaultLimit:                 5,
		MinSimilarity:                0.25,
		SimilarityWeight:             0.6,
		RecencyWeight:                0.4,
		RecencyDecay:                 DecayExponential,
		RecencyHalfLife:              7 * 24 * time.Hour,
		RecencyWindow:                30 * 24 * time.Hour,
		ConfidenceWeight:             0.3,
		KnowledgeConfidenceThreshold: 0.5,
		ExpansionMinStrength:         0.5,
	}
}

// Options wires the managers' collaborators. Embedder may be nil, in which
// case every search is lexical.
type Options struct {
	Store    store.Store
	Embedder embedding.Embedder
	Index    similarity.Index
	Config   Config
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Managers holds one manager per dimension.
type Managers struct {
	Core       *CoreManager
	Episodic   *EpisodicManager
	Semantic   *SemanticManager
	Procedural *ProceduralManager
	Resource   *ResourceManager
	Knowledge  *KnowledgeManager
}

// New builds all six managers over one store.
func New(opts Options) *Managers {
	d := newDeps(opts)
	return &Managers{
		Core:       &CoreManager{deps: d, table: opts.Store.Core()},
		Episodic:   &EpisodicManager{deps: d, table: opts.Store.Episodic()},
		Semantic:   &SemanticManager{deps: d, table: opts.Store.Semantic(), edges: opts.Store.Relationships()},
		Procedural: &ProceduralManager{deps: d, table: opts.Store.Procedural()},
		Resource:   &ResourceManager{deps: d, table: opts.Store.Resources()},
		Knowledge:  &KnowledgeManager{deps: d, table: opts.Store.Knowledge()},
	}
}

var (
	_ Manager[model.CoreMemory, model.CorePatch]             = (*CoreManager)(nil)
	_ Manager[model.EpisodicMemory, model.EpisodicPatch]     = (*EpisodicManager)(nil)
	_ Manager[model.SemanticMemory, model.SemanticPatch]     = (*SemanticManager)(nil)
	_ Manager[model.ProceduralMemory, model.ProceduralPatch] = (*ProceduralManager)(nil)
	_ Manager[model.ResourceMemory, model.ResourcePatch]     = (*ResourceManager)(nil)
	_ Manager[model.KnowledgeEntry, model.KnowledgePatch]    = (*KnowledgeManager)(nil)
)
