package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/lexical"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
)

// deps is the behaviour shared by every manager: ids, timestamps, embedding
// with graceful failure, and index invalidation.
type deps struct {
	embedder embedding.Embedder
	index    similarity.Index
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

func newDeps(opts Options) *deps {
	d := &deps{
		embedder: opts.Embedder,
		index:    opts.Index,
		cfg:      opts.Config,
		log:      opts.Logger,
		now:      opts.Clock,
	}
	if d.index == nil {
		d.index = similarity.BruteForce{}
	}
	if d.log == nil {
		d.log = slog.New(slog.DiscardHandler)
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.cfg.EmbeddingDims == 0 && d.embedder != nil {
		d.cfg.EmbeddingDims = d.embedder.Dims()
	}
	if d.cfg.DefaultLimit <= 0 {
		d.cfg.DefaultLimit = 5
	}
	if d.cfg.CoreLimit <= 0 {
		d.cfg.CoreLimit = 2000
	}
	if d.cfg.EmbedTimeout <= 0 {
		d.cfg.EmbedTimeout = 5 * time.Second
	}
	return d
}

func (d *deps) newID(dim model.Dimension) string {
	return dim.Prefix() + "_" + uuid.NewString()
}

// stampNew fills the server-assigned fields of a new record.
func (d *deps) stampNew(b *model.Base, userID string, dim model.Dimension) {
	now := d.now().UTC()
	b.ID = d.newID(dim)
	b.UserID = userID
	b.CreatedAt = now
	b.UpdatedAt = now
}

// stampUpdate restores identity fields from prev and bumps UpdatedAt.
func (d *deps) stampUpdate(b *model.Base, prev model.Base) {
	b.KeepIdentity(prev)
	b.UpdatedAt = d.now().UTC()
	if !b.UpdatedAt.After(prev.UpdatedAt) {
		b.UpdatedAt = prev.UpdatedAt.Add(time.Nanosecond)
	}
}

func (d *deps) limit(n int) int {
	if n <= 0 {
		return d.cfg.DefaultLimit
	}
	return n
}

// checkVector rejects caller-supplied embeddings of the wrong length.
func (d *deps) checkVector(dim model.Dimension, field string, v embedding.Vector) error {
	if len(v) == 0 || d.cfg.EmbeddingDims == 0 {
		return nil
	}
	if len(v) != d.cfg.EmbeddingDims {
		return model.Invalid(dim, field, "has %d dimensions, want %d", len(v), d.cfg.EmbeddingDims)
	}
	return nil
}

// embed returns the text's vector, or nil when embeddings are disabled or
// the provider fails. Failures are logged, never returned.
func (d *deps) embed(ctx context.Context, userID string, dim model.Dimension, text string) embedding.Vector {
	if d.embedder == nil || text == "" {
		return nil
	}
	v, err := d.embedWithTimeout(ctx, text)
	if err != nil {
		d.log.Warn("embedding failed, storing without vector",
			"user", userID, "dimension", dim, "err", err)
		return nil
	}
	return v
}

func (d *deps) embedWithTimeout(ctx context.Context, text string) (embedding.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.EmbedTimeout)
	defer cancel()
	v, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &model.ProviderError{Op: "embed", Err: err}
	}
	if d.cfg.EmbeddingDims > 0 && len(v) != d.cfg.EmbeddingDims {
		return nil, &model.ProviderError{Op: "embed", Err: fmt.Errorf("got %d dimensions, want %d", len(v), d.cfg.EmbeddingDims)}
	}
	return v, nil
}

// query embeds the search text; on failure the query degrades to keywords.
func (d *deps) query(ctx context.Context, userID string, dim model.Dimension, text string) Query {
	q := Query{Text: text}
	if d.embedder == nil || text == "" {
		return q
	}
	v, err := d.embedWithTimeout(ctx, text)
	if err != nil {
		d.log.Warn("query embedding failed, falling back to keyword search",
			"user", userID, "dimension", dim, "err", err)
		return q
	}
	q.Vector = v
	return q
}

// similarities scores the partition's vectors against q. It returns nil
// when q has no vector or the index fails, which callers treat as
// keyword-only.
func (d *deps) similarities(ctx context.Context, userID string, dim model.Dimension, q Query, entries func() []similarity.Entry) map[string]float64 {
	if len(q.Vector) == 0 {
		return nil
	}
	sims, err := d.index.Similarities(ctx, similarity.Partition{UserID: userID, Dimension: dim}, q.Vector, entries)
	if err != nil {
		d.log.Warn("similarity index failed, falling back to keyword search",
			"user", userID, "dimension", dim, "err", err)
		return nil
	}
	return sims
}

func (d *deps) invalidate(userID string, dim model.Dimension) {
	d.index.Invalidate(similarity.Partition{UserID: userID, Dimension: dim})
}

func (d *deps) matcher(userID string, dim model.Dimension, text string) *lexical.Matcher {
	m, err := lexical.NewMatcher(text)
	if err != nil {
		d.log.Warn("keyword matcher failed", "user", userID, "dimension", dim, "err", err)
		m, _ = lexical.NewMatcher("")
	}
	return m
}

func notFound(dim model.Dimension, id string) error {
	return &model.NotFoundError{Dimension: dim, ID: id}
}

func requireUser(dim model.Dimension, userID string) error {
	if userID == "" {
		return model.Invalid(dim, "user_id", "is required")
	}
	return nil
}
