package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/similarity"
	"github.com/rcliao/sixmem/internal/store"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubEmbedder returns fixed vectors for known texts and fails on anything
// else.
type stubEmbedder struct {
	dims    int
	vectors map[string]embedding.Vector
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return nil, errors.New("no vector for " + text)
}

func (s *stubEmbedder) Dims() int { return s.dims }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (embedding.Vector, error) {
	return nil, errors.New("quota exceeded")
}

func (failingEmbedder) Dims() int { return 3 }

type fixture struct {
	*Managers
	clock *fakeClock
	store store.Store
}

type option func(*Options)

func withEmbedder(e embedding.Embedder) option { return func(o *Options) { o.Embedder = e } }
func withIndex(i similarity.Index) option     { return func(o *Options) { o.Index = i } }
func withConfig(fn func(*Config)) option      { return func(o *Options) { fn(&o.Config) } }

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	clock := &fakeClock{t: t0}
	s := store.NewMemoryStore()
	o := Options{Store: s, Config: DefaultConfig(), Clock: clock.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return &fixture{Managers: New(o), clock: clock, store: s}
}

func ids[T model.Record](hits []Scored[T]) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Record.Header().ID
	}
	return out
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sem, err := f.Semantic.Create(ctx, "alice", model.SemanticMemory{Name: "cats", Description: "small felines", Category: "animals"})
	require.NoError(t, err)
	assert.Regexp(t, `^sem_[0-9a-f-]{36}$`, sem.ID)
	assert.Equal(t, "alice", sem.UserID)
	assert.Equal(t, t0, sem.CreatedAt)
	assert.Equal(t, t0, sem.UpdatedAt)

	got, err := f.Semantic.Get(ctx, "alice", sem.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sem, *got)

	dim, ok := model.DimensionOf(sem.ID)
	assert.True(t, ok)
	assert.Equal(t, model.DimensionSemantic, dim)
}

func TestGetAbsentReturnsNil(t *testing.T) {
	f := newFixture(t)
	got, err := f.Knowledge.Get(context.Background(), "alice", "kv_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Resource.Create(ctx, "alice", model.ResourceMemory{
		ResourceType: model.ResourceURL, Name: "docs", Location: "https://example.com/docs",
	})
	require.NoError(t, err)

	ok, err := f.Resource.Delete(ctx, "alice", res.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Resource.Delete(ctx, "alice", res.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	k, err := f.Knowledge.Create(ctx, "alice", model.KnowledgeEntry{
		Domain: "nutrition", Topic: "allergens", Content: "Peanuts are legumes", Confidence: 0.7,
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	content := "Peanuts are legumes, not nuts"
	got, err := f.Knowledge.Update(ctx, "alice", k.ID, model.KnowledgePatch{
		Content:  &content,
		Metadata: map[string]any{"reviewed": true},
	})
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, k.ID, got.ID)
	assert.Equal(t, k.CreatedAt, got.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), got.UpdatedAt)
	assert.Equal(t, true, got.Metadata["reviewed"])

	bad := 1.5
	_, err = f.Knowledge.Update(ctx, "alice", k.ID, model.KnowledgePatch{Confidence: &bad})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUpdateForeignOwnerIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sem, err := f.Semantic.Create(ctx, "alice", model.SemanticMemory{Name: "cats"})
	require.NoError(t, err)

	name := "dogs"
	_, err = f.Semantic.Update(ctx, "bob", sem.ID, model.SemanticPatch{Name: &name})
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, sem.ID, nf.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Episodic.Create(ctx, "alice", model.EpisodicMemory{EventType: "chat"})
	assert.ErrorIs(t, err, model.ErrValidation, "missing summary")

	_, err = f.Episodic.Create(ctx, "alice", model.EpisodicMemory{EventType: "chat", Summary: "hi", Actor: "robot"})
	assert.ErrorIs(t, err, model.ErrValidation, "unknown actor")

	_, err = f.Resource.Create(ctx, "alice", model.ResourceMemory{ResourceType: "video", Name: "x", Location: "y"})
	assert.ErrorIs(t, err, model.ErrValidation, "unknown resource type")

	_, err = f.Knowledge.Create(ctx, "alice", model.KnowledgeEntry{Domain: "d", Topic: "t", Content: "c", Confidence: -0.1})
	assert.ErrorIs(t, err, model.ErrValidation, "negative confidence")

	_, err = f.Semantic.Create(ctx, "", model.SemanticMemory{Name: "x"})
	assert.ErrorIs(t, err, model.ErrValidation, "missing user")
}

func TestCrossUserIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "warm tutor", HumanValue: "Alice, age 5 parent"})
	require.NoError(t, err)
	_, err = f.Semantic.Create(ctx, "alice", model.SemanticMemory{Name: "tutor", Description: "warm tutor persona"})
	require.NoError(t, err)

	all, err := f.Core.GetAll(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, all)

	core, err := f.Core.Search(ctx, "bob", "warm tutor", 5)
	require.NoError(t, err)
	assert.Empty(t, core)

	sem, err := f.Semantic.Search(ctx, "bob", "warm tutor", 5)
	require.NoError(t, err)
	assert.Empty(t, sem)

	sem, err = f.Semantic.Search(ctx, "alice", "warm tutor", 5)
	require.NoError(t, err)
	assert.Len(t, sem, 1)
}
