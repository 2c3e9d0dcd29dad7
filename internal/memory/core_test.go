package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/sixmem/internal/model"
)

func TestCoreCreateDefaultsLimits(t *testing.T) {
	f := newFixture(t)
	core, err := f.Core.Create(context.Background(), "alice", model.CoreMemory{PersonaValue: "warm tutor"})
	require.NoError(t, err)
	assert.Equal(t, 2000, core.PersonaLimit)
	assert.Equal(t, 2000, core.HumanLimit)
	assert.True(t, strings.HasPrefix(core.ID, "core_"))
}

func TestCoreCreateOverwritesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "warm tutor"})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	second, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "strict tutor", HumanValue: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	all, err := f.Core.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "strict tutor", all[0].PersonaValue)
}

func TestCoreLimitEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "héllo", PersonaLimit: 4, HumanLimit: 10})
	assert.ErrorIs(t, err, model.ErrValidation)

	core, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "héllo", PersonaLimit: 5, HumanLimit: 10})
	require.NoError(t, err, "limit counts characters, not bytes")

	long := "Alice, age 5 parent"
	_, err = f.Core.Update(ctx, "alice", core.ID, model.CorePatch{HumanValue: &long})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "human_value", ve.Field)

	got, err := f.Core.ForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got.HumanValue, "rejected update must not be persisted")
}

func TestCoreSearchIgnoresQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "warm tutor", HumanValue: "Alice, age 5 parent"})
	require.NoError(t, err)

	hits, err := f.Core.Search(ctx, "alice", "quantum chromodynamics", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "warm tutor", hits[0].Record.PersonaValue)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, "identity", hits[0].Via)
}

func TestCoreDeleteRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	core, err := f.Core.Create(ctx, "alice", model.CoreMemory{PersonaValue: "warm tutor"})
	require.NoError(t, err)

	deleted, err := f.Core.Delete(ctx, "alice", core.ID)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.False(t, deleted)

	got, err := f.Core.ForUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.ID, got.ID)

	deleted, err = f.Core.Delete(ctx, "alice", "core_missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.Core.Delete(ctx, "bob", core.ID)
	require.NoError(t, err, "another user's core is absent, not protected")
	assert.False(t, deleted)
}
