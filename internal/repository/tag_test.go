package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRepository_IncrementDecrement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "alice")

	require.NoError(t, s.Tags.Increment(ctx, testID(), u.ID, "go", baseTime))
	require.NoError(t, s.Tags.Increment(ctx, testID(), u.ID, "go", baseTime))

	tag, err := s.Tags.ByName(ctx, u.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, int64(2), tag.UsageCount)

	for range 3 {
		require.NoError(t, s.Tags.Decrement(ctx, u.ID, "go", baseTime))
	}
	tag, err = s.Tags.ByName(ctx, u.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, int64(0), tag.UsageCount, "usage_count floors at zero")

	// Unknown tag is a no-op.
	require.NoError(t, s.Tags.Decrement(ctx, u.ID, "missing", baseTime))
	_, err = s.Tags.ByName(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestTagRepository_ScopedPerUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	require.NoError(t, s.Tags.Increment(ctx, testID(), alice.ID, "go", baseTime))
	require.NoError(t, s.Tags.Increment(ctx, testID(), bob.ID, "go", baseTime))

	a, err := s.Tags.ByName(ctx, alice.ID, "go")
	require.NoError(t, err)
	b, err := s.Tags.ByName(ctx, bob.ID, "go")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(1), a.UsageCount)
	assert.Equal(t, int64(1), b.UsageCount)
}

func TestTagRepository_ListAndPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := createUser(t, s, "alice")

	for _, name := range []string{"sql", "go", "go", "rust", "rust"} {
		require.NoError(t, s.Tags.Increment(ctx, testID(), u.ID, name, baseTime))
	}
	require.NoError(t, s.Tags.Decrement(ctx, u.ID, "sql", baseTime))

	tags, err := s.Tags.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0].Name)
	assert.Equal(t, "rust", tags[1].Name)

	n, err := s.Tags.DeleteUnused(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Tags.ResetByUser(ctx, u.ID, baseTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Tags.DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
