package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/outbox/internal/payload"
)

func TestListPending_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.ListPending(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestListPending_OrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	names := []string{"c", "a", "b"}
	for _, n := range names {
		_, err := s.Enqueue(ctx, n, payload.Object{})
		require.NoError(t, err)
	}

	entries, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, names[i], e.CommandName, "insertion order is id order")
		if i > 0 {
			assert.Greater(t, e.ID, entries[i-1].ID)
		}
	}
}

func TestListPending_ExcludesSyncingAndFailed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, _ := s.Enqueue(ctx, "a", payload.Object{})
	b, _ := s.Enqueue(ctx, "b", payload.Object{})
	c, _ := s.Enqueue(ctx, "c", payload.Object{})
	require.NoError(t, s.MarkSyncing(ctx, a))
	require.NoError(t, s.MarkSyncing(ctx, b))
	require.NoError(t, s.MarkFailed(ctx, b, "boom"))

	entries, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, c, entries[0].ID)

	n, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListPending_FailedStaysExcluded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, _ := s.Enqueue(ctx, "recordSale", payload.Object{})
	require.NoError(t, s.MarkSyncing(ctx, id))
	require.NoError(t, s.MarkFailed(ctx, id, "boom"))

	for i := 0; i < 2; i++ {
		entries, err := s.ListPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestCountPending_MatchesListPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := s.Enqueue(ctx, "x", payload.Object{"i": payload.Int(int64(i))})
		require.NoError(t, err)
	}

	n, err := s.CountPending(ctx)
	require.NoError(t, err)
	entries, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(entries), n)
}

func TestList_FilterAndLimit(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, _ := s.Enqueue(ctx, "a", payload.Object{})
	_, _ = s.Enqueue(ctx, "b", payload.Object{})
	_, _ = s.Enqueue(ctx, "c", payload.Object{})
	require.NoError(t, s.MarkSyncing(ctx, a))
	require.NoError(t, s.MarkFailed(ctx, a, "boom"))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := s.List(ctx, Filter{Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a, failed[0].ID)

	limited, err := s.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, _ := s.Enqueue(ctx, "a", payload.Object{})
	b, _ := s.Enqueue(ctx, "b", payload.Object{})
	_, _ = s.Enqueue(ctx, "c", payload.Object{})
	require.NoError(t, s.MarkSyncing(ctx, a))
	require.NoError(t, s.MarkSyncing(ctx, b))
	require.NoError(t, s.MarkFailed(ctx, b, "boom"))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Pending: 1, Syncing: 1, Failed: 1}, c)
	assert.Equal(t, 3, c.Total())
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
