package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareService_SecondShareReturnsExisting(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	a, err := s.feed.Create(ctx, CreatePostInput{UserID: "u1", Username: "alice", Content: "share me"})
	require.NoError(t, err)

	first, err := s.shares.Share(ctx, a.ID, "v", "vee")
	require.NoError(t, err)
	second, err := s.shares.Share(ctx, a.ID, "v", "vee")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.SharedSnap.SharedByUser)

	original, err := s.feed.GetOne(ctx, a.ID, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(1), original.Shares)
	assert.True(t, original.SharedByUser)
}

func TestShareService_UnshareAndList(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	a, err := s.feed.Create(ctx, CreatePostInput{UserID: "u1", Username: "alice", Content: "first"})
	require.NoError(t, err)
	b, err := s.feed.Create(ctx, CreatePostInput{UserID: "u1", Username: "alice", Content: "second"})
	require.NoError(t, err)

	_, err = s.shares.Share(ctx, a.ID, "v", "vee")
	require.NoError(t, err)
	_, err = s.shares.Share(ctx, b.ID, "v", "vee")
	require.NoError(t, err)

	list, err := s.shares.ListShares(ctx, "v")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, view := range list {
		require.NotNil(t, view.SharedSnap)
		assert.Equal(t, *view.SharedID, view.SharedSnap.ID)
		assert.Empty(t, view.Content)
	}

	removed, err := s.shares.Unshare(ctx, a.ID, "v")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = s.shares.Unshare(ctx, a.ID, "v")
	require.NoError(t, err)
	assert.Zero(t, removed)

	list, err = s.shares.ListShares(ctx, "v")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].SharedSnap.ID)

	original, err := s.feed.GetOne(ctx, a.ID, "v")
	require.NoError(t, err)
	assert.Zero(t, original.Shares)
	assert.False(t, original.SharedByUser)
}

func TestShareService_DeletedOriginalLeavesEmptyUnwrap(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	a, err := s.feed.Create(ctx, CreatePostInput{UserID: "u1", Username: "alice", Content: "short lived"})
	require.NoError(t, err)
	share, err := s.shares.Share(ctx, a.ID, "v", "vee")
	require.NoError(t, err)

	_, err = s.feed.Delete(ctx, a.ID)
	require.NoError(t, err)

	view, err := s.feed.GetOne(ctx, share.ID, "")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Nil(t, view.SharedSnap)
}
