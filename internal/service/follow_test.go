package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warbler/internal/model"
	"warbler/internal/queue"
	"warbler/internal/repository/repotest"
)

func TestFollowService_FollowAndUnfollow(t *testing.T) {
	store := repotest.NewStore()
	pub := &recordingPublisher{}
	svc := NewFollowService(store.Transactor(), store.Follows(), store.Users(), pub)
	u1, u2 := seedPair(store)
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, u1.ID, u2.ID))

	following, err := svc.IsFollowing(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.True(t, following)

	followedBy, err := svc.IsFollowedBy(ctx, u2.ID, u1.ID)
	require.NoError(t, err)
	assert.True(t, followedBy)

	reverse, err := svc.IsFollowing(ctx, u2.ID, u1.ID)
	require.NoError(t, err)
	assert.False(t, reverse, "following is directed")

	err = svc.Follow(ctx, u1.ID, u2.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyFollowing)

	require.NoError(t, svc.Unfollow(ctx, u1.ID, u2.ID))
	following, err = svc.IsFollowing(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.False(t, following)

	err = svc.Unfollow(ctx, u1.ID, u2.ID)
	assert.ErrorIs(t, err, model.ErrNotFollowing)

	assert.Equal(t, []string{queue.EventUserFollowed, queue.EventUserUnfollowed}, pub.types())
}

func TestFollowService_FollowUnknownUser(t *testing.T) {
	store := repotest.NewStore()
	svc := NewFollowService(store.Transactor(), store.Follows(), store.Users(), nil)
	u1, _ := seedPair(store)

	err := svc.Follow(context.Background(), u1.ID, 424242)

	assert.True(t, errors.Is(err, model.ErrUserNotFound), "got %v", err)
	_, _, follows, _ := store.Counts()
	assert.Zero(t, follows)
}

func TestFollowService_Lists(t *testing.T) {
	store := repotest.NewStore()
	svc := NewFollowService(store.Transactor(), store.Follows(), store.Users(), nil)
	u1, u2 := seedPair(store)
	u3 := store.SeedUser(model.User{Username: "carl", Email: "carl@test.com", Password: "x"})
	store.SeedFollow(u1.ID, u2.ID)
	store.SeedFollow(u1.ID, u3.ID)
	store.SeedFollow(u3.ID, u1.ID)
	ctx := context.Background()

	following, err := svc.GetFollowing(ctx, u1.ID)
	require.NoError(t, err)
	assert.Len(t, following, 2)

	followers, err := svc.GetFollowers(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "carl", followers[0].Username)

	set, err := svc.FollowingSet(ctx, u3.ID, []model.UserSummary{u1.Summary(), u2.Summary()})
	require.NoError(t, err)
	assert.True(t, set[u1.ID])
	assert.False(t, set[u2.ID])
}
