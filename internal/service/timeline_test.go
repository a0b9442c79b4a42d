package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warbler/internal/cache/cachetest"
	"warbler/internal/model"
	"warbler/internal/repository/repotest"
)

func messageIDs(messages []model.Message) []int64 {
	ids := make([]int64, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	return ids
}

func seedTimeline(store *repotest.Store) (viewer model.User, want []int64) {
	u1, u2 := seedPair(store)
	u3 := store.SeedUser(model.User{Username: "stranger", Email: "s@test.com", Password: "x"})
	store.SeedFollow(u1.ID, u2.ID)

	a := store.SeedMessage(model.Message{Text: "mine", UserID: u1.ID})
	store.SeedMessage(model.Message{Text: "not followed", UserID: u3.ID})
	b := store.SeedMessage(model.Message{Text: "followed", UserID: u2.ID})
	return u1, []int64{b.ID, a.ID}
}

func TestTimelineService_Home_WithoutCache(t *testing.T) {
	store := repotest.NewStore()
	viewer, want := seedTimeline(store)
	svc := NewTimelineService(store.Messages(), nil)

	messages, err := svc.Home(context.Background(), viewer.ID)

	require.NoError(t, err)
	assert.Equal(t, want, messageIDs(messages))
}

func TestTimelineService_Home_WarmsCacheOnMiss(t *testing.T) {
	store := repotest.NewStore()
	viewer, want := seedTimeline(store)
	timelines := cachetest.New()
	svc := NewTimelineService(store.Messages(), timelines)
	ctx := context.Background()

	messages, err := svc.Home(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, want, messageIDs(messages))

	exists, err := timelines.Exists(ctx, viewer.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := timelines.Size(ctx, viewer.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)
}

func TestTimelineService_Home_SkipsDeletedMessages(t *testing.T) {
	store := repotest.NewStore()
	viewer, want := seedTimeline(store)
	timelines := cachetest.New()
	svc := NewTimelineService(store.Messages(), timelines)
	ctx := context.Background()

	_, err := svc.Home(ctx, viewer.ID)
	require.NoError(t, err)

	// Deleted behind the cache's back; the stale id must not surface.
	require.NoError(t, store.Messages().Delete(ctx, nil, want[0]))

	messages, err := svc.Home(ctx, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, want[1:], messageIDs(messages))
}

func TestTimelineService_Home_FallsBackOnCacheError(t *testing.T) {
	store := repotest.NewStore()
	viewer, want := seedTimeline(store)
	timelines := cachetest.New()
	timelines.Err = errors.New("redis down")
	svc := NewTimelineService(store.Messages(), timelines)

	messages, err := svc.Home(context.Background(), viewer.ID)

	require.NoError(t, err)
	assert.Equal(t, want, messageIDs(messages))
}
