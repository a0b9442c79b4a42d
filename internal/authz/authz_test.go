package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warbler/internal/model"
)

type stubUsers map[int64]*model.User

func (s stubUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, model.ErrUserNotFound
}

type failingUsers struct{}

func (failingUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestResolveActor(t *testing.T) {
	users := stubUsers{7111: {ID: 7111, Username: "testuser"}}
	ctx := context.Background()

	actor, err := ResolveActor(ctx, users, 7111, true)
	require.NoError(t, err)
	assert.Equal(t, "testuser", actor.Username)

	_, err = ResolveActor(ctx, users, 0, false)
	assert.ErrorIs(t, err, model.ErrAccessUnauthorized, "missing identity")

	_, err = ResolveActor(ctx, users, 99222224, true)
	assert.ErrorIs(t, err, model.ErrAccessUnauthorized, "identity of a deleted user")

	_, err = ResolveActor(ctx, failingUsers{}, 7111, true)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrAccessUnauthorized, "store failures are not denials")
}

func TestCanDeleteMessage(t *testing.T) {
	owner := &model.User{ID: 7111}
	other := &model.User{ID: 8552378}
	msg := &model.Message{ID: 1234, UserID: 7111}

	assert.NoError(t, CanDeleteMessage(owner, msg))
	assert.ErrorIs(t, CanDeleteMessage(other, msg), model.ErrAccessUnauthorized)
	assert.ErrorIs(t, CanDeleteMessage(nil, msg), model.ErrAccessUnauthorized)
}

func TestCanViewFollowListAndToggleLike(t *testing.T) {
	actor := &model.User{ID: 1}

	assert.NoError(t, CanViewFollowList(actor))
	assert.ErrorIs(t, CanViewFollowList(nil), model.ErrAccessUnauthorized)

	assert.NoError(t, CanToggleLike(actor))
	assert.ErrorIs(t, CanToggleLike(nil), model.ErrAccessUnauthorized)
}
