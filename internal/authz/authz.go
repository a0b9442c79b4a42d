// Package authz decides whether an acting identity may perform an action.
// Every denial is model.ErrAccessUnauthorized so callers render one response for all of them.
package authz

import (
	"context"
	"errors"
	"fmt"

	"warbler/internal/model"
)

// UserLookup is the part of the user repository the gate needs.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// ResolveActor turns the identity carried by a request into a user.
// A missing identity and an identity naming a deleted user are denied the same way.
func ResolveActor(ctx context.Context, users UserLookup, userID int64, ok bool) (*model.User, error) {
	if !ok {
		return nil, model.ErrAccessUnauthorized
	}

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrAccessUnauthorized
		}
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	return user, nil
}

// CanDeleteMessage allows only the message's author.
func CanDeleteMessage(actor *model.User, msg *model.Message) error {
	if actor == nil || msg == nil || !msg.OwnedBy(actor.ID) {
		return model.ErrAccessUnauthorized
	}
	return nil
}

// CanViewFollowList allows any authenticated user to view anyone's
// following, followers and likes lists.
func CanViewFollowList(actor *model.User) error {
	if actor == nil {
		return model.ErrAccessUnauthorized
	}
	return nil
}

// CanToggleLike allows any authenticated user to like any message, their own included.
func CanToggleLike(actor *model.User) error {
	if actor == nil {
		return model.ErrAccessUnauthorized
	}
	return nil
}
