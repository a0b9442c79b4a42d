package model

import (
	"errors"
	"time"
)

// Follow is a directed edge: FollowerID follows FolloweeID.
type Follow struct {
	FolloweeID int64     `db:"user_being_followed_id" json:"user_being_followed_id"`
	FollowerID int64     `db:"user_following_id" json:"user_following_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type UserSummary struct {
	ID       int64   `db:"id" json:"id"`
	Username string  `db:"username" json:"username"`
	ImageURL string  `db:"image_url" json:"image_url"`
	Bio      *string `db:"bio" json:"bio"`
}

var (
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
)
