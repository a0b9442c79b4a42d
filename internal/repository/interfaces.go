package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"warbler/internal/cache"
	"warbler/internal/model"
)

// Transactor runs fn inside a single database transaction. Every mutation in the
// service layer goes through it, so either all row changes of an action commit or none do.
// A nil tx is passed by in-memory implementations.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type UserRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// Search returns users whose username contains query (case-sensitive).
	// An empty query returns every user.
	Search(ctx context.Context, query string) ([]model.UserSummary, error)
	Update(ctx context.Context, tx *sqlx.Tx, user *model.User) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	GetStats(ctx context.Context, id int64) (*model.UserStats, error)
}

type MessageRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, msg *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	// GetByIDs keeps the order of ids and skips ids that no longer exist.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Message, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Message, error)
	// Timeline returns the newest messages written by userID or anyone userID follows.
	Timeline(ctx context.Context, userID int64, limit int) ([]model.Message, error)
	GetTimelineScores(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error)
	GetRecentByUser(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error)
}

type FollowRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) error
	Exists(ctx context.Context, followerID, followeeID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64) ([]model.UserSummary, error)
	GetFollowing(ctx context.Context, userID int64) ([]model.UserSummary, error)
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
	GetFolloweeIDs(ctx context.Context, userID int64) ([]int64, error)
	CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
}

type LikeRepository interface {
	// Create is idempotent: a duplicate (user, message) pair is ignored.
	Create(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) error
	// Delete reports whether a like row was removed.
	Delete(ctx context.Context, tx *sqlx.Tx, userID, messageID int64) (bool, error)
	Exists(ctx context.Context, userID, messageID int64) (bool, error)
	GetLikedMessageIDs(ctx context.Context, userID int64) ([]int64, error)
	GetLikedMessages(ctx context.Context, userID int64) ([]model.Message, error)
	CountForMessage(ctx context.Context, messageID int64) (int, error)
}
