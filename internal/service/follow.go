package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"warbler/internal/model"
	"warbler/internal/queue"
	"warbler/internal/repository"
)

type FollowService struct {
	tx         repository.Transactor
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	publisher  queue.Publisher
}

func NewFollowService(
	tx repository.Transactor,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	publisher queue.Publisher,
) *FollowService {
	return &FollowService{
		tx:         tx,
		followRepo: followRepo,
		userRepo:   userRepo,
		publisher:  publisher,
	}
}

// Follow makes followerID follow followeeID. Following twice is model.ErrAlreadyFollowing.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID int64) error {
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	var inserted bool
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		inserted, err = s.followRepo.Create(ctx, tx, followerID, followeeID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	if !inserted {
		return model.ErrAlreadyFollowing
	}

	publish(ctx, s.publisher, "FollowService", queue.NewUserFollowedEvent(followerID, followeeID))
	return nil
}

// Unfollow removes the edge. Unfollowing someone not followed is model.ErrNotFollowing.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.followRepo.Delete(ctx, tx, followerID, followeeID)
	})
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}

	publish(ctx, s.publisher, "FollowService", queue.NewUserUnfollowedEvent(followerID, followeeID))
	return nil
}

// IsFollowing reports whether a follows b.
func (s *FollowService) IsFollowing(ctx context.Context, a, b int64) (bool, error) {
	return s.followRepo.Exists(ctx, a, b)
}

// IsFollowedBy reports whether a is followed by b.
func (s *FollowService) IsFollowedBy(ctx context.Context, a, b int64) (bool, error) {
	return s.followRepo.Exists(ctx, b, a)
}

func (s *FollowService) GetFollowers(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	return s.followRepo.GetFollowers(ctx, userID)
}

func (s *FollowService) GetFollowing(ctx context.Context, userID int64) ([]model.UserSummary, error) {
	return s.followRepo.GetFollowing(ctx, userID)
}

// FollowingSet returns the subset of users that viewerID follows, as a lookup set.
// It is one batch query rather than one per user.
func (s *FollowService) FollowingSet(ctx context.Context, viewerID int64, users []model.UserSummary) (map[int64]bool, error) {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return s.followRepo.CheckFollows(ctx, viewerID, ids)
}
