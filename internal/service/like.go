package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"warbler/internal/model"
	"warbler/internal/repository"
)

type LikeService struct {
	tx          repository.Transactor
	likeRepo    repository.LikeRepository
	messageRepo repository.MessageRepository
}

func NewLikeService(tx repository.Transactor, likeRepo repository.LikeRepository, messageRepo repository.MessageRepository) *LikeService {
	return &LikeService{
		tx:          tx,
		likeRepo:    likeRepo,
		messageRepo: messageRepo,
	}
}

// ToggleLike removes userID's like on messageID if there is one and adds it otherwise,
// in a single unit of work.
func (s *LikeService) ToggleLike(ctx context.Context, userID, messageID int64) (model.LikeAction, error) {
	if _, err := s.messageRepo.GetByID(ctx, messageID); err != nil {
		return "", err
	}

	var action model.LikeAction
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		removed, err := s.likeRepo.Delete(ctx, tx, userID, messageID)
		if err != nil {
			return err
		}
		if removed {
			action = model.LikeRemoved
			return nil
		}

		action = model.LikeAdded
		return s.likeRepo.Create(ctx, tx, userID, messageID)
	})
	if err != nil {
		return "", fmt.Errorf("failed to toggle like: %w", err)
	}

	return action, nil
}

// LikedSet returns the ids of every message userID likes.
func (s *LikeService) LikedSet(ctx context.Context, userID int64) (map[int64]bool, error) {
	ids, err := s.likeRepo.GetLikedMessageIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// LikedMessages returns the messages userID likes, most recent like first.
func (s *LikeService) LikedMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	return s.likeRepo.GetLikedMessages(ctx, userID)
}

func (s *LikeService) CountForMessage(ctx context.Context, messageID int64) (int, error) {
	return s.likeRepo.CountForMessage(ctx, messageID)
}

// HasLiked reports whether userID likes messageID.
func (s *LikeService) HasLiked(ctx context.Context, userID, messageID int64) (bool, error) {
	return s.likeRepo.Exists(ctx, userID, messageID)
}
