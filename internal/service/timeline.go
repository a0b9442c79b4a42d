package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"warbler/internal/cache"
	"warbler/internal/model"
	"warbler/internal/repository"
)

// TimelineService builds a user's home timeline: their own messages plus those of
// everyone they follow, newest first.
type TimelineService struct {
	messageRepo repository.MessageRepository
	cache       cache.TimelineCache
}

// NewTimelineService creates a timeline service. timelineCache may be nil, in which case
// every read goes to the database.
func NewTimelineService(messageRepo repository.MessageRepository, timelineCache cache.TimelineCache) *TimelineService {
	return &TimelineService{
		messageRepo: messageRepo,
		cache:       timelineCache,
	}
}

// Home returns up to model.TimelineLimit messages for userID.
// Cache problems are logged and answered from the database.
func (s *TimelineService) Home(ctx context.Context, userID int64) ([]model.Message, error) {
	if s.cache == nil {
		return s.fromDB(ctx, userID)
	}

	startTime := time.Now()
	messages, err := s.fromCache(ctx, userID)
	if err != nil {
		log.Printf("[TimelineService] Cache read failed for user=%d, using database: %v", userID, err)
		return s.fromDB(ctx, userID)
	}

	log.Debugf("[TimelineService] Home OK: user=%d messages=%d duration=%v",
		userID, len(messages), time.Since(startTime))
	return messages, nil
}

func (s *TimelineService) fromDB(ctx context.Context, userID int64) ([]model.Message, error) {
	messages, err := s.messageRepo.Timeline(ctx, userID, model.TimelineLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return messages, nil
}

func (s *TimelineService) fromCache(ctx context.Context, userID int64) ([]model.Message, error) {
	exists, err := s.cache.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check cache: %w", err)
	}

	if !exists {
		log.Printf("[TimelineService] Cache miss for user=%d, warming...", userID)
		if err := s.warm(ctx, userID); err != nil {
			return nil, err
		}
	}

	ids, err := s.cache.GetTimeline(ctx, userID, model.TimelineLimit)
	if err != nil {
		return nil, fmt.Errorf("get timeline from cache: %w", err)
	}
	if len(ids) == 0 {
		return []model.Message{}, nil
	}

	// Ids of messages deleted since they were cached are skipped here.
	messages, err := s.messageRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate messages: %w", err)
	}
	return messages, nil
}

// warm populates the user's timeline cache from the database.
func (s *TimelineService) warm(ctx context.Context, userID int64) error {
	startTime := time.Now()

	scores, err := s.messageRepo.GetTimelineScores(ctx, userID, cache.TimelineCacheCap)
	if err != nil {
		return fmt.Errorf("get timeline scores: %w", err)
	}
	if len(scores) == 0 {
		return nil
	}

	if err := s.cache.WarmCache(ctx, userID, scores); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[TimelineService] Cache warmed: user=%d messages=%d duration=%v",
		userID, len(scores), time.Since(startTime))
	return nil
}
