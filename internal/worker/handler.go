package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"warbler/internal/cache"
	"warbler/internal/model"
	"warbler/internal/queue"
)

// FollowerProvider abstracts the follow repository so workers don't depend on the DB directly.
type FollowerProvider interface {
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RecentMessagesProvider is used to backfill a timeline when a user follows someone.
type RecentMessagesProvider interface {
	GetRecentByUser(ctx context.Context, userID int64, limit int) ([]cache.MessageScore, error)
}

// Handler applies timeline events to the timeline cache.
type Handler struct {
	timelineCache    cache.TimelineCache
	followerProvider FollowerProvider
	messagesProvider RecentMessagesProvider
}

func NewHandler(
	timelineCache cache.TimelineCache,
	followerProvider FollowerProvider,
	messagesProvider RecentMessagesProvider,
) *Handler {
	return &Handler{
		timelineCache:    timelineCache,
		followerProvider: followerProvider,
		messagesProvider: messagesProvider,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.TimelineEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventMessageCreated:
		err = h.handleMessageCreated(ctx, event)
	case queue.EventMessageDeleted:
		err = h.handleMessageDeleted(ctx, event)
	case queue.EventUserFollowed:
		err = h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		err = h.handleUserUnfollowed(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Debugf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleMessageCreated adds a new message to the author's and every follower's timeline.
func (h *Handler) handleMessageCreated(ctx context.Context, event queue.TimelineEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failCount int
	for _, userID := range append([]int64{event.AuthorID}, followers...) {
		if err := h.timelineCache.AddMessage(ctx, userID, event.MessageID, event.Timestamp); err != nil {
			log.Printf("[Worker] MessageCreated: failed to add to user=%d err=%v", userID, err)
			failCount++
			// Continue with other followers - don't fail entire fan-out
		}
	}

	log.Printf("[Worker] MessageCreated DONE: message=%d fanout=%d failed=%d",
		event.MessageID, len(followers)+1, failCount)
	return nil
}

func (h *Handler) handleMessageDeleted(ctx context.Context, event queue.TimelineEvent) error {
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failCount int
	for _, userID := range append([]int64{event.AuthorID}, followers...) {
		if err := h.timelineCache.RemoveMessage(ctx, userID, event.MessageID); err != nil {
			log.Printf("[Worker] MessageDeleted: failed to remove from user=%d err=%v", userID, err)
			failCount++
		}
	}

	log.Printf("[Worker] MessageDeleted DONE: message=%d fanout=%d failed=%d",
		event.MessageID, len(followers)+1, failCount)
	return nil
}

// handleUserFollowed merges the followee's recent messages into a cached follower timeline.
// An uncached timeline is left for the next read to warm.
func (h *Handler) handleUserFollowed(ctx context.Context, event queue.TimelineEvent) error {
	cached, err := h.timelineCache.Exists(ctx, event.FollowerID)
	if err != nil {
		return fmt.Errorf("check timeline: %w", err)
	}
	if !cached {
		return nil
	}

	messages, err := h.messagesProvider.GetRecentByUser(ctx, event.FolloweeID, model.TimelineLimit)
	if err != nil {
		return fmt.Errorf("get recent messages: %w", err)
	}
	if err := h.timelineCache.WarmCache(ctx, event.FollowerID, messages); err != nil {
		return err
	}

	log.Printf("[Worker] UserFollowed DONE: follower=%d followee=%d backfilled=%d",
		event.FollowerID, event.FolloweeID, len(messages))
	return nil
}

// handleUserUnfollowed drops the follower's timeline so it is rebuilt without the followee.
func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.TimelineEvent) error {
	if err := h.timelineCache.Invalidate(ctx, event.FollowerID); err != nil {
		return err
	}

	log.Printf("[Worker] UserUnfollowed DONE: follower=%d followee=%d", event.FollowerID, event.FolloweeID)
	return nil
}
