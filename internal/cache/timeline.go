package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	// TimelineCachePrefix is the key prefix for home timeline caches
	TimelineCachePrefix = "timeline:user:"

	// TimelineCacheCap is the maximum number of messages cached per user
	TimelineCacheCap = 500

	// TimelineCacheTTL is the TTL for a timeline cache (7 days)
	TimelineCacheTTL = 7 * 24 * time.Hour
)

// MessageScore is a message id with its timestamp score (unix milliseconds).
type MessageScore struct {
	MessageID int64
	Timestamp int64
}

// TimelineCache stores the message ids of each user's home timeline, newest first.
type TimelineCache interface {
	// AddMessage adds a message to a timeline that is already cached.
	// Timelines that are not cached are left alone; they are warmed on the next read.
	AddMessage(ctx context.Context, userID, messageID int64, timestamp int64) error

	RemoveMessage(ctx context.Context, userID, messageID int64) error

	// GetTimeline returns up to limit message ids, newest first.
	GetTimeline(ctx context.Context, userID int64, limit int) ([]int64, error)

	// WarmCache bulk-inserts messages into a user's timeline.
	WarmCache(ctx context.Context, userID int64, messages []MessageScore) error

	// Exists reports whether a user has a cached timeline.
	Exists(ctx context.Context, userID int64) (bool, error)

	// Invalidate drops a user's cached timeline.
	Invalidate(ctx context.Context, userID int64) error

	// GetScore returns (score, found, error) for a message in a user's timeline.
	GetScore(ctx context.Context, userID, messageID int64) (int64, bool, error)

	Size(ctx context.Context, userID int64) (int64, error)
}

// RedisTimelineCache implements TimelineCache using Redis sorted sets.
type RedisTimelineCache struct {
	client *redis.Client
}

func NewTimelineCache(client *redis.Client) TimelineCache {
	return &RedisTimelineCache{client: client}
}

func timelineKey(userID int64) string {
	return fmt.Sprintf("%s%d", TimelineCachePrefix, userID)
}

// AddMessage pipelines ZADD + ZREMRANGEBYRANK (trim to cap) + EXPIRE (refresh TTL).
func (c *RedisTimelineCache) AddMessage(ctx context.Context, userID, messageID int64, timestamp int64) error {
	key := timelineKey(userID)
	startTime := time.Now()

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check timeline exists: %w", err)
	}
	if exists == 0 {
		log.Debugf("[TimelineCache] AddMessage skipped: user=%d not cached", userID)
		return nil
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: strconv.FormatInt(messageID, 10),
	})
	// 0 is the lowest score (oldest); keep the newest TimelineCacheCap
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-TimelineCacheCap-1))
	pipe.Expire(ctx, key, TimelineCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[TimelineCache] AddMessage FAILED: user=%d message=%d err=%v", userID, messageID, err)
		return fmt.Errorf("add message to timeline: %w", err)
	}

	log.Debugf("[TimelineCache] AddMessage OK: user=%d message=%d duration=%v",
		userID, messageID, time.Since(startTime))
	return nil
}

func (c *RedisTimelineCache) RemoveMessage(ctx context.Context, userID, messageID int64) error {
	key := timelineKey(userID)
	member := strconv.FormatInt(messageID, 10)

	removed, err := c.client.ZRem(ctx, key, member).Result()
	if err != nil {
		log.Printf("[TimelineCache] RemoveMessage FAILED: user=%d message=%d err=%v", userID, messageID, err)
		return fmt.Errorf("remove message from timeline: %w", err)
	}

	log.Debugf("[TimelineCache] RemoveMessage OK: user=%d message=%d removed=%d", userID, messageID, removed)
	return nil
}

func (c *RedisTimelineCache) GetTimeline(ctx context.Context, userID int64, limit int) ([]int64, error) {
	key := timelineKey(userID)
	startTime := time.Now()

	members, err := c.client.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		log.Printf("[TimelineCache] GetTimeline FAILED: user=%d err=%v", userID, err)
		return nil, fmt.Errorf("get timeline: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, TimelineCacheTTL)

	ids := make([]int64, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse message id %q: %w", m, err)
		}
		ids[i] = id
	}

	log.Debugf("[TimelineCache] GetTimeline OK: user=%d returned=%d duration=%v",
		userID, len(ids), time.Since(startTime))
	return ids, nil
}

// WarmCache pipelines one ZADD for all messages, then trims and sets the TTL.
// Nothing is stored for an empty timeline; it is read from the database again next time.
func (c *RedisTimelineCache) WarmCache(ctx context.Context, userID int64, messages []MessageScore) error {
	if len(messages) == 0 {
		return nil
	}

	key := timelineKey(userID)
	startTime := time.Now()

	members := make([]redis.Z, len(messages))
	for i, m := range messages {
		members[i] = redis.Z{
			Score:  float64(m.Timestamp),
			Member: strconv.FormatInt(m.MessageID, 10),
		}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-TimelineCacheCap-1))
	pipe.Expire(ctx, key, TimelineCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[TimelineCache] WarmCache FAILED: user=%d messages=%d err=%v", userID, len(messages), err)
		return fmt.Errorf("warm timeline: %w", err)
	}

	log.Printf("[TimelineCache] WarmCache OK: user=%d messages=%d duration=%v",
		userID, len(messages), time.Since(startTime))
	return nil
}

func (c *RedisTimelineCache) Exists(ctx context.Context, userID int64) (bool, error) {
	exists, err := c.client.Exists(ctx, timelineKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check timeline exists: %w", err)
	}
	return exists > 0, nil
}

func (c *RedisTimelineCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, timelineKey(userID)).Err(); err != nil {
		log.Printf("[TimelineCache] Invalidate FAILED: user=%d err=%v", userID, err)
		return fmt.Errorf("invalidate timeline: %w", err)
	}
	log.Debugf("[TimelineCache] Invalidate OK: user=%d", userID)
	return nil
}

func (c *RedisTimelineCache) GetScore(ctx context.Context, userID, messageID int64) (int64, bool, error) {
	score, err := c.client.ZScore(ctx, timelineKey(userID), strconv.FormatInt(messageID, 10)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get score: %w", err)
	}
	return int64(score), true, nil
}

func (c *RedisTimelineCache) Size(ctx context.Context, userID int64) (int64, error) {
	size, err := c.client.ZCard(ctx, timelineKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get timeline size: %w", err)
	}
	return size, nil
}
