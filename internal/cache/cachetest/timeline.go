// Package cachetest provides an in-memory cache.TimelineCache for tests.
package cachetest

import (
	"context"
	"sort"
	"sync"

	"warbler/internal/cache"
)

// TimelineCache keeps timelines in maps. It mirrors the Redis implementation:
// AddMessage only touches timelines that already exist.
type TimelineCache struct {
	mu        sync.Mutex
	timelines map[int64]map[int64]int64 // user -> message -> score

	// Err, when set, is returned by every method.
	Err error
}

var _ cache.TimelineCache = (*TimelineCache)(nil)

func New() *TimelineCache {
	return &TimelineCache{timelines: make(map[int64]map[int64]int64)}
}

func (c *TimelineCache) AddMessage(ctx context.Context, userID, messageID int64, timestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if tl, ok := c.timelines[userID]; ok {
		tl[messageID] = timestamp
	}
	return nil
}

func (c *TimelineCache) RemoveMessage(ctx context.Context, userID, messageID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	delete(c.timelines[userID], messageID)
	return nil
}

func (c *TimelineCache) GetTimeline(ctx context.Context, userID int64, limit int) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}

	tl := c.timelines[userID]
	ids := make([]int64, 0, len(tl))
	for id := range tl {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if tl[ids[i]] != tl[ids[j]] {
			return tl[ids[i]] > tl[ids[j]]
		}
		return ids[i] > ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (c *TimelineCache) WarmCache(ctx context.Context, userID int64, messages []cache.MessageScore) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	if len(messages) == 0 {
		return nil
	}
	tl, ok := c.timelines[userID]
	if !ok {
		tl = make(map[int64]int64)
		c.timelines[userID] = tl
	}
	for _, m := range messages {
		tl[m.MessageID] = m.Timestamp
	}
	return nil
}

func (c *TimelineCache) Exists(ctx context.Context, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	_, ok := c.timelines[userID]
	return ok, nil
}

func (c *TimelineCache) Invalidate(ctx context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	delete(c.timelines, userID)
	return nil
}

func (c *TimelineCache) GetScore(ctx context.Context, userID, messageID int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, false, c.Err
	}
	score, ok := c.timelines[userID][messageID]
	return score, ok, nil
}

func (c *TimelineCache) Size(ctx context.Context, userID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return int64(len(c.timelines[userID])), nil
}
