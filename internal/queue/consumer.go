package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	newEntries     = ">" // entries never delivered to any consumer of the group
	pendingEntries = "0" // this consumer's delivered but unacknowledged entries
)

// Message is a decoded stream entry. ID is the Redis entry id, e.g. "1702000000000-0".
// Err is set when the entry's fields do not form a valid event; such a message
// carries no Event but must still be acknowledged to leave the pending list.
type Message struct {
	ID    string
	Event TimelineEvent
	Err   error
}

// Consumer reads timeline events through a Redis consumer group.
type Consumer interface {
	// EnsureGroup creates the group, and the stream with it, when missing.
	EnsureGroup(ctx context.Context, stream, group string) error
	// Read blocks up to block for entries not yet delivered to the group.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)
	// ReadPending returns entries delivered to consumer that were never acknowledged.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error
	// Pending counts the group's unacknowledged entries.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

type RedisConsumer struct {
	client *redis.Client
}

func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client}
}

func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.readGroup(ctx, stream, group, consumer, newEntries, count, block)
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	// A negative block omits BLOCK so the pending list is returned immediately.
	return c.readGroup(ctx, stream, group, consumer, pendingEntries, count, -1)
}

func (c *RedisConsumer) readGroup(ctx context.Context, stream, group, consumer, start string, count int64, block time.Duration) ([]Message, error) {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s from %s: %w", stream, start, err)
	}

	var messages []Message
	for _, s := range result {
		messages = append(messages, decodeEntries(s.Messages)...)
	}
	return messages, nil
}

// decodeEntries keeps malformed entries with Err set so the caller can ack them.
func decodeEntries(entries []redis.XMessage) []Message {
	messages := make([]Message, 0, len(entries))
	for _, entry := range entries {
		event, err := ParseTimelineEvent(entry.Values)
		if err != nil {
			log.WithField("stream_id", entry.ID).WithError(err).Warn("[Consumer] Malformed entry")
			messages = append(messages, Message{ID: entry.ID, Err: err})
			continue
		}
		messages = append(messages, Message{ID: entry.ID, Event: event})
	}
	return messages
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack %v: %w", messageIDs, err)
	}
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	summary, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return summary.Count, nil
}
