package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Publisher appends timeline events to a stream.
type Publisher interface {
	// Publish returns the entry id Redis assigned to the event.
	Publish(ctx context.Context, stream string, event TimelineEvent) (string, error)
}

type RedisPublisher struct {
	client *redis.Client
	// maxLen caps the stream length; zero keeps every entry.
	maxLen int64
}

// NewPublisher returns a publisher that trims the stream to roughly StreamMaxLen entries.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client, maxLen: StreamMaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event TimelineEvent) (string, error) {
	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	args := &redis.XAddArgs{Stream: stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}

	log.WithFields(log.Fields{"stream": stream, "type": event.Type, "stream_id": id}).Debug("[Publisher] Event published")
	return id, nil
}
