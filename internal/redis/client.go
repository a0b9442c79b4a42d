package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const pingTimeout = 5 * time.Second

// Client is the single shared Redis client behind the timeline cache and event stream.
type Client struct {
	*redis.Client
}

// Connect parses a redis:// URL, opens a client and pings it so startup fails fast.
// Example: redis://:password@localhost:6379/0
func Connect(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := &Client{Client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[Redis] Connected to %s (db=%d)", opts.Addr, opts.DB)
	return client, nil
}
