// Package cache builds the Redis client shared by the role cache and rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client. An unreachable server is reported but the client
// is still returned so callers can degrade instead of failing start-up.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Health adapts a client to the readiness probe.
type Health struct {
	Client *redis.Client
}

// Ping reports whether Redis answers.
func (h Health) Ping(ctx context.Context) error {
	return h.Client.Ping(ctx).Err()
}
