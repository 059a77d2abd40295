package redisad

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewClient opens a client; Cache and Lease share it.
func NewClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// Ping reports whether redis is reachable; used by health checks.
func Ping(ctx context.Context, c *redis.Client) error {
	return c.Ping(ctx).Err()
}
