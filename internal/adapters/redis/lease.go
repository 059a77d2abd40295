package redisad

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock with a TTL, so a crashed holder cannot block forever.
type Lease struct {
	c      *redis.Client
	prefix string
}

var _ domain.Locker = (*Lease)(nil)

func NewLease(c *redis.Client) *Lease { return &Lease{c: c, prefix: "lease:"} }

func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	k := l.prefix + key
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, k, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.c, []string{k}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("lease release failed")
		}
	}
	return release, true, nil
}
