package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is the counter-with-TTL backend for high request
// volumes. One counter per key per window bucket; INCR is the
// serialization point, so racing instances cannot double-admit past
// the threshold. Unlike SQLLimiter it admits-and-counts in the same
// step, which makes Record a no-op.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, keyID string, limit int) (Decision, error) {
	bucket := time.Now().Unix() / int64(l.window.Seconds())
	counterKey := fmt.Sprintf("ratelimit:%s:%d", keyID, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	return Decision{Allowed: count <= limit, Count: count, Limit: limit}, nil
}

func (l *RedisLimiter) Record(ctx context.Context, keyID string) error {
	// Allow already incremented the counter.
	return nil
}
