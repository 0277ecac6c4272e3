package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts hits per key in wall-clock windows shared by all
// API replicas.
type FixedWindowLimiter struct {
	client goredis.Cmdable
	prefix string
	window time.Duration
	now    func() time.Time
}

func NewFixedWindowLimiter(client goredis.Cmdable, prefix string, window time.Duration) *FixedWindowLimiter {
	if prefix == "" {
		prefix = "rate"
	}
	if window < time.Second {
		window = time.Minute
	}
	return &FixedWindowLimiter{
		client: client,
		prefix: prefix,
		window: window,
		now:    time.Now,
	}
}

// Incr bumps the counter for key in the current window and returns it.
func (l *FixedWindowLimiter) Incr(ctx context.Context, key string) (int64, error) {
	redisKey := l.windowKey(key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}

	// The bucket is part of the key; the TTL only reclaims memory.
	if count == 1 {
		_ = l.client.Expire(ctx, redisKey, 2*l.window).Err()
	}
	return count, nil
}

func (l *FixedWindowLimiter) windowKey(key string) string {
	if key == "" {
		key = "unknown"
	}
	bucket := l.now().UTC().Unix() / int64(l.window/time.Second)
	return l.prefix + ":" + key + ":" + strconv.FormatInt(bucket, 10)
}
