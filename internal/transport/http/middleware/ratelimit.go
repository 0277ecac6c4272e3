package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/constants"
	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	redisStorage "github.com/IgorGrieder/minimizurl/internal/storage/redis"
	"github.com/IgorGrieder/minimizurl/pkg/httputils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterTimeout = 200 * time.Millisecond

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter enforces a per-minute budget shared by every API replica.
type RedisLimiter struct {
	store *redisStorage.FixedWindowLimiter
	limit int64
}

func NewRedisLimiter(store *redisStorage.FixedWindowLimiter, limitPerMinute int) *RedisLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	return &RedisLimiter{store: store, limit: int64(limitPerMinute)}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return true, err
	}
	return count <= l.limit, nil
}

// LocalLimiter keeps a token bucket per key in process memory. Buckets idle
// for longer than idleTTL are dropped on the next sweep.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(limitPerMinute int) *LocalLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(limitPerMinute) / 60.0),
		burst:   limitPerMinute,
		idleTTL: 3 * time.Minute,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func (l *LocalLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit rejects callers over budget with 429. Signed-in callers are
// keyed by owner, guests by client IP. Limiter errors let the request
// through.
func RateLimit(limiter Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limiterTimeout)
			defer cancel()

			allowed, err := limiter.Allow(ctx, rateLimitKey(r))
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				httputils.WriteAPIError(w, r, constants.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if owner := OwnerFromContext(r.Context()); !owner.IsGuest() {
		return "owner:" + owner.ID
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first X-Forwarded-For hop, then the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
