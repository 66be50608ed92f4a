package server

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

// 令牌桶，容量为两秒的配额
type tokenBucket struct {
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rps float64) *tokenBucket {
	return &tokenBucket{
		rate:       rps,
		capacity:   rps * 2,
		tokens:     rps * 2,
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.lastRefill).Seconds()*b.rate)
	b.lastRefill = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// writeLimiter 只限制指定的操作，rps 不大于 0 时不限制。
func writeLimiter(rps float64, operations map[string]bool) middleware.Middleware {
	if rps <= 0 {
		return func(next middleware.Handler) middleware.Handler { return next }
	}
	b := newTokenBucket(rps)
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if tr, ok := transport.FromServerContext(ctx); ok && operations[tr.Operation()] {
				if !b.allow(time.Now()) {
					return nil, errors.New(429, "RATE_LIMIT", "write rate limit exceeded")
				}
			}
			return next(ctx, req)
		}
	}
}
