package data

import (
	"context"
	"time"

	"nominatim-indexer/internal/metrics"

	"github.com/fatih/color"
)

type beginKey struct{}

// Hooks 记录慢查询。
type Hooks struct {
	slow time.Duration
}

func NewHooks(slow time.Duration) *Hooks {
	if slow <= 0 {
		slow = 500 * time.Millisecond
	}
	return &Hooks{slow: slow}
}

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, ok := ctx.Value(beginKey{}).(time.Time)
	if !ok {
		return ctx, nil
	}
	d := time.Since(begin)
	metrics.SQLDuration.Observe(d.Seconds())
	if d > h.slow {
		metrics.SlowQueries.Inc()
		color.Red("%v slow  sql: %s %q .took: %s\n", time.Now().Format(time.RFC3339), query, args, d)
	}
	return ctx, nil
}
