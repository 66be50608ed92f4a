package data

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewEventQueue 按配置选择内存或 redis 事件队列。
func NewEventQueue(c *conf.Indexer, rc *conf.Data, d *Data, logger log.Logger) (biz.EventQueue, error) {
	switch c.EventQueue {
	case "", "memory":
		return NewMemoryEventQueue(), nil
	case "redis":
		if d.rdb == nil {
			return nil, errors.New("event_queue redis requires data.redis.addr")
		}
		return NewRedisEventQueue(d.rdb, rc.Redis.QueueKey, logger), nil
	}
	return nil, errors.New("unknown event_queue " + c.EventQueue)
}

// memoryEventQueue 进程内队列，同一要素未取出前只保留一个事件。
type memoryEventQueue struct {
	mu      sync.Mutex
	pending []biz.ReindexEvent
	queued  map[int64]struct{}
}

func NewMemoryEventQueue() biz.EventQueue {
	return &memoryEventQueue{queued: map[int64]struct{}{}}
}

func (q *memoryEventQueue) Publish(_ context.Context, events ...biz.ReindexEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range events {
		if _, ok := q.queued[e.PlaceID]; ok {
			continue
		}
		q.queued[e.PlaceID] = struct{}{}
		q.pending = append(q.pending, e)
	}
	return nil
}

func (q *memoryEventQueue) Drain(_ context.Context, max int) ([]biz.ReindexEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if max > 0 && max < n {
		n = max
	}
	out := make([]biz.ReindexEvent, n)
	copy(out, q.pending[:n])
	q.pending = q.pending[n:]
	for _, e := range out {
		delete(q.queued, e.PlaceID)
	}
	return out, nil
}

func (q *memoryEventQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

// redisEventQueue 多个索引进程共享的队列：集合去重，列表保序。
type redisEventQueue struct {
	rdb  *redis.Client
	list string
	set  string
	log  *log.Helper
}

func NewRedisEventQueue(rdb *redis.Client, key string, logger log.Logger) biz.EventQueue {
	return &redisEventQueue{rdb: rdb, list: key + ":events", set: key + ":queued", log: log.NewHelper(logger)}
}

func (q *redisEventQueue) Publish(ctx context.Context, events ...biz.ReindexEvent) error {
	for _, e := range events {
		added, err := q.rdb.SAdd(ctx, q.set, strconv.FormatInt(e.PlaceID, 10)).Result()
		if err != nil {
			return err
		}
		if added == 0 {
			continue
		}
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := q.rdb.LPush(ctx, q.list, b).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (q *redisEventQueue) Drain(ctx context.Context, max int) ([]biz.ReindexEvent, error) {
	var out []biz.ReindexEvent
	for max <= 0 || len(out) < max {
		raw, err := q.rdb.RPop(ctx, q.list).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, err
		}
		var e biz.ReindexEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			q.log.WithContext(ctx).Warnf("drop malformed reindex event %q: %v", raw, err)
			continue
		}
		if err := q.rdb.SRem(ctx, q.set, strconv.FormatInt(e.PlaceID, 10)).Err(); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (q *redisEventQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.list).Result()
}
