package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/conf"
	"nominatim-indexer/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// IndexerService 驱动调度循环：启动时重建空间索引，之后处理待索引要素，空闲时等待唤醒或轮询。
type IndexerService struct {
	scheduler *biz.Scheduler
	index     *biz.IndexUsecase
	places    *biz.PlaceUsecase
	interval  time.Duration
	kick      chan struct{}
	mu        sync.Mutex
	prepared  bool
	log       *log.Helper
}

func NewIndexerService(c *conf.Indexer, scheduler *biz.Scheduler, index *biz.IndexUsecase, places *biz.PlaceUsecase, logger log.Logger) *IndexerService {
	return &IndexerService{
		scheduler: scheduler,
		index:     index,
		places:    places,
		interval:  c.PollInterval.AsDuration(),
		kick:      make(chan struct{}, 1),
		log:       log.NewHelper(logger),
	}
}

// Trigger 唤醒索引循环，不阻塞。
func (s *IndexerService) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Prepare 从已索引数据重建空间索引，成功后不再重复。
func (s *IndexerService) Prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prepared {
		return nil
	}
	n, err := s.index.RebuildLocators(ctx)
	if err != nil {
		return err
	}
	s.prepared = true
	s.log.WithContext(ctx).Infof("locators rebuilt from %d places", n)
	return nil
}

// RunOnce 处理直到没有待处理要素。
func (s *IndexerService) RunOnce(ctx context.Context) (biz.RunStats, error) {
	if err := s.Prepare(ctx); err != nil {
		return biz.RunStats{}, err
	}
	start := time.Now()
	stats, err := s.scheduler.Run(ctx)
	if stats != (biz.RunStats{}) {
		s.log.WithContext(ctx).Infof("index run finished in %s: %s", time.Since(start).Round(time.Millisecond), stats)
	}
	if counts, cerr := s.places.Status(ctx); cerr == nil {
		metrics.SetStatusCounts(counts)
	}
	return stats, err
}

// Serve 循环运行直到 ctx 结束。
func (s *IndexerService) Serve(ctx context.Context) error {
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			s.log.WithContext(ctx).Errorf("index run: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.kick:
		case <-time.After(s.interval):
		}
	}
}
