package biz

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

// RunStats 一次调度运行的统计。
type RunStats struct {
	Indexed    int
	Suppressed int
	Dropped    int
	Deleted    int
	Failed     int
	Raised     int64
}

func (s RunStats) String() string {
	return fmt.Sprintf("indexed=%d suppressed=%d dropped=%d deleted=%d failed=%d raised=%d",
		s.Indexed, s.Suppressed, s.Dropped, s.Deleted, s.Failed, s.Raised)
}

// Scheduler 按 rank_search 升序分组处理待索引要素，组内并行。
type Scheduler struct {
	uc       *IndexUsecase
	places   PlaceRepo
	events   EventQueue
	settings *Settings
	log      *log.Helper
}

func NewScheduler(uc *IndexUsecase, places PlaceRepo, events EventQueue, settings *Settings, logger log.Logger) *Scheduler {
	return &Scheduler{
		uc:       uc,
		places:   places,
		events:   events,
		settings: settings,
		log:      log.NewHelper(logger),
	}
}

// Run 处理直到没有待处理要素。单个要素失败只记录日志，保持待处理状态并在本次运行中跳过。
func (s *Scheduler) Run(ctx context.Context) (RunStats, error) {
	var (
		stats  RunStats
		failed = map[int64]struct{}{}
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		raised, err := s.applyEvents(ctx)
		if err != nil {
			return stats, err
		}
		stats.Raised += raised

		deletes, err := s.places.ListPendingDeletes(ctx)
		if err != nil {
			return stats, err
		}
		if ids := without(deletes, failed); len(ids) > 0 {
			if err := s.runGroup(ctx, "delete", ids, &stats, failed); err != nil {
				return stats, err
			}
			continue
		}

		ids, rank, err := s.nextGroup(ctx, failed)
		if err != nil {
			return stats, err
		}
		if len(ids) == 0 {
			n, err := s.events.Len(ctx)
			if err != nil {
				return stats, err
			}
			if n == 0 {
				return stats, nil
			}
			continue
		}
		if err := s.runGroup(ctx, fmt.Sprintf("rank %d", rank), ids, &stats, failed); err != nil {
			return stats, err
		}
	}
}

// nextGroup 最小 rank_search 的待处理要素。
func (s *Scheduler) nextGroup(ctx context.Context, failed map[int64]struct{}) ([]int64, int, error) {
	ranks, err := s.places.PendingRanks(ctx)
	if err != nil {
		return nil, 0, err
	}
	for _, rank := range ranks {
		ids, err := s.places.ListPending(ctx, rank)
		if err != nil {
			return nil, 0, err
		}
		if ids = without(ids, failed); len(ids) > 0 {
			return ids, rank, nil
		}
	}
	return nil, 0, nil
}

func (s *Scheduler) runGroup(ctx context.Context, name string, ids []int64, stats *RunStats, failed map[int64]struct{}) error {
	progress := NewProgressLogger(name, len(ids), s.settings, s.log)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.settings.Threads, 1))
	for _, id := range ids {
		g.Go(func() error {
			outcome, err := s.uc.IndexPlace(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if IsStatusChanged(err) {
					s.log.WithContext(gctx).Debugf("place %d changed while indexing, retrying later", id)
					return nil
				}
				s.log.WithContext(gctx).Errorf("index place %d: %v", id, err)
				failed[id] = struct{}{}
				stats.Failed++
				return nil
			}
			switch outcome {
			case OutcomeIndexed:
				stats.Indexed++
			case OutcomeSuppressed:
				stats.Suppressed++
			case OutcomeDropped:
				stats.Dropped++
			case OutcomeDeleted:
				stats.Deleted++
			}
			progress.Add(1)
			return nil
		})
	}
	err := g.Wait()
	progress.Done()
	if err != nil {
		return err
	}
	raised, err := s.applyEvents(ctx)
	stats.Raised += raised
	return err
}

// applyEvents 应用队列中的事件，包括针对本组正在处理的要素的标记。
func (s *Scheduler) applyEvents(ctx context.Context) (int64, error) {
	events, err := s.events.Drain(ctx, 0)
	if err != nil || len(events) == 0 {
		return 0, err
	}
	return s.places.RaiseReindex(ctx, EventIDs(events))
}

func without(ids []int64, skip map[int64]struct{}) []int64 {
	if len(skip) == 0 {
		return ids
	}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
