package biz

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// ProgressLogger 记录一组要素的处理速度与剩余时间。
type ProgressLogger struct {
	mu       sync.Mutex
	name     string
	total    int
	done     int
	initial  int
	interval time.Duration
	start    time.Time
	next     time.Time
	log      *log.Helper
}

func NewProgressLogger(name string, total int, settings *Settings, logger *log.Helper) *ProgressLogger {
	now := time.Now()
	return &ProgressLogger{
		name:     name,
		total:    total,
		initial:  settings.ProgressInitial,
		interval: settings.ProgressInterval,
		start:    now,
		next:     now,
		log:      logger,
	}
}

// Add 记录完成数量，到达日志时间点时输出速度与预计剩余时间。
func (pl *ProgressLogger) Add(n int) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.done += n
	if pl.done < pl.initial {
		return
	}
	now := time.Now()
	if now.Before(pl.next) {
		return
	}
	pl.next = now.Add(pl.interval)
	rate := pl.rate(now)
	eta := time.Duration(0)
	if rate > 0 {
		eta = time.Duration(float64(pl.total-pl.done)/rate) * time.Second
	}
	pl.log.Infof("%s: done %d in %s @ %.3f per second - ETA %s", pl.name, pl.done, now.Sub(pl.start).Round(time.Second), rate, eta.Round(time.Second))
}

// Done 输出汇总并返回完成数量。
func (pl *ProgressLogger) Done() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.done > 0 {
		pl.log.Infof("%s: done %d/%d in %s @ %.3f per second", pl.name, pl.done, pl.total, time.Since(pl.start).Round(time.Millisecond), pl.rate(time.Now()))
	}
	return pl.done
}

func (pl *ProgressLogger) rate(now time.Time) float64 {
	elapsed := now.Sub(pl.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(pl.done) / elapsed
}
