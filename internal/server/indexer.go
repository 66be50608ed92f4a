package server

import (
	"context"
	"sync"

	"nominatim-indexer/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

var _ transport.Server = (*IndexerServer)(nil)

// IndexerServer 以 kratos 服务的方式运行索引循环。
type IndexerServer struct {
	svc    *service.IndexerService
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	log    *log.Helper
}

func NewIndexerServer(svc *service.IndexerService, logger log.Logger) *IndexerServer {
	return &IndexerServer{svc: svc, done: make(chan struct{}), log: log.NewHelper(logger)}
}

func (s *IndexerServer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer close(s.done)
	s.log.Info("[Indexer] server starting")
	return s.svc.Serve(ctx)
}

func (s *IndexerServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("[Indexer] server stopped")
	return nil
}
