package aol

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// RewriteScheduler periodically asks shouldRewrite whether the log is
// due for compaction and, if so, runs doRewrite. Both are supplied by
// the engine so this package stays free of any dependency on the
// store or the engine's locking.
type RewriteScheduler struct {
	interval      time.Duration
	shouldRewrite func() bool
	doRewrite     func() (newSize int64, err error)
	logger        *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup

	rewriteCount   uint64
	rewriteErrors  uint64
	bytesAfterLast int64
}

// NewRewriteScheduler starts a background goroutine that checks every
// interval whether a rewrite is due.
func NewRewriteScheduler(interval time.Duration, shouldRewrite func() bool, doRewrite func() (int64, error), logger *zap.Logger) *RewriteScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RewriteScheduler{
		interval:      interval,
		shouldRewrite: shouldRewrite,
		doRewrite:     doRewrite,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *RewriteScheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maybeRewrite()
		case <-s.stopChan:
			return
		}
	}
}

func (s *RewriteScheduler) maybeRewrite() {
	if !s.shouldRewrite() {
		return
	}
	size, err := s.doRewrite()
	if err != nil {
		atomic.AddUint64(&s.rewriteErrors, 1)
		s.logger.Error("aol rewrite failed", zap.Error(err))
		return
	}
	atomic.AddUint64(&s.rewriteCount, 1)
	atomic.StoreInt64(&s.bytesAfterLast, size)
	s.logger.Info("aol rewrite completed", zap.Int64("new_size_bytes", size))
}

// Stats reports the scheduler's running counters.
type Stats struct {
	RewriteCount   uint64
	RewriteErrors  uint64
	BytesAfterLast int64
}

func (s *RewriteScheduler) Stats() Stats {
	return Stats{
		RewriteCount:   atomic.LoadUint64(&s.rewriteCount),
		RewriteErrors:  atomic.LoadUint64(&s.rewriteErrors),
		BytesAfterLast: atomic.LoadInt64(&s.bytesAfterLast),
	}
}

// Stop halts the background goroutine and waits for it to exit.
func (s *RewriteScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
