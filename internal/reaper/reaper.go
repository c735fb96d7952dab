// Package reaper runs the cooperative background sweep that evicts
// TTL-expired records the engine hasn't already found lazily on read.
// It knows nothing about the store's internals; the engine supplies a
// bounded sweep function and the reaper just calls it on a schedule.
package reaper

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MaxSweepKeys bounds how many expired keys a single sweep will
// remove, so one reaper tick can't block the write lease for an
// unbounded amount of time on a store with a large expired backlog.
const MaxSweepKeys = 1024

// Reaper periodically calls sweep, which should remove up to
// MaxSweepKeys expired records and report how many it removed.
type Reaper struct {
	interval time.Duration
	sweep    func(maxKeys int) (removed int)
	logger   *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup

	sweeps  uint64
	removed uint64
}

// Start launches the background sweep goroutine at the given
// interval. Callers must call Stop to release it.
func Start(interval time.Duration, sweep func(maxKeys int) (removed int), logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reaper{
		interval: interval,
		sweep:    sweep,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Reaper) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick()
		case <-r.stopChan:
			return
		}
	}
}

func (r *Reaper) tick() {
	removed := r.sweep(MaxSweepKeys)
	atomic.AddUint64(&r.sweeps, 1)
	if removed > 0 {
		atomic.AddUint64(&r.removed, uint64(removed))
		r.logger.Debug("ttl reaper swept expired records", zap.Int("removed", removed))
	}
}

// Stats reports the reaper's running counters.
type Stats struct {
	Sweeps  uint64
	Removed uint64
}

func (r *Reaper) Stats() Stats {
	return Stats{
		Sweeps:  atomic.LoadUint64(&r.sweeps),
		Removed: atomic.LoadUint64(&r.removed),
	}
}

// Stop halts the background goroutine and waits for it to exit.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	r.wg.Wait()
}
