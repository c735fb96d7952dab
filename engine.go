package spatiodb

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spatiodb/spatiodb/internal/aol"
	"github.com/spatiodb/spatiodb/internal/metrics"
	"github.com/spatiodb/spatiodb/internal/reaper"
	"github.com/spatiodb/spatiodb/internal/spatial"
	"github.com/spatiodb/spatiodb/internal/store"
	"github.com/spatiodb/spatiodb/internal/trajectory"
)

// Engine is the embedded spatio-temporal key/value store. One Engine
// owns its in-memory store, its geohash spatial index, and (when
// opened with a Path) its log file and background workers. Every
// exported method is safe to call concurrently: readers take a
// shared lock, and each write takes the engine's single exclusive
// write lease.
type Engine struct {
	cfg     Config
	mu      sync.RWMutex
	store   *store.Store
	index   *spatial.Index
	metrics *metrics.Metrics
	logger  *zap.Logger

	aolWriter    *aol.Writer
	rewriteSched *aol.RewriteScheduler
	reaper       *reaper.Reaper

	lockFile *os.File
	lockPath string

	tick   atomic.Uint64
	closed atomic.Bool
}

// Open creates or reopens an engine with the given configuration. If
// cfg.Path is set and a log already exists there, it is replayed
// before Open returns so the engine comes up with its last durable
// state.
func Open(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		store:   store.New(),
		index:   spatial.New(cfg.GeohashPrecision),
		metrics: metrics.New(),
		logger:  cfg.Logger,
	}

	if cfg.Path != "" {
		if err := e.acquireLock(cfg.Path); err != nil {
			return nil, err
		}
		if err := e.openLog(cfg.Path); err != nil {
			e.releaseLock()
			return nil, err
		}
		e.rewriteSched = aol.NewRewriteScheduler(time.Second, e.shouldRewrite, e.doRewrite, e.logger)
	}

	e.reaper = reaper.Start(time.Duration(cfg.TTLReapIntervalMS)*time.Millisecond, e.sweepExpired, e.logger)

	e.logger.Info("engine opened",
		zap.String("path", cfg.Path),
		zap.Int("geohash_precision", cfg.GeohashPrecision),
		zap.Int("keys", e.store.Len()))

	return e, nil
}

func (e *Engine) openLog(path string) error {
	validBytes, err := aol.Replay(path, func(entry aol.Entry) error {
		switch entry.Type {
		case aol.EntryPut:
			rec, derr := aol.DecodePut(entry.Payload)
			if derr != nil {
				return corruptErr("decode put entry during replay", entry.Offset, derr)
			}
			e.applyPutLocked(rec)
		case aol.EntryDelete:
			key, derr := aol.DecodeDelete(entry.Payload)
			if derr != nil {
				return corruptErr("decode delete entry during replay", entry.Offset, derr)
			}
			e.applyDeleteLocked(key)
		}
		return nil
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return se
		}
		var pe *os.PathError
		if errors.As(err, &pe) {
			return ioErr("replay log", err)
		}
		return corruptErr("replay log header", 0, err)
	}
	if info, serr := os.Stat(path); serr == nil && validBytes > 0 && info.Size() > validBytes {
		e.logger.Warn("truncating unreadable log tail",
			zap.Int64("valid_bytes", validBytes), zap.Int64("file_bytes", info.Size()))
		if err := os.Truncate(path, validBytes); err != nil {
			return ioErr("truncate log tail", err)
		}
	}

	w, err := aol.Create(path)
	if err != nil {
		return ioErr("open log", err)
	}
	e.aolWriter = w
	return nil
}

func (e *Engine) acquireLock(path string) error {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return alreadyOpenErr(path)
		}
		return ioErr("acquire lock file", err)
	}
	e.lockFile = f
	e.lockPath = lockPath
	return nil
}

func (e *Engine) releaseLock() {
	if e.lockFile == nil {
		return
	}
	e.lockFile.Close()
	os.Remove(e.lockPath)
	e.lockFile = nil
}

func (e *Engine) nextTick() uint64 {
	return e.tick.Add(1)
}

func expiresAtNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func toPublicRecord(r store.Record) Record {
	rec := Record{Value: r.Value, CreatedAt: r.CreatedAt}
	if r.ExpiresAtUnixNano != 0 {
		rec.ExpiresAt = time.Unix(0, r.ExpiresAtUnixNano)
	}
	if r.HasPoint {
		p := Point{Lat: r.Lat, Lon: r.Lon}
		rec.Point = &p
	}
	return rec
}

// applyPutLocked and applyDeleteLocked mutate the store and spatial
// index directly, with no AOL append of their own. They are used both
// by replay (which reads already-durable frames) and by the
// post-append step of every live write, so the name refers to the
// caller's obligation to hold e.mu, not to anything this method does
// itself.
func (e *Engine) applyPutLocked(rec aol.PutRecord) {
	sr := store.Record{
		Value:             rec.Value,
		ExpiresAtUnixNano: rec.ExpiresAtUnixNano,
		HasPoint:          rec.HasPoint,
		Lat:               rec.Lat,
		Lon:               rec.Lon,
		CreatedAt:         e.nextTick(),
	}
	e.store.Put(rec.Key, sr)
	if rec.HasPoint {
		e.index.Put(string(rec.Key), rec.Lat, rec.Lon)
	} else {
		e.index.Remove(string(rec.Key))
	}
	e.updateSizeGaugesLocked()
}

func (e *Engine) applyDeleteLocked(key []byte) {
	e.store.Delete(key)
	e.index.Remove(string(key))
	e.updateSizeGaugesLocked()
}

func (e *Engine) updateSizeGaugesLocked() {
	e.metrics.KeysTotal.Set(float64(e.store.Len()))
	e.metrics.PointsTotal.Set(float64(e.index.Len()))
}

func (e *Engine) appendPut(rec aol.PutRecord) error {
	if e.aolWriter != nil {
		payload := aol.EncodePut(rec)
		if _, err := e.aolWriter.Append(aol.EntryPut, payload); err != nil {
			return ioErr("append put", err)
		}
		// u32 length + u8 type + payload + u32 crc, as framed by Append.
		e.metrics.AOLBytesWritten.Add(float64(4 + 1 + len(payload) + 4))
		if e.cfg.SyncPolicy == SyncAlways {
			if err := e.aolWriter.Sync(); err != nil {
				return ioErr("sync after put", err)
			}
		}
	}
	e.applyPutLocked(rec)
	return nil
}

func (e *Engine) appendDelete(key []byte) error {
	if e.aolWriter != nil {
		if _, err := e.aolWriter.Append(aol.EntryDelete, aol.EncodeDelete(key)); err != nil {
			return ioErr("append delete", err)
		}
		if e.cfg.SyncPolicy == SyncAlways {
			if err := e.aolWriter.Sync(); err != nil {
				return ioErr("sync after delete", err)
			}
		}
	}
	e.applyDeleteLocked(key)
	return nil
}

// pointLookupFor returns the spatial.PointLookup backing a query scoped
// to ns: it resolves a candidate key from the (namespace-agnostic)
// geohash index back to coordinates only if the key actually belongs
// to ns and is still a live point. The index itself holds keys from
// every namespace, so this per-query filter is what makes
// "point_of(k) is in ns" hold for radius/bbox/k-NN results.
func (e *Engine) pointLookupFor(ns namespace) spatial.PointLookup {
	prefix := ns.prefix()
	return func(key string) (lat, lon float64, ok bool) {
		if !bytesHasPrefix([]byte(key), prefix) {
			return 0, 0, false
		}
		rec, found := e.store.Get([]byte(key))
		if !found || !rec.HasPoint || rec.Expired(time.Now().UnixNano()) {
			return 0, 0, false
		}
		return rec.Lat, rec.Lon, true
	}
}

func bytesHasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

// Insert stores value under key, replacing any prior record.
func (e *Engine) Insert(key, value []byte, opts InsertOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	expiresAt := opts.resolve(time.Now(), e.cfg.DefaultTTL)
	rec := aol.PutRecord{Key: key, Value: value, ExpiresAtUnixNano: expiresAtNano(expiresAt)}
	if err := e.appendPut(rec); err != nil {
		return err
	}
	e.metrics.InsertsTotal.Inc()
	return nil
}

// Get returns the live record stored at key. A record whose TTL has
// passed is treated as absent and is removed (lazy expiry) before Get
// returns.
func (e *Engine) Get(key []byte) (Record, bool, error) {
	if err := validateKey(key); err != nil {
		return Record{}, false, err
	}
	if e.closed.Load() {
		return Record{}, false, ErrClosed
	}

	e.mu.RLock()
	rec, ok := e.store.Get(key)
	e.mu.RUnlock()
	e.metrics.GetsTotal.Inc()
	if !ok {
		return Record{}, false, nil
	}

	if rec.Expired(time.Now().UnixNano()) {
		e.mu.Lock()
		if err := e.appendDelete(key); err != nil {
			e.logger.Warn("lazy ttl expiry failed to persist delete", zap.Error(err))
		}
		e.mu.Unlock()
		return Record{}, false, nil
	}

	e.metrics.GetHitsTotal.Inc()
	return toPublicRecord(rec), true, nil
}

// Delete removes key, reporting whether it was present.
func (e *Engine) Delete(key []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if e.closed.Load() {
		return false, ErrClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, existed := e.store.Get(key); !existed {
		return false, nil
	}
	if err := e.appendDelete(key); err != nil {
		return false, err
	}
	e.metrics.DeletesTotal.Inc()
	return true, nil
}

// InsertPoint stores value under namespace ns and key together with a
// spatial point, indexing it for FindNearby/FindWithinBounds/
// FindKNearest queries scoped to ns. The composed key is
// ns || separator || key, per the namespaced key composition rule.
func (e *Engine) InsertPoint(ns string, key []byte, point Point, value []byte, opts InsertOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	if err := validatePoint(point); err != nil {
		return err
	}
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	composed := newNamespace(ns, e.cfg.NamespaceSeparator).key(key)
	expiresAt := opts.resolve(time.Now(), e.cfg.DefaultTTL)
	rec := aol.PutRecord{
		Key: composed, Value: value, ExpiresAtUnixNano: expiresAtNano(expiresAt),
		HasPoint: true, Lat: point.Lat, Lon: point.Lon,
	}
	if err := e.appendPut(rec); err != nil {
		return err
	}
	e.metrics.InsertsTotal.Inc()
	return nil
}

// FindNearby returns every point indexed under ns within radiusM
// metres of center, sorted by ascending distance. A limit of 0 returns
// every match; a positive limit truncates the sorted result.
func (e *Engine) FindNearby(ns string, center Point, radiusM float64, limit int) ([]Hit, error) {
	if err := validatePoint(center); err != nil {
		return nil, err
	}
	if radiusM < 0 {
		return nil, invalidBoundsErr("radius_m", "must not be negative")
	}
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	lookup := e.pointLookupFor(newNamespace(ns, e.cfg.NamespaceSeparator))
	candidates := spatial.Radius(e.index, lookup, center.Lat, center.Lon, radiusM, e.cfg.GeohashPrecision)
	e.metrics.RadiusQueriesTotal.Inc()
	e.metrics.QueryCandidates.Observe(float64(len(candidates)))

	out := e.hitsFromCandidates(candidates)
	return truncate(out, limit), nil
}

// CountWithinDistance is FindNearby(ns, center, radiusM, 0) without
// materialising the hits themselves.
func (e *Engine) CountWithinDistance(ns string, center Point, radiusM float64) (int, error) {
	hits, err := e.FindNearby(ns, center, radiusM, 0)
	if err != nil {
		return 0, err
	}
	return len(hits), nil
}

// ContainsPoint reports whether at least one point indexed under ns
// falls within radiusM metres of center.
func (e *Engine) ContainsPoint(ns string, center Point, radiusM float64) (bool, error) {
	count, err := e.CountWithinDistance(ns, center, radiusM)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindKNearest returns the k points indexed under ns nearest to
// center, sorted by ascending distance. It is the same multi-precision
// algorithm FindNearby uses, with the search widened by candidate
// count instead of bounded by a radius.
func (e *Engine) FindKNearest(ns string, center Point, k int) ([]Hit, error) {
	if err := validatePoint(center); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, invalidBoundsErr("k", "must be positive")
	}
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	lookup := e.pointLookupFor(newNamespace(ns, e.cfg.NamespaceSeparator))
	candidates := spatial.KNN(e.index, lookup, center.Lat, center.Lon, k, e.cfg.GeohashPrecision)
	e.metrics.KNNQueriesTotal.Inc()
	e.metrics.QueryCandidates.Observe(float64(len(candidates)))

	return e.hitsFromCandidates(candidates), nil
}

func (e *Engine) hitsFromCandidates(candidates []spatial.Hit) []Hit {
	out := make([]Hit, 0, len(candidates))
	now := time.Now().UnixNano()
	for _, c := range candidates {
		rec, ok := e.store.Get([]byte(c.Key))
		if !ok || rec.Expired(now) {
			continue
		}
		out = append(out, Hit{Point: Point{Lat: rec.Lat, Lon: rec.Lon}, Value: rec.Value, DistanceM: c.DistanceM})
	}
	return out
}

func truncate(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

// FindWithinBounds returns every point indexed under ns inside the
// closed rectangle [minLat, maxLat] x [minLon, maxLon]. Results are
// unordered; a positive limit truncates after filtering.
func (e *Engine) FindWithinBounds(ns string, minLat, minLon, maxLat, maxLon float64, limit int) ([]Hit, error) {
	if err := validateBounds(minLat, minLon, maxLat, maxLon); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	lookup := e.pointLookupFor(newNamespace(ns, e.cfg.NamespaceSeparator))
	keys := spatial.BoundingBox(e.index, lookup, minLat, minLon, maxLat, maxLon)
	e.metrics.BBoxQueriesTotal.Inc()
	e.metrics.QueryCandidates.Observe(float64(len(keys)))

	out := make([]Hit, 0, len(keys))
	now := time.Now().UnixNano()
	for _, k := range keys {
		rec, ok := e.store.Get([]byte(k))
		if !ok || rec.Expired(now) {
			continue
		}
		out = append(out, Hit{Point: Point{Lat: rec.Lat, Lon: rec.Lon}, Value: rec.Value})
	}
	return truncate(out, limit), nil
}

// IntersectsBounds reports whether at least one point indexed under
// ns falls within the given rectangle.
func (e *Engine) IntersectsBounds(ns string, minLat, minLon, maxLat, maxLon float64) (bool, error) {
	hits, err := e.FindWithinBounds(ns, minLat, minLon, maxLat, maxLon, 0)
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

// InsertTrajectory splits samples into one put intent per sample,
// keyed so a prefix-range scan over objectID recovers them in time
// order.
func (e *Engine) InsertTrajectory(objectID string, samples []Sample, opts InsertOptions) error {
	if objectID == "" {
		return invalidTrajectoryErr("object_id", "must not be empty")
	}
	if len(samples) == 0 {
		return invalidTrajectoryErr("samples", "must not be empty")
	}
	if err := validateTrajectorySamples(samples); err != nil {
		return err
	}
	for _, s := range samples {
		if err := validatePoint(s.Point); err != nil {
			return err
		}
	}
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	expNano := expiresAtNano(opts.resolve(time.Now(), e.cfg.DefaultTTL))

	for _, s := range samples {
		key := trajectory.EncodeKey(objectID, s.Timestamp)
		payload := trajectory.EncodePayload(s.Point.Lat, s.Point.Lon, s.Value)
		rec := aol.PutRecord{
			Key: key, Value: payload, ExpiresAtUnixNano: expNano,
			HasPoint: true, Lat: s.Point.Lat, Lon: s.Point.Lon,
		}
		if err := e.appendPut(rec); err != nil {
			return err
		}
	}
	e.metrics.TrajectoryInsertsTotal.Add(float64(len(samples)))
	return nil
}

// QueryTrajectory returns objectID's samples with timestamp in
// [fromTS, toTS], in time order.
func (e *Engine) QueryTrajectory(objectID string, fromTS, toTS uint64) ([]TrajectoryPoint, error) {
	if objectID == "" {
		return nil, invalidTrajectoryErr("object_id", "must not be empty")
	}
	if e.closed.Load() {
		return nil, ErrClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	from := trajectory.EncodeKey(objectID, fromTS)
	to := trajectory.EncodeKey(objectID, toTS)

	var out []TrajectoryPoint
	now := time.Now().UnixNano()
	e.store.RangeBetween(from, to, func(key []byte, rec store.Record) bool {
		if rec.Expired(now) {
			return true
		}
		_, ts, derr := trajectory.DecodeKey(key)
		if derr != nil {
			return true
		}
		lat, lon, value, derr := trajectory.DecodePayload(rec.Value)
		if derr != nil {
			return true
		}
		out = append(out, TrajectoryPoint{Point: Point{Lat: lat, Lon: lon}, Timestamp: ts, Value: value})
		return true
	})
	e.metrics.TrajectoryQueriesTotal.Inc()
	return out, nil
}

// DeleteTrajectory removes every sample stored for objectID, regardless
// of timestamp, and returns how many were removed. Unlike
// QueryTrajectory it has no time bound to derive a from/to range from,
// so it scans the object's whole key space via a prefix match instead.
func (e *Engine) DeleteTrajectory(objectID string) (int, error) {
	if objectID == "" {
		return 0, invalidTrajectoryErr("object_id", "must not be empty")
	}
	if e.closed.Load() {
		return 0, ErrClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prefix := trajectory.KeyPrefix(objectID)

	var keys [][]byte
	e.store.RangePrefix(prefix, func(key []byte, rec store.Record) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})

	for _, key := range keys {
		if err := e.appendDelete(key); err != nil {
			return 0, err
		}
	}
	e.metrics.DeletesTotal.Add(float64(len(keys)))
	return len(keys), nil
}

// Atomic runs fn with a Batch that stages writes and deletes; if fn
// returns nil, every staged intent becomes visible to other callers
// all at once (last write per key wins on intra-batch collisions). If
// fn returns an error, nothing staged in the batch takes effect.
func (e *Engine) Atomic(fn func(*Batch) error) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	b := newBatch(e)
	defer b.invalidate()

	if e.aolWriter != nil {
		if _, err := e.aolWriter.Append(aol.EntryBegin, nil); err != nil {
			return ioErr("append begin", err)
		}
	}

	if err := fn(b); err != nil {
		if e.aolWriter != nil {
			if _, aerr := e.aolWriter.Append(aol.EntryAbort, nil); aerr != nil {
				e.logger.Warn("failed to append abort frame", zap.Error(aerr))
			}
		}
		e.metrics.BatchAborts.Inc()
		return err
	}

	resolved := b.resolve()
	if e.aolWriter != nil {
		for _, intent := range resolved {
			var appendErr error
			if intent.isDelete {
				_, appendErr = e.aolWriter.Append(aol.EntryDelete, aol.EncodeDelete(intent.key))
			} else {
				_, appendErr = e.aolWriter.Append(aol.EntryPut, aol.EncodePut(intent.put))
			}
			if appendErr != nil {
				if _, aerr := e.aolWriter.Append(aol.EntryAbort, nil); aerr != nil {
					e.logger.Warn("failed to append abort frame after write failure", zap.Error(aerr))
				}
				return ioErr("append batch intent", appendErr)
			}
		}
		if _, err := e.aolWriter.Append(aol.EntryCommit, aol.EncodeCommit(len(resolved))); err != nil {
			return ioErr("append commit", err)
		}
		if e.cfg.SyncPolicy != SyncNever {
			if err := e.aolWriter.Sync(); err != nil {
				return ioErr("sync after commit", err)
			}
		}
	}

	for _, intent := range resolved {
		if intent.isDelete {
			e.applyDeleteLocked(intent.key)
		} else {
			e.applyPutLocked(intent.put)
		}
	}

	e.metrics.BatchesTotal.Inc()
	return nil
}

// Sync fsyncs the log, if one is configured. It is a no-op for a
// pure in-memory engine.
func (e *Engine) Sync() error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.aolWriter == nil {
		return nil
	}
	if err := e.aolWriter.Sync(); err != nil {
		return ioErr("sync", err)
	}
	return nil
}

// MetricsRegistry returns the private Prometheus registry this engine
// registers its collectors against. An embedding application scrapes
// it directly (for example via promhttp.HandlerFor) rather than the
// global default registry, so opening more than one engine in the
// same process never collides on collector names.
func (e *Engine) MetricsRegistry() *prometheus.Registry {
	return e.metrics.Registry
}

// Stats returns a diagnostics snapshot of the engine's current state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Stats{KeyCount: e.store.Len(), PointCount: e.index.Len()}
	if e.aolWriter != nil {
		if size, err := e.aolWriter.Size(); err == nil {
			stats.TotalBytes = size
		}
	}
	if e.rewriteSched != nil {
		stats.RewriteCount = e.rewriteSched.Stats().RewriteCount
	}
	stats.LiveBytes = e.estimateLiveBytesLocked()
	return stats
}

func (e *Engine) estimateLiveBytesLocked() int64 {
	var total int64
	now := time.Now().UnixNano()
	e.store.ForEach(func(key []byte, rec store.Record) bool {
		if rec.Expired(now) {
			return true
		}
		total += frameSize(key, rec)
		return true
	})
	return total
}

func frameSize(key []byte, rec store.Record) int64 {
	payload := aol.EncodePut(aol.PutRecord{
		Key: key, Value: rec.Value, ExpiresAtUnixNano: rec.ExpiresAtUnixNano,
		HasPoint: rec.HasPoint, Lat: rec.Lat, Lon: rec.Lon,
	})
	return int64(4 + 1 + len(payload) + 4)
}

func (e *Engine) shouldRewrite() bool {
	if e.aolWriter == nil || e.cfg.AutoRewriteThreshold <= 0 {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	totalBytes, err := e.aolWriter.Size()
	if err != nil {
		return false
	}
	liveBytes := e.estimateLiveBytesLocked()
	return aol.ShouldRewrite(liveBytes, totalBytes, e.cfg.AutoRewriteMinBytes, e.cfg.AutoRewriteThreshold)
}

func (e *Engine) doRewrite() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.aolWriter == nil {
		return 0, nil
	}
	if err := e.aolWriter.Close(); err != nil {
		e.metrics.AOLRewriteErrors.Inc()
		return 0, err
	}

	now := time.Now().UnixNano()
	newSize, err := aol.Rewrite(e.cfg.Path, func(yield func(aol.PutRecord) bool) {
		e.store.ForEach(func(key []byte, rec store.Record) bool {
			if rec.Expired(now) {
				return true
			}
			return yield(aol.PutRecord{
				Key: key, Value: rec.Value, ExpiresAtUnixNano: rec.ExpiresAtUnixNano,
				HasPoint: rec.HasPoint, Lat: rec.Lat, Lon: rec.Lon,
			})
		})
	})

	if err != nil {
		e.metrics.AOLRewriteErrors.Inc()
		if w, rerr := aol.Create(e.cfg.Path); rerr == nil {
			e.aolWriter = w
		}
		return 0, err
	}

	w, err := aol.Create(e.cfg.Path)
	if err != nil {
		e.metrics.AOLRewriteErrors.Inc()
		return 0, err
	}
	e.aolWriter = w
	e.metrics.AOLRewritesTotal.Inc()
	e.metrics.AOLSizeBytes.Set(float64(newSize))
	return newSize, nil
}

func (e *Engine) sweepExpired(maxKeys int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UnixNano()
	var expired [][]byte
	e.store.ForEach(func(key []byte, rec store.Record) bool {
		if rec.Expired(now) {
			expired = append(expired, append([]byte(nil), key...))
		}
		return len(expired) < maxKeys
	})

	for _, key := range expired {
		if err := e.appendDelete(key); err != nil {
			e.logger.Warn("ttl reaper failed to persist expiry", zap.Error(err))
		}
	}
	e.metrics.ReaperSweepsTotal.Inc()
	e.metrics.ReaperRemovedTotal.Add(float64(len(expired)))
	return len(expired)
}

// Close stops background workers, flushes and closes the log (if
// any), and releases the open-file lock. Close is idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	if e.reaper != nil {
		e.reaper.Stop()
	}
	if e.rewriteSched != nil {
		e.rewriteSched.Stop()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	if e.aolWriter != nil {
		if err := e.aolWriter.Close(); err != nil {
			firstErr = ioErr("close log", err)
		}
	}
	e.releaseLock()
	return firstErr
}
