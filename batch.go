package spatiodb

import (
	"time"

	"github.com/spatiodb/spatiodb/internal/aol"
	"github.com/spatiodb/spatiodb/internal/trajectory"
)

// Batch stages Put/PutPoint/Delete intents for a single atomic
// commit. It is only valid for the duration of the callback passed to
// Engine.Atomic; calling any method on it afterward panics, since its
// staged state has no meaning once the engine has already resolved
// and applied (or discarded) it.
type Batch struct {
	engine *Engine
	order  []batchIntent
	valid  bool
}

type batchIntent struct {
	key      []byte
	isDelete bool
	put      aol.PutRecord
}

func newBatch(e *Engine) *Batch {
	return &Batch{engine: e, valid: true}
}

func (b *Batch) invalidate() {
	b.valid = false
}

func (b *Batch) checkValid() {
	if !b.valid {
		panic("spatiodb: batch used outside its Atomic callback")
	}
}

// Put stages a plain key/value write.
func (b *Batch) Put(key, value []byte, opts InsertOptions) error {
	b.checkValid()
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	expiresAt := opts.resolve(time.Now(), b.engine.cfg.DefaultTTL)
	b.order = append(b.order, batchIntent{
		key: key,
		put: aol.PutRecord{Key: key, Value: value, ExpiresAtUnixNano: expiresAtNano(expiresAt)},
	})
	return nil
}

// PutPoint stages a spatial write under namespace ns, composing the
// full key the same way Engine.InsertPoint does.
func (b *Batch) PutPoint(ns string, key []byte, point Point, value []byte, opts InsertOptions) error {
	b.checkValid()
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	if err := validatePoint(point); err != nil {
		return err
	}

	composed := newNamespace(ns, b.engine.cfg.NamespaceSeparator).key(key)
	expiresAt := opts.resolve(time.Now(), b.engine.cfg.DefaultTTL)
	b.order = append(b.order, batchIntent{
		key: composed,
		put: aol.PutRecord{
			Key: composed, Value: value, ExpiresAtUnixNano: expiresAtNano(expiresAt),
			HasPoint: true, Lat: point.Lat, Lon: point.Lon,
		},
	})
	return nil
}

// PutTrajectory stages one put intent per sample, under the same
// trajectory:<object_id>:<timestamp> keys Engine.InsertTrajectory uses.
func (b *Batch) PutTrajectory(objectID string, samples []Sample, opts InsertOptions) error {
	b.checkValid()
	if objectID == "" {
		return invalidTrajectoryErr("object_id", "must not be empty")
	}
	if len(samples) == 0 {
		return invalidTrajectoryErr("samples", "must not be empty")
	}
	if err := validateTrajectorySamples(samples); err != nil {
		return err
	}

	expNano := expiresAtNano(opts.resolve(time.Now(), b.engine.cfg.DefaultTTL))
	for _, s := range samples {
		if err := validatePoint(s.Point); err != nil {
			return err
		}
		key := trajectory.EncodeKey(objectID, s.Timestamp)
		payload := trajectory.EncodePayload(s.Point.Lat, s.Point.Lon, s.Value)
		b.order = append(b.order, batchIntent{
			key: key,
			put: aol.PutRecord{
				Key: key, Value: payload, ExpiresAtUnixNano: expNano,
				HasPoint: true, Lat: s.Point.Lat, Lon: s.Point.Lon,
			},
		})
	}
	return nil
}

// Delete stages a removal of a plain (non-namespaced) key.
func (b *Batch) Delete(key []byte) error {
	b.checkValid()
	if err := validateKey(key); err != nil {
		return err
	}
	b.order = append(b.order, batchIntent{key: key, isDelete: true})
	return nil
}

// DeletePoint stages a removal of a key previously written under
// namespace ns via PutPoint/InsertPoint.
func (b *Batch) DeletePoint(ns string, key []byte) error {
	b.checkValid()
	if err := validateKey(key); err != nil {
		return err
	}
	composed := newNamespace(ns, b.engine.cfg.NamespaceSeparator).key(key)
	b.order = append(b.order, batchIntent{key: composed, isDelete: true})
	return nil
}

// resolve collapses staged intents to one per key, keeping only each
// key's last write and preserving the relative order of those last
// writes.
func (b *Batch) resolve() []batchIntent {
	lastIndex := make(map[string]int, len(b.order))
	for i, intent := range b.order {
		lastIndex[string(intent.key)] = i
	}

	resolved := make([]batchIntent, 0, len(lastIndex))
	for i, intent := range b.order {
		if lastIndex[string(intent.key)] == i {
			resolved = append(resolved, intent)
		}
	}
	return resolved
}
