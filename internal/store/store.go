// Package store implements the ordered, byte-keyed in-memory mapping
// that backs every other subsystem: point lookup, prefix scan for
// trajectory and namespace queries, and full-range snapshot for AOL
// rewrite. It is deliberately not safe for concurrent use on its own;
// the engine facade serialises access through its write lease and
// reader-preference read lock (see the root package's engine.go).
package store

import (
	"bytes"

	"github.com/google/btree"
)

// Record is the store's internal representation of a stored value. It
// mirrors the root package's Record but stays free of spatiodb so this
// package has no import cycle back to it.
type Record struct {
	Value             []byte
	ExpiresAtUnixNano int64 // 0 means no expiration
	HasPoint          bool
	Lat               float64
	Lon               float64
	CreatedAt         uint64
}

// Expired reports whether the record's TTL has passed as of nowUnixNano.
func (r Record) Expired(nowUnixNano int64) bool {
	return r.ExpiresAtUnixNano != 0 && nowUnixNano >= r.ExpiresAtUnixNano
}

type item struct {
	key []byte
	rec Record
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Store is an ordered byte-keyed map of Records, backed by a B-tree so
// that prefix and range scans are native operations rather than a
// full-table filter.
type Store struct {
	tree *btree.BTreeG[item]
	size int
}

// New creates an empty store.
func New() *Store {
	return &Store{tree: btree.NewG(32, less)}
}

// Put inserts or overwrites the record at key, returning the prior
// record if one existed.
func (s *Store) Put(key []byte, rec Record) (Record, bool) {
	k := append([]byte(nil), key...)
	old, had := s.tree.ReplaceOrInsert(item{key: k, rec: rec})
	if !had {
		s.size++
	}
	return old.rec, had
}

// Get returns the record stored at key, if any.
func (s *Store) Get(key []byte) (Record, bool) {
	it, ok := s.tree.Get(item{key: key})
	return it.rec, ok
}

// Delete removes the record at key, returning it if it existed.
func (s *Store) Delete(key []byte) (Record, bool) {
	old, had := s.tree.Delete(item{key: key})
	if had {
		s.size--
	}
	return old.rec, had
}

// Len returns the number of keys currently stored.
func (s *Store) Len() int {
	return s.size
}

// RangePrefix calls fn for every key with the given prefix, in
// ascending lexicographic order, until fn returns false.
func (s *Store) RangePrefix(prefix []byte, fn func(key []byte, rec Record) bool) {
	upper := prefixUpperBound(prefix)
	pivot := item{key: prefix}
	s.tree.AscendGreaterOrEqual(pivot, func(it item) bool {
		if upper != nil && bytes.Compare(it.key, upper) >= 0 {
			return false
		}
		if !bytes.HasPrefix(it.key, prefix) {
			if upper == nil {
				return false
			}
			return true
		}
		return fn(it.key, it.rec)
	})
}

// RangeBetween calls fn for every key k with from <= k <= to, in
// ascending order, until fn returns false.
func (s *Store) RangeBetween(from, to []byte, fn func(key []byte, rec Record) bool) {
	s.tree.AscendRange(item{key: from}, item{key: append(append([]byte(nil), to...), 0)}, func(it item) bool {
		return fn(it.key, it.rec)
	})
}

// ForEach calls fn for every key in ascending order until fn returns false.
func (s *Store) ForEach(fn func(key []byte, rec Record) bool) {
	s.tree.Ascend(func(it item) bool {
		return fn(it.key, it.rec)
	})
}

// prefixUpperBound returns the smallest key that is strictly greater
// than every key with the given prefix, or nil if prefix is all 0xFF
// bytes (in which case there is no finite upper bound and callers must
// rely on HasPrefix filtering alone).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
