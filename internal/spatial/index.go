// Package spatial maintains the geohash-bucketed index over inserted
// points and implements the radius, bounding-box, and k-nearest-
// neighbour search algorithms on top of it. Exact coordinates are not
// duplicated here; candidates are resolved back to coordinates by the
// caller-supplied PointLookup, which the engine backs with the shared
// key/value store.
package spatial

import (
	"strings"

	"github.com/spatiodb/spatiodb/internal/geohash"
)

// neighborCacheCapacity bounds the number of (cell, precision) windows
// kept warm. Radius/k-NN searches revisit a small working set of cells
// as points cluster geographically, so a modest cache absorbs most
// repeat window computations without growing unbounded over the life
// of a long-running index.
const neighborCacheCapacity = 4096

// Index maps geohash cells, at a single configured precision, to the
// set of keys whose point falls in that cell. It is not safe for
// concurrent use; callers serialise access the same way they do for
// the key/value store.
type Index struct {
	precision int
	cellOf    map[string]string
	keysOf    map[string]map[string]struct{}
	windows   *geohash.NeighborCache
}

// New creates an index bucketing points at the given geohash
// precision.
func New(precision int) *Index {
	return &Index{
		precision: precision,
		cellOf:    make(map[string]string),
		keysOf:    make(map[string]map[string]struct{}),
		windows:   geohash.NewNeighborCache(neighborCacheCapacity),
	}
}

// Window returns the 9-cell search window centred on cell, computing
// and caching it on a miss so a repeated search over the same cell
// doesn't recompute its neighbours.
func (ix *Index) Window(cell string) []string {
	return ix.windows.WindowCached(cell)
}

// Precision returns the index's configured bucketing precision.
func (ix *Index) Precision() int {
	return ix.precision
}

// Put indexes key at the cell its point falls into, moving it from
// its previous cell if it was already indexed.
func (ix *Index) Put(key string, lat, lon float64) {
	cell := geohash.Encode(lat, lon, ix.precision)
	if old, ok := ix.cellOf[key]; ok {
		if old == cell {
			return
		}
		ix.removeFromCell(old, key)
	}
	ix.cellOf[key] = cell
	set := ix.keysOf[cell]
	if set == nil {
		set = make(map[string]struct{})
		ix.keysOf[cell] = set
	}
	set[key] = struct{}{}
}

// Remove drops key from the index.
func (ix *Index) Remove(key string) {
	cell, ok := ix.cellOf[key]
	if !ok {
		return
	}
	ix.removeFromCell(cell, key)
	delete(ix.cellOf, key)
}

func (ix *Index) removeFromCell(cell, key string) {
	set, ok := ix.keysOf[cell]
	if !ok {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(ix.keysOf, cell)
	}
}

// Len returns the number of indexed keys.
func (ix *Index) Len() int {
	return len(ix.cellOf)
}

// CandidatesForWindow returns every indexed key whose cell has one of
// the window cells as a prefix. window cells may be shorter than the
// index's own precision (a coarser search precision), in which case
// every finer indexed cell under that window cell matches.
func (ix *Index) CandidatesForWindow(window []string) []string {
	var out []string
	for cell, keys := range ix.keysOf {
		if cellMatchesWindow(cell, window) {
			for k := range keys {
				out = append(out, k)
			}
		}
	}
	return out
}

func cellMatchesWindow(cell string, window []string) bool {
	for _, w := range window {
		if strings.HasPrefix(cell, w) {
			return true
		}
	}
	return false
}
