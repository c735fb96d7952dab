package spatial

import (
	"sort"

	"github.com/spatiodb/spatiodb/internal/geohash"
)

// maxBBoxCells bounds the number of cells one rasterization sweep may
// produce; a bounding box that needs more cells at the requested
// precision is swept again one precision coarser.
const maxBBoxCells = 1 << 16

// PointLookup resolves an indexed key back to the coordinates it was
// indexed under. It returns ok=false if the key no longer exists (for
// instance it expired between the index scan and the lookup).
type PointLookup func(key string) (lat, lon float64, ok bool)

// Hit is a single spatial query result.
type Hit struct {
	Key       string
	DistanceM float64
}

// Radius returns every indexed key within radiusM metres of
// (centerLat, centerLon), sorted by ascending distance. maxPrecision
// is the index's configured precision p; the search itself may use a
// coarser precision q <= p chosen so a 9-cell window is guaranteed to
// cover the full radius. A radius wider than the precision-1 cell side
// has no such q, so every indexed key is a candidate instead.
func Radius(ix *Index, lookup PointLookup, centerLat, centerLon, radiusM float64, maxPrecision int) []Hit {
	var candidates []string
	if radiusM > geohash.SideMeters(geohash.MinPrecision) {
		candidates = ix.CandidatesForWindow([]string{""})
	} else {
		q := geohash.RadiusPrecision(maxPrecision, radiusM)
		center := geohash.Encode(centerLat, centerLon, q)
		candidates = ix.CandidatesForWindow(ix.Window(center))
	}

	hits := make([]Hit, 0, len(candidates))
	for _, key := range candidates {
		lat, lon, ok := lookup(key)
		if !ok {
			continue
		}
		d := DistanceM(centerLat, centerLon, lat, lon)
		if d <= radiusM {
			hits = append(hits, Hit{Key: key, DistanceM: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceM < hits[j].DistanceM })
	return hits
}

// BoundingBox returns every indexed key whose point falls within the
// closed rectangle [minLat, maxLat] x [minLon, maxLon]. The rectangle
// must not cross the antimeridian (minLon <= maxLon).
func BoundingBox(ix *Index, lookup PointLookup, minLat, minLon, maxLat, maxLon float64) []string {
	cells := rasterizeBBox(minLat, minLon, maxLat, maxLon, ix.Precision())
	candidates := ix.CandidatesForWindow(cells)

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, key := range candidates {
		lat, lon, ok := lookup(key)
		if !ok || seen[key] {
			continue
		}
		if InBounds(lat, lon, minLat, minLon, maxLat, maxLon) {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// rasterizeBBox enumerates the geohash cells, at the given precision,
// that cover [minLat, maxLat] x [minLon, maxLon]. It starts at the
// south-west corner and steps east then north, cell by cell, until it
// has passed both bounds or comes back to a cell it has already swept.
// If the sweep reaches maxBBoxCells first, it is redone one precision
// coarser (down to precision 1); coarser cells still match finer
// indexed cells by prefix.
func rasterizeBBox(minLat, minLon, maxLat, maxLon float64, precision int) []string {
	var cells []string
	seen := make(map[string]bool)

	rowStart := geohash.Encode(minLat, minLon, precision)
	for len(cells) < maxBBoxCells {
		rowLat, _ := geohash.Decode(rowStart)

		cell := rowStart
		for len(cells) < maxBBoxCells {
			if !seen[cell] {
				seen[cell] = true
				cells = append(cells, cell)
			}
			_, cellLon := geohash.Decode(cell)
			if cellLon >= maxLon {
				break
			}
			next := geohash.Neighbor(cell, geohash.East)
			if next == cell || seen[next] {
				break
			}
			cell = next
		}

		if rowLat >= maxLat {
			break
		}
		north := geohash.Neighbor(rowStart, geohash.North)
		if north == rowStart || seen[north] {
			break
		}
		rowStart = north
	}
	if len(cells) >= maxBBoxCells && precision > geohash.MinPrecision {
		return rasterizeBBox(minLat, minLon, maxLat, maxLon, precision-1)
	}
	return cells
}

// KNN returns the k indexed keys nearest to (lat, lon), sorted by
// ascending distance, by adaptively widening the search precision
// from maxPrecision down to 1 until at least k candidates are found
// or the coarsest precision has been tried.
func KNN(ix *Index, lookup PointLookup, lat, lon float64, k int, maxPrecision int) []Hit {
	if k <= 0 {
		return nil
	}
	for q := maxPrecision; q >= 1; q-- {
		cell := geohash.Encode(lat, lon, q)
		window := ix.Window(cell)
		candidates := ix.CandidatesForWindow(window)

		if len(candidates) < k && q > 1 {
			continue
		}

		hits := make([]Hit, 0, len(candidates))
		for _, key := range candidates {
			clat, clon, ok := lookup(key)
			if !ok {
				continue
			}
			hits = append(hits, Hit{Key: key, DistanceM: DistanceM(lat, lon, clat, clon)})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].DistanceM < hits[j].DistanceM })
		if len(hits) > k {
			hits = hits[:k]
		}
		return hits
	}
	return nil
}
