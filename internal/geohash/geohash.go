// Package geohash wraps the base-32 geohash primitives used by the
// spatial index: encoding a point at a given precision, decoding a
// cell back to its centre, and enumerating a cell's 8 neighbours for
// the radius-search window. The bit-interleaving itself is delegated
// to github.com/mmcloughlin/geohash; this package adds the
// precision/side-length table and the neighbour window spec.md's
// search algorithms are built on.
package geohash

import (
	extgeohash "github.com/mmcloughlin/geohash"
)

// MinPrecision and MaxPrecision bound the configured geohash precision.
const (
	MinPrecision = 1
	MaxPrecision = 12
)

// sideMeters tabulates, for each precision 1..12, the larger of the
// two cell edge lengths at the equator. Values at 1..8 come directly
// from the specification; 9..12 continue the standard geohash
// precision table.
var sideMeters = [MaxPrecision + 1]float64{
	0, // unused index 0
	5_009_400,
	1_252_300,
	156_500,
	39_100,
	4_900,
	1_200,
	152.9,
	38.2,
	4.77,
	1.19,
	0.149,
	0.0371,
}

// SideMeters returns the tabulated cell side length in metres for
// precision p (1..=12).
func SideMeters(p int) float64 {
	if p < MinPrecision || p > MaxPrecision {
		return 0
	}
	return sideMeters[p]
}

// Encode returns the precision-length geohash of (lat, lon).
func Encode(lat, lon float64, precision int) string {
	return extgeohash.EncodeWithPrecision(lat, lon, uint(precision))
}

// Decode returns the centre point of the given geohash cell.
func Decode(cell string) (lat, lon float64) {
	return extgeohash.Decode(cell)
}

// Direction is a compass direction used to look up a single neighbour
// of a geohash cell.
type Direction = extgeohash.Direction

// The eight compass directions accepted by Neighbor.
const (
	North     = extgeohash.North
	NorthEast = extgeohash.NorthEast
	East      = extgeohash.East
	SouthEast = extgeohash.SouthEast
	South     = extgeohash.South
	SouthWest = extgeohash.SouthWest
	West      = extgeohash.West
	NorthWest = extgeohash.NorthWest
)

// Neighbor returns the adjacent cell of cell in the given direction, at
// the same precision as cell.
func Neighbor(cell string, dir Direction) string {
	return extgeohash.Neighbor(cell, dir)
}

// Window returns the 9-cell window covering a search centred on cell:
// the cell itself and its 8 geographic neighbours.
func Window(cell string) []string {
	neighbors := extgeohash.Neighbors(cell)
	window := make([]string, 0, len(neighbors)+1)
	window = append(window, cell)
	window = append(window, neighbors...)
	return window
}

// RadiusPrecision computes the largest precision q <= maxPrecision
// whose tabulated cell side length is still >= radiusM: the finest
// cell that still guarantees a 9-cell window covers the whole search
// radius around its centre.
func RadiusPrecision(maxPrecision int, radiusM float64) int {
	q := MinPrecision
	for p := MinPrecision; p <= maxPrecision; p++ {
		if SideMeters(p) >= radiusM {
			q = p
			continue
		}
		break
	}
	return q
}
