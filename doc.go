// Package spatiodb is an embedded spatio-temporal key/value engine: a
// single-process store for opaque byte values keyed by byte strings,
// with first-class support for indexing geographic points and
// querying them by radius, bounding box, or k-nearest-neighbours, and
// for recording and querying time-stamped object trajectories.
//
// An Engine is opened with a Config. A Config with an empty Path is a
// pure in-memory engine with no durability; a non-empty Path opens (or
// creates) an append-only log that is replayed on Open and kept
// durable on every subsequent write, subject to the configured
// SyncPolicy.
//
//	eng, err := spatiodb.Open(spatiodb.Config{Path: "geo.splg"})
//	if err != nil {
//		return err
//	}
//	defer eng.Close()
//
//	err = eng.InsertPoint("cities", []byte("nyc"), spatiodb.Point{Lat: 40.7128, Lon: -74.0060}, []byte("New York"), spatiodb.InsertOptions{})
//	hits, err := eng.FindNearby("cities", spatiodb.Point{Lat: 40.7, Lon: -74.0}, 50_000, 10)
//
// Every exported Engine method is safe for concurrent use: reads take
// a shared lock and writes take the engine's single exclusive write
// lease, per the single-writer/many-reader model described in
// DESIGN.md.
package spatiodb
