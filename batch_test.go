package spatiodb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_ResolveKeepsLastWritePerKeyInOrder(t *testing.T) {
	e := openTestEngine(t, filepath.Join(t.TempDir(), "db.splg"))

	b := newBatch(e)
	require.NoError(t, b.Put([]byte("a"), []byte("1"), InsertOptions{}))
	require.NoError(t, b.Put([]byte("b"), []byte("1"), InsertOptions{}))
	require.NoError(t, b.Put([]byte("a"), []byte("2"), InsertOptions{}))
	require.NoError(t, b.Delete([]byte("c")))
	require.NoError(t, b.Put([]byte("c"), []byte("3"), InsertOptions{}))

	resolved := b.resolve()
	require.Len(t, resolved, 3)

	byKey := map[string]batchIntent{}
	for _, intent := range resolved {
		byKey[string(intent.key)] = intent
	}
	assert.Equal(t, []byte("2"), byKey["a"].put.Value)
	assert.Equal(t, []byte("1"), byKey["b"].put.Value)
	assert.False(t, byKey["c"].isDelete)
	assert.Equal(t, []byte("3"), byKey["c"].put.Value)

	order := make([]string, len(resolved))
	for i, intent := range resolved {
		order[i] = string(intent.key)
	}
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func TestBatch_PutPointComposesNamespacedKey(t *testing.T) {
	e := openTestEngine(t, filepath.Join(t.TempDir(), "db.splg"))

	b := newBatch(e)
	require.NoError(t, b.PutPoint("cities", []byte("nyc"), Point{Lat: 40.7, Lon: -74.0}, []byte("v"), InsertOptions{}))

	resolved := b.resolve()
	require.Len(t, resolved, 1)
	assert.Equal(t, newNamespace("cities", e.cfg.NamespaceSeparator).key([]byte("nyc")), resolved[0].key)
	assert.True(t, resolved[0].put.HasPoint)
}

func TestBatch_MethodsPanicAfterInvalidate(t *testing.T) {
	e := openTestEngine(t, filepath.Join(t.TempDir(), "db.splg"))
	b := newBatch(e)
	b.invalidate()

	assert.Panics(t, func() { _ = b.Put([]byte("k"), []byte("v"), InsertOptions{}) })
	assert.Panics(t, func() { _ = b.Delete([]byte("k")) })
	assert.Panics(t, func() { _ = b.PutPoint("ns", []byte("k"), Point{}, []byte("v"), InsertOptions{}) })
	assert.Panics(t, func() { _ = b.DeletePoint("ns", []byte("k")) })
	assert.Panics(t, func() { _ = b.PutTrajectory("obj", nil, InsertOptions{}) })
}

func TestBatch_PutTrajectoryStagesOneIntentPerSample(t *testing.T) {
	e := openTestEngine(t, filepath.Join(t.TempDir(), "db.splg"))
	b := newBatch(e)

	samples := []Sample{
		{Timestamp: 100, Point: Point{Lat: 1, Lon: 1}, Value: []byte("a")},
		{Timestamp: 200, Point: Point{Lat: 2, Lon: 2}, Value: []byte("b")},
	}
	require.NoError(t, b.PutTrajectory("truck-1", samples, InsertOptions{}))
	assert.Len(t, b.resolve(), 2)
}

func TestBatch_PutTrajectoryRejectsEmptySamples(t *testing.T) {
	e := openTestEngine(t, filepath.Join(t.TempDir(), "db.splg"))
	b := newBatch(e)
	err := b.PutTrajectory("truck-1", nil, InsertOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidTrajectory))
}

func TestBatch_PutTrajectoryRejectsDecreasingTimestamps(t *testing.T) {
	e := openTestEngine(t, filepath.Join(t.TempDir(), "db.splg"))
	b := newBatch(e)

	samples := []Sample{
		{Timestamp: 200, Point: Point{Lat: 1, Lon: 1}},
		{Timestamp: 100, Point: Point{Lat: 2, Lon: 2}},
	}
	err := b.PutTrajectory("truck-1", samples, InsertOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidTrajectory))
}
