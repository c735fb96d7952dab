package spatiodb

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T, path string) *Engine {
	t.Helper()
	eng, err := Open(Config{Path: path, TTLReapIntervalMS: 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngine_BasicRoundTrip(t *testing.T) {
	// Scenario A.
	path := filepath.Join(t.TempDir(), "db.splg")

	eng, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, eng.Insert([]byte("k"), []byte("v"), InsertOptions{}))
	require.NoError(t, eng.Close())

	eng2, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer eng2.Close()

	rec, ok, err := eng2.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), rec.Value)
}

func TestEngine_InsertGetDelete(t *testing.T) {
	eng := openTestEngine(t, "")

	_, ok, err := eng.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, eng.Insert([]byte("k"), []byte("v1"), InsertOptions{}))
	rec, ok, err := eng.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), rec.Value)

	require.NoError(t, eng.Insert([]byte("k"), []byte("v2"), InsertOptions{}))
	rec, _, _ = eng.Get([]byte("k"))
	assert.Equal(t, []byte("v2"), rec.Value)

	existed, err := eng.Delete([]byte("k"))
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, _ = eng.Get([]byte("k"))
	assert.False(t, ok)

	existed, err = eng.Delete([]byte("k"))
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestEngine_InsertRejectsInvalidKeysAndValues(t *testing.T) {
	eng := openTestEngine(t, "")

	err := eng.Insert(nil, []byte("v"), InsertOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidKey))

	err = eng.Insert([]byte{0x02}, []byte("v"), InsertOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidKey))
}

func insertCities(t *testing.T, eng *Engine) (nyc, paris, london Point) {
	t.Helper()
	nyc = Point{Lat: 40.7128, Lon: -74.0060}
	paris = Point{Lat: 48.8566, Lon: 2.3522}
	london = Point{Lat: 51.5074, Lon: -0.1278}

	require.NoError(t, eng.InsertPoint("cities", []byte("nyc"), nyc, []byte("NYC"), InsertOptions{}))
	require.NoError(t, eng.InsertPoint("cities", []byte("paris"), paris, []byte("Paris"), InsertOptions{}))
	require.NoError(t, eng.InsertPoint("cities", []byte("london"), london, []byte("London"), InsertOptions{}))
	return
}

func TestEngine_FindNearby_OrdersByDistance(t *testing.T) {
	// Scenario B.
	eng := openTestEngine(t, "")
	nyc, _, _ := insertCities(t, eng)

	hits, err := eng.FindNearby("cities", nyc, 6_000_000, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, []byte("NYC"), hits[0].Value)
	assert.InDelta(t, 0, hits[0].DistanceM, 1)
	assert.Equal(t, []byte("London"), hits[1].Value)
	assert.Equal(t, []byte("Paris"), hits[2].Value)
	assert.Less(t, hits[1].DistanceM, hits[2].DistanceM)
}

func TestEngine_FindNearby_ScopesToNamespace(t *testing.T) {
	eng := openTestEngine(t, "")
	nyc, _, _ := insertCities(t, eng)
	require.NoError(t, eng.InsertPoint("other", []byte("decoy"), nyc, []byte("decoy"), InsertOptions{}))

	hits, err := eng.FindNearby("cities", nyc, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, []byte("NYC"), hits[0].Value)
}

func TestEngine_CountAndContainsWithinDistance(t *testing.T) {
	// Invariants 5 and 6.
	eng := openTestEngine(t, "")
	nyc, _, _ := insertCities(t, eng)

	count, err := eng.CountWithinDistance("cities", nyc, 6_000_000)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	contains, err := eng.ContainsPoint("cities", nyc, 6_000_000)
	require.NoError(t, err)
	assert.True(t, contains)

	contains, err = eng.ContainsPoint("cities", nyc, 1)
	require.NoError(t, err)
	assert.True(t, contains) // nyc itself is at distance 0

	far := Point{Lat: -33.8688, Lon: 151.2093}
	contains, err = eng.ContainsPoint("cities", far, 1)
	require.NoError(t, err)
	assert.False(t, contains)
}

func TestEngine_FindWithinBounds(t *testing.T) {
	// Scenario C.
	eng := openTestEngine(t, "")
	insertCities(t, eng)

	hits, err := eng.FindWithinBounds("cities", 40.0, -10.0, 60.0, 10.0, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	values := map[string]bool{}
	for _, h := range hits {
		values[string(h.Value)] = true
	}
	assert.True(t, values["Paris"])
	assert.True(t, values["London"])
	assert.False(t, values["NYC"])
}

func TestEngine_IntersectsBounds(t *testing.T) {
	eng := openTestEngine(t, "")
	insertCities(t, eng)

	yes, err := eng.IntersectsBounds("cities", 40.0, -10.0, 60.0, 10.0)
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := eng.IntersectsBounds("cities", -10.0, -10.0, -5.0, -5.0)
	require.NoError(t, err)
	assert.False(t, no)
}

func TestEngine_FindKNearest(t *testing.T) {
	eng := openTestEngine(t, "")
	nyc, _, _ := insertCities(t, eng)

	hits, err := eng.FindKNearest("cities", nyc, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, []byte("NYC"), hits[0].Value)
	assert.Equal(t, []byte("London"), hits[1].Value)
}

func TestEngine_TTLExpiry(t *testing.T) {
	// Scenario D.
	path := filepath.Join(t.TempDir(), "db.splg")
	eng, err := Open(Config{Path: path, TTLReapIntervalMS: 20})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Insert([]byte("s"), []byte("d"), InsertOptions{TTL: 60 * time.Millisecond}))

	rec, ok, err := eng.Get([]byte("s"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("d"), rec.Value)

	time.Sleep(150 * time.Millisecond)
	_, ok, err = eng.Get([]byte("s"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, eng.Close())

	eng2, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer eng2.Close()

	_, ok, err = eng2.Get([]byte("s"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_AtomicBatch_CommitsAllOrNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.splg")
	eng, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer eng.Close()

	err = eng.Atomic(func(b *Batch) error {
		require.NoError(t, b.Put([]byte("a"), []byte("1"), InsertOptions{}))
		require.NoError(t, b.Put([]byte("b"), []byte("2"), InsertOptions{}))
		return nil
	})
	require.NoError(t, err)

	rec, ok, _ := eng.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), rec.Value)
	rec, ok, _ = eng.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, []byte("2"), rec.Value)
}

func TestEngine_AtomicBatch_AbortsOnError(t *testing.T) {
	// Scenario E.
	path := filepath.Join(t.TempDir(), "db.splg")
	eng, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer eng.Close()

	userErr := errors.New("user error")
	err = eng.Atomic(func(b *Batch) error {
		require.NoError(t, b.Put([]byte("a"), []byte("1"), InsertOptions{}))
		require.NoError(t, b.Put([]byte("b"), []byte("2"), InsertOptions{}))
		return userErr
	})
	require.ErrorIs(t, err, userErr)

	_, ok, _ := eng.Get([]byte("a"))
	assert.False(t, ok)
	_, ok, _ = eng.Get([]byte("b"))
	assert.False(t, ok)

	require.NoError(t, eng.Close())

	eng2, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer eng2.Close()
	_, ok, _ = eng2.Get([]byte("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, eng2.Stats().KeyCount)
}

func TestEngine_AtomicBatch_LastWriteWinsOnSameKey(t *testing.T) {
	eng := openTestEngine(t, "")

	err := eng.Atomic(func(b *Batch) error {
		require.NoError(t, b.Put([]byte("k"), []byte("first"), InsertOptions{}))
		require.NoError(t, b.Put([]byte("k"), []byte("second"), InsertOptions{}))
		return nil
	})
	require.NoError(t, err)

	rec, ok, _ := eng.Get([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("second"), rec.Value)
}

func TestEngine_AtomicBatch_PanicsIfUsedAfterCallback(t *testing.T) {
	eng := openTestEngine(t, "")
	var leaked *Batch

	err := eng.Atomic(func(b *Batch) error {
		leaked = b
		return nil
	})
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = leaked.Put([]byte("x"), []byte("y"), InsertOptions{})
	})
}

func TestEngine_Trajectory_QueryReturnsSamplesInRange(t *testing.T) {
	// Scenario F.
	eng := openTestEngine(t, "")

	samples := []Sample{
		{Point: Point{Lat: 1, Lon: 1}, Timestamp: 1_000},
		{Point: Point{Lat: 2, Lon: 2}, Timestamp: 1_060},
		{Point: Point{Lat: 3, Lon: 3}, Timestamp: 1_120},
	}
	require.NoError(t, eng.InsertTrajectory("truck001", samples, InsertOptions{}))

	pts, err := eng.QueryTrajectory("truck001", 1_000, 1_060)
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, uint64(1_000), pts[0].Timestamp)
	assert.Equal(t, uint64(1_060), pts[1].Timestamp)
}

func TestEngine_InsertTrajectory_RejectsDecreasingTimestamps(t *testing.T) {
	eng := openTestEngine(t, "")

	samples := []Sample{
		{Point: Point{Lat: 1, Lon: 1}, Timestamp: 1_000},
		{Point: Point{Lat: 2, Lon: 2}, Timestamp: 900},
	}
	err := eng.InsertTrajectory("truck001", samples, InsertOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidTrajectory))
}

func TestEngine_InsertTrajectory_AllowsEqualConsecutiveTimestamps(t *testing.T) {
	eng := openTestEngine(t, "")

	samples := []Sample{
		{Point: Point{Lat: 1, Lon: 1}, Timestamp: 1_000},
		{Point: Point{Lat: 2, Lon: 2}, Timestamp: 1_000},
	}
	require.NoError(t, eng.InsertTrajectory("truck001", samples, InsertOptions{}))
}

func TestEngine_Trajectory_EqualStartEndReturnsExactTimestamp(t *testing.T) {
	eng := openTestEngine(t, "")

	samples := []Sample{
		{Point: Point{Lat: 1, Lon: 1}, Timestamp: 500},
		{Point: Point{Lat: 2, Lon: 2}, Timestamp: 600},
	}
	require.NoError(t, eng.InsertTrajectory("obj", samples, InsertOptions{}))

	pts, err := eng.QueryTrajectory("obj", 500, 500)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, uint64(500), pts[0].Timestamp)
}

func TestEngine_DeleteTrajectory_RemovesAllSamplesRegardlessOfTimestampRange(t *testing.T) {
	eng := openTestEngine(t, "")

	samples := []Sample{
		{Point: Point{Lat: 1, Lon: 1}, Timestamp: 1_000},
		{Point: Point{Lat: 2, Lon: 2}, Timestamp: 1_060},
		{Point: Point{Lat: 3, Lon: 3}, Timestamp: 1_120},
	}
	require.NoError(t, eng.InsertTrajectory("truck001", samples, InsertOptions{}))
	require.NoError(t, eng.InsertTrajectory("truck002", samples, InsertOptions{}))

	n, err := eng.DeleteTrajectory("truck001")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pts, err := eng.QueryTrajectory("truck001", 0, math.MaxUint64)
	require.NoError(t, err)
	assert.Empty(t, pts)

	pts, err = eng.QueryTrajectory("truck002", 0, math.MaxUint64)
	require.NoError(t, err)
	assert.Len(t, pts, 3)
}

func TestEngine_DeleteTrajectory_RejectsEmptyObjectID(t *testing.T) {
	eng := openTestEngine(t, "")

	_, err := eng.DeleteTrajectory("")
	require.Error(t, err)
}

func TestEngine_Close_IsIdempotent(t *testing.T) {
	eng := openTestEngine(t, "")
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	err := eng.Insert([]byte("k"), []byte("v"), InsertOptions{})
	assert.True(t, IsKind(err, KindClosed))
}

func TestEngine_Open_RejectsInvalidConfig(t *testing.T) {
	_, err := Open(Config{GeohashPrecision: 13})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidConfig))
}

func TestEngine_Open_RejectsAlreadyOpenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.splg")
	eng, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer eng.Close()

	_, err = Open(Config{Path: path})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAlreadyOpen))
}

func TestEngine_Stats_ReflectsKeyAndPointCounts(t *testing.T) {
	eng := openTestEngine(t, "")
	require.NoError(t, eng.Insert([]byte("plain"), []byte("v"), InsertOptions{}))
	require.NoError(t, eng.InsertPoint("ns", []byte("p"), Point{Lat: 1, Lon: 1}, []byte("v"), InsertOptions{}))

	stats := eng.Stats()
	assert.Equal(t, 2, stats.KeyCount)
	assert.Equal(t, 1, stats.PointCount)
}

func TestEngine_MetricsRegistry_ReflectsLiveKeyAndPointGauges(t *testing.T) {
	eng := openTestEngine(t, "")
	require.NoError(t, eng.Insert([]byte("plain"), []byte("v"), InsertOptions{}))
	require.NoError(t, eng.InsertPoint("ns", []byte("p"), Point{Lat: 1, Lon: 1}, []byte("v"), InsertOptions{}))

	reg := eng.MetricsRegistry()
	require.NotNil(t, reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Equal(t, float64(2), testutil.ToFloat64(eng.metrics.KeysTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(eng.metrics.PointsTotal))

	_, err = eng.Delete([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(eng.metrics.KeysTotal))
}

func TestEngine_DoRewrite_IncrementsRewriteErrorsOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.splg")
	eng := openTestEngine(t, path)
	require.NoError(t, eng.Insert([]byte("k"), []byte("v"), InsertOptions{}))

	before := testutil.ToFloat64(eng.metrics.AOLRewriteErrors)

	// Pre-close the log writer so doRewrite's own Close call fails,
	// exercising the same error path a real I/O failure would take.
	require.NoError(t, eng.aolWriter.Close())

	_, err := eng.doRewrite()
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(eng.metrics.AOLRewriteErrors))
}

func TestEngine_FindNearby_ZeroRadiusMatchesOnlyExactCoordinate(t *testing.T) {
	eng := openTestEngine(t, "")
	p := Point{Lat: 10, Lon: 10}
	require.NoError(t, eng.InsertPoint("ns", []byte("exact"), p, []byte("exact"), InsertOptions{}))
	require.NoError(t, eng.InsertPoint("ns", []byte("near"), Point{Lat: 10.0001, Lon: 10}, []byte("near"), InsertOptions{}))

	hits, err := eng.FindNearby("ns", p, 0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, []byte("exact"), hits[0].Value)
}

func TestEngine_FindNearby_ZeroLimitReturnsAllMatches(t *testing.T) {
	eng := openTestEngine(t, "")
	insertCities(t, eng)

	hits, err := eng.FindNearby("cities", Point{Lat: 40.7128, Lon: -74.0060}, 6_000_000, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}
