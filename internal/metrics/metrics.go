// Package metrics registers the engine's Prometheus collectors
// against a private registry rather than the global default one, so
// opening more than one engine in a process (as the test suite does)
// never panics on a duplicate registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine updates.
type Metrics struct {
	Registry *prometheus.Registry

	InsertsTotal  prometheus.Counter
	DeletesTotal  prometheus.Counter
	GetsTotal     prometheus.Counter
	GetHitsTotal  prometheus.Counter
	BatchesTotal  prometheus.Counter
	BatchAborts   prometheus.Counter

	RadiusQueriesTotal prometheus.Counter
	BBoxQueriesTotal   prometheus.Counter
	KNNQueriesTotal    prometheus.Counter
	QueryCandidates    prometheus.Histogram

	TrajectoryInsertsTotal prometheus.Counter
	TrajectoryQueriesTotal prometheus.Counter

	ReaperSweepsTotal  prometheus.Counter
	ReaperRemovedTotal prometheus.Counter

	AOLBytesWritten prometheus.Counter
	AOLRewritesTotal prometheus.Counter
	AOLRewriteErrors prometheus.Counter
	AOLSizeBytes     prometheus.Gauge

	KeysTotal  prometheus.Gauge
	PointsTotal prometheus.Gauge
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,

		InsertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "engine", Name: "inserts_total",
			Help: "Total number of Insert/InsertPoint calls.",
		}),
		DeletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "engine", Name: "deletes_total",
			Help: "Total number of keys removed by Delete and DeleteTrajectory calls.",
		}),
		GetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "engine", Name: "gets_total",
			Help: "Total number of Get calls.",
		}),
		GetHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "engine", Name: "get_hits_total",
			Help: "Total number of Get calls that found a live record.",
		}),
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "engine", Name: "batches_total",
			Help: "Total number of Atomic batches committed.",
		}),
		BatchAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "engine", Name: "batch_aborts_total",
			Help: "Total number of Atomic batches aborted.",
		}),

		RadiusQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "spatial", Name: "radius_queries_total",
			Help: "Total number of FindNearby/CountWithinDistance calls.",
		}),
		BBoxQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "spatial", Name: "bbox_queries_total",
			Help: "Total number of FindWithinBounds/IntersectsBounds calls.",
		}),
		KNNQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "spatial", Name: "knn_queries_total",
			Help: "Total number of k-nearest-neighbour queries.",
		}),
		QueryCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spatiodb", Subsystem: "spatial", Name: "query_candidates",
			Help:    "Number of geohash-window candidates evaluated per spatial query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),

		TrajectoryInsertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "trajectory", Name: "inserts_total",
			Help: "Total number of trajectory samples inserted.",
		}),
		TrajectoryQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "trajectory", Name: "queries_total",
			Help: "Total number of trajectory range queries.",
		}),

		ReaperSweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "reaper", Name: "sweeps_total",
			Help: "Total number of TTL reaper sweeps.",
		}),
		ReaperRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "reaper", Name: "removed_total",
			Help: "Total number of records removed by the TTL reaper.",
		}),

		AOLBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "aol", Name: "bytes_written_total",
			Help: "Total bytes of Put frames appended to the log by single-key writes; Delete and Atomic batch frames are not counted.",
		}),
		AOLRewritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "aol", Name: "rewrites_total",
			Help: "Total number of completed log rewrites.",
		}),
		AOLRewriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spatiodb", Subsystem: "aol", Name: "rewrite_errors_total",
			Help: "Total number of failed log rewrite attempts.",
		}),
		AOLSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spatiodb", Subsystem: "aol", Name: "size_bytes",
			Help: "Current log file size in bytes.",
		}),

		KeysTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spatiodb", Subsystem: "store", Name: "keys_total",
			Help: "Current number of live keys.",
		}),
		PointsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spatiodb", Subsystem: "store", Name: "points_total",
			Help: "Current number of indexed spatial points.",
		}),
	}

	reg.MustRegister(
		m.InsertsTotal, m.DeletesTotal, m.GetsTotal, m.GetHitsTotal, m.BatchesTotal, m.BatchAborts,
		m.RadiusQueriesTotal, m.BBoxQueriesTotal, m.KNNQueriesTotal, m.QueryCandidates,
		m.TrajectoryInsertsTotal, m.TrajectoryQueriesTotal,
		m.ReaperSweepsTotal, m.ReaperRemovedTotal,
		m.AOLBytesWritten, m.AOLRewritesTotal, m.AOLRewriteErrors, m.AOLSizeBytes,
		m.KeysTotal, m.PointsTotal,
	)
	return m
}
