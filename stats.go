package spatiodb

// Stats is a snapshot of the engine's internal state, useful for
// dashboards and tests but not itself part of the durable data model.
type Stats struct {
	KeyCount     int
	PointCount   int
	LiveBytes    int64
	TotalBytes   int64
	RewriteCount uint64
}
