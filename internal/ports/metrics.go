package ports

// Metrics records pipeline outcomes for monitoring.
type Metrics interface {
	RecordRun(operation string, ok bool)
	RecordError(kind string)
	RecordLatency(stage string, seconds float64)
	RecordCollection(included, excluded int)
	RecordFit(inertia float64, iterations int)
}
