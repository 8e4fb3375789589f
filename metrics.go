package umapgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordBuild is called after each neighbor index build.
	// count is the number of indexed points, err is nil if successful.
	RecordBuild(method Method, count int, duration time.Duration, err error)

	// RecordQuery is called after each neighbor query.
	// k is the number of neighbors requested, found the number returned.
	RecordQuery(k, found int, duration time.Duration, err error)

	// RecordRun is called after each optimizer slice.
	// epochs is the number of epochs the slice performed.
	RecordRun(epochs int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(Method, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordRun(int, time.Duration)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildPoints     atomic.Int64
	BuildTotalNanos atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryResults    atomic.Int64
	QueryTotalNanos atomic.Int64
	RunCount        atomic.Int64
	RunEpochs       atomic.Int64
	RunTotalNanos   atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ Method, count int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildPoints.Add(int64(count))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_, found int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.QueryResults.Add(int64(found))
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(epochs int, duration time.Duration) {
	b.RunCount.Add(1)
	b.RunEpochs.Add(int64(epochs))
	b.RunTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:    b.BuildCount.Load(),
		BuildErrors:   b.BuildErrors.Load(),
		BuildPoints:   b.BuildPoints.Load(),
		BuildAvgNanos: avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		QueryCount:    b.QueryCount.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryResults:  b.QueryResults.Load(),
		QueryAvgNanos: avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		RunCount:      b.RunCount.Load(),
		RunEpochs:     b.RunEpochs.Load(),
		EpochAvgNanos: avg(b.RunTotalNanos.Load(), b.RunEpochs.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount    int64
	BuildErrors   int64
	BuildPoints   int64
	BuildAvgNanos int64
	QueryCount    int64
	QueryErrors   int64
	QueryResults  int64
	QueryAvgNanos int64
	RunCount      int64
	RunEpochs     int64
	EpochAvgNanos int64
}
