package blockpool

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting pool metrics.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see package promcollector).
//
// Collectors are called on hot paths, including from goroutines that are
// dropping references, and must be safe for concurrent use.
type MetricsCollector interface {
	// RecordEmplace is called after each emplace. err is nil if successful.
	RecordEmplace(duration time.Duration, err error)

	// RecordGrow is called after a block was appended.
	RecordGrow(blocks, capacity int)

	// RecordDestroy is called after an object's destruction ran.
	// deferred reports whether it ran from a deferred drain.
	RecordDestroy(deferred bool, err error)

	// RecordDrain is called after a deferred-destruction drain with the number
	// of entries processed.
	RecordDrain(entries int, duration time.Duration)

	// RecordUpgrade is called after each weak-to-strong upgrade attempt.
	RecordUpgrade(ok bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEmplace(time.Duration, error) {}
func (NoopMetricsCollector) RecordGrow(int, int)                {}
func (NoopMetricsCollector) RecordDestroy(bool, error)          {}
func (NoopMetricsCollector) RecordDrain(int, time.Duration)     {}
func (NoopMetricsCollector) RecordUpgrade(bool)                 {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EmplaceCount      atomic.Int64
	EmplaceErrors     atomic.Int64
	EmplaceTotalNanos atomic.Int64
	GrowCount         atomic.Int64
	Capacity          atomic.Int64
	DestroyCount      atomic.Int64
	DeferredDestroys  atomic.Int64
	DestroyErrors     atomic.Int64
	DrainCount        atomic.Int64
	DrainEntries      atomic.Int64
	UpgradeCount      atomic.Int64
	UpgradeFailures   atomic.Int64
}

// RecordEmplace implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmplace(duration time.Duration, err error) {
	b.EmplaceCount.Add(1)
	b.EmplaceTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EmplaceErrors.Add(1)
	}
}

// RecordGrow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrow(_, capacity int) {
	b.GrowCount.Add(1)
	b.Capacity.Store(int64(capacity))
}

// RecordDestroy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDestroy(deferred bool, err error) {
	b.DestroyCount.Add(1)
	if deferred {
		b.DeferredDestroys.Add(1)
	}
	if err != nil {
		b.DestroyErrors.Add(1)
	}
}

// RecordDrain implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDrain(entries int, _ time.Duration) {
	b.DrainCount.Add(1)
	b.DrainEntries.Add(int64(entries))
}

// RecordUpgrade implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpgrade(ok bool) {
	b.UpgradeCount.Add(1)
	if !ok {
		b.UpgradeFailures.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		EmplaceCount:     b.EmplaceCount.Load(),
		EmplaceErrors:    b.EmplaceErrors.Load(),
		EmplaceAvgNanos:  b.getAvgEmplaceNanos(),
		GrowCount:        b.GrowCount.Load(),
		Capacity:         b.Capacity.Load(),
		DestroyCount:     b.DestroyCount.Load(),
		DeferredDestroys: b.DeferredDestroys.Load(),
		DestroyErrors:    b.DestroyErrors.Load(),
		DrainCount:       b.DrainCount.Load(),
		DrainEntries:     b.DrainEntries.Load(),
		UpgradeCount:     b.UpgradeCount.Load(),
		UpgradeFailures:  b.UpgradeFailures.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgEmplaceNanos() int64 {
	count := b.EmplaceCount.Load()
	if count == 0 {
		return 0
	}
	return b.EmplaceTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	EmplaceCount     int64
	EmplaceErrors    int64
	EmplaceAvgNanos  int64
	GrowCount        int64
	Capacity         int64
	DestroyCount     int64
	DeferredDestroys int64
	DestroyErrors    int64
	DrainCount       int64
	DrainEntries     int64
	UpgradeCount     int64
	UpgradeFailures  int64
}
