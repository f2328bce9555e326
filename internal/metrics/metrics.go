// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the consolidation pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// The primary use case is instrumentation of the pipeline stages (read,
// normalize, lookups, post, export) without coupling the core logic to a
// specific metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage measures latency + success/failure for one pipeline stage of
// a country run.
func RecordStage(country, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"country": country,
		"stage":   stage,
		"status":  status,
	}

	backend.IncCounter("consolidation_stage_total", 1, lbls)
	backend.ObserveHistogram("consolidation_stage_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given country and kind.
//
// Typical kinds mirror the run summary fields, e.g.:
//   - "read"
//   - "normalized"
//   - "filtered"
//   - "monto_dropped"
//   - "exported"
func RecordRows(country, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("consolidation_rows_total", float64(delta), Labels{
		"country": country,
		"kind":    kind,
	})
}

// RecordLookup counts matched rows for one master-data lookup.
func RecordLookup(country, lookup string, matched int64) {
	if matched <= 0 {
		return
	}
	backend.IncCounter("consolidation_lookup_matches_total", float64(matched), Labels{
		"country": country,
		"lookup":  lookup,
	})
}
