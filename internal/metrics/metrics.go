// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from migration runs.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems stay isolated in subpackages (see prompush);
//     the engine depends only on this interface.
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
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
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
func Flush() error { return backend.Flush() }

// RecordPhase measures one migration phase: duration plus per-outcome record
// counts, all labeled with the phase name.
func RecordPhase(phase string, d time.Duration, succeeded, failed, skipped, invalid int) {
	l := Labels{"phase": phase}
	backend.ObserveHistogram("migrate_phase_duration_seconds", d.Seconds(), l)
	backend.IncCounter("migrate_records_total", float64(succeeded), withStatus(l, "succeeded"))
	backend.IncCounter("migrate_records_total", float64(failed), withStatus(l, "failed"))
	backend.IncCounter("migrate_records_total", float64(skipped), withStatus(l, "skipped"))
	backend.IncCounter("migrate_records_total", float64(invalid), withStatus(l, "invalid"))
}

// RecordLookup reports one reference index's resolved/unresolved counts.
func RecordLookup(phase, index string, resolved, unresolved int) {
	backend.IncCounter("migrate_lookups_total", float64(resolved),
		Labels{"phase": phase, "index": index, "status": "resolved"})
	backend.IncCounter("migrate_lookups_total", float64(unresolved),
		Labels{"phase": phase, "index": index, "status": "unresolved"})
}

func withStatus(l Labels, status string) Labels {
	out := Labels{"status": status}
	for k, v := range l {
		out[k] = v
	}
	return out
}
