// Package metrics exposes Prometheus counters and histograms for the
// authentication pipeline. A nil *Metrics is valid and records nothing, so
// callers never need to guard metric calls.
package metrics
