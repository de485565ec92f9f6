// Package metrics exposes Prometheus instrumentation for the streamer.
//
// All collectors are registered against a caller-provided registry so tests
// can use an isolated one. A nil *StreamMetrics disables instrumentation;
// every method is nil-safe.
package metrics
