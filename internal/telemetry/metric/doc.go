// Package metric provides Prometheus metrics for svcreg.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: the Registry, its counters and the /metrics handler
//   - collector.go: a collector that samples registry size on scrape
//
// Registry implements service.Recorder, so the registry core reports into
// it without importing Prometheus.
package metric
