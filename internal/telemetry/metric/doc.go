// Package metric provides Prometheus metrics for pixelflut.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, connection/command/snapshot metrics, HTTP handler
//   - collector.go: scrape-time collector for canvas size and session count
//
// Hot paths batch their updates: the protocol handler counts commands per
// payload and calls AddCommands once per kind instead of once per command.
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
