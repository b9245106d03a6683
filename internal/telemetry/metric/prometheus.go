// Package metric provides Prometheus metrics for pixelflut.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pixelflut"

// Command labels used with AddCommands.
const (
	CommandHelp        = "help"
	CommandSize        = "size"
	CommandGetPixel    = "px_get"
	CommandSetPixel    = "px_set"
	CommandOutOfBounds = "px_oob"
	CommandState       = "state"
	CommandMalformed   = "malformed"
)

// Registry holds all application metrics on a private prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Connection metrics
	ConnectionsActive *prometheus.GaugeVec
	ConnectionsTotal  *prometheus.CounterVec
	BytesReceived     *prometheus.CounterVec
	LimitExceeded     *prometheus.CounterVec
	DatagramsDropped  prometheus.Counter

	// Protocol metrics
	CommandsTotal *prometheus.CounterVec

	// Snapshot metrics
	SnapshotDuration    prometheus.Histogram
	SnapshotSize        prometheus.Gauge
	SnapshotFailures    prometheus.Counter
	SnapshotLastSuccess prometheus.Gauge
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		ConnectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections.",
		}, []string{"transport"}),
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Number of accepted client connections.",
		}, []string{"transport"}),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Protocol bytes received from clients.",
		}, []string{"transport"}),
		LimitExceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_limit_exceeded_total",
			Help:      "Connections closed for exceeding a protocol limit.",
		}, []string{"transport"}),
		DatagramsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "udp_datagrams_dropped_total",
			Help:      "UDP datagrams dropped because every worker queue was full.",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Decoded protocol commands by kind.",
		}, []string{"command"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Time spent writing canvas snapshots.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SnapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_size_bytes",
			Help:      "Size of the last written snapshot.",
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Snapshot writes that failed.",
		}),
		SnapshotLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot.",
		}),
	}

	reg.MustRegister(
		r.ConnectionsActive,
		r.ConnectionsTotal,
		r.BytesReceived,
		r.LimitExceeded,
		r.DatagramsDropped,
		r.CommandsTotal,
		r.SnapshotDuration,
		r.SnapshotSize,
		r.SnapshotFailures,
		r.SnapshotLastSuccess,
	)

	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Register adds a custom collector to the registry.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for tests and tooling.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// IncConnection records a newly opened connection.
func (r *Registry) IncConnection(transport string) {
	r.ConnectionsTotal.WithLabelValues(transport).Inc()
	r.ConnectionsActive.WithLabelValues(transport).Inc()
}

// DecConnection records a closed connection.
func (r *Registry) DecConnection(transport string) {
	r.ConnectionsActive.WithLabelValues(transport).Dec()
}

// AddBytesReceived records n protocol bytes read from a transport.
func (r *Registry) AddBytesReceived(transport string, n int) {
	if n > 0 {
		r.BytesReceived.WithLabelValues(transport).Add(float64(n))
	}
}

// IncLimitExceeded records a connection closed for a protocol limit.
func (r *Registry) IncLimitExceeded(transport string) {
	r.LimitExceeded.WithLabelValues(transport).Inc()
}

// IncDatagramDropped records a UDP datagram dropped before decoding.
func (r *Registry) IncDatagramDropped() {
	r.DatagramsDropped.Inc()
}

// AddCommands records n decoded commands of one kind.
func (r *Registry) AddCommands(command string, n int) {
	if n > 0 {
		r.CommandsTotal.WithLabelValues(command).Add(float64(n))
	}
}

// ObserveSnapshot records a successful snapshot write.
func (r *Registry) ObserveSnapshot(seconds float64, sizeBytes int64, unixSeconds float64) {
	r.SnapshotDuration.Observe(seconds)
	r.SnapshotSize.Set(float64(sizeBytes))
	r.SnapshotLastSuccess.Set(unixSeconds)
}

// IncSnapshotFailure records a failed snapshot write.
func (r *Registry) IncSnapshotFailure() {
	r.SnapshotFailures.Inc()
}
