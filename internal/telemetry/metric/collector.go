// Package metric provides Prometheus metrics for pixelflut.
package metric

import "github.com/prometheus/client_golang/prometheus"

// CanvasStats is the read-only view the collector samples on each scrape.
type CanvasStats interface {
	Size() (width, height int)
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Count() int
}

// Collector exposes canvas and session state computed at scrape time.
type Collector struct {
	canvas   CanvasStats
	sessions SessionCounter

	widthDesc    *prometheus.Desc
	heightDesc   *prometheus.Desc
	sessionsDesc *prometheus.Desc
}

// NewCollector creates a collector. sessions may be nil.
func NewCollector(canvas CanvasStats, sessions SessionCounter) *Collector {
	return &Collector{
		canvas:   canvas,
		sessions: sessions,
		widthDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "canvas", "width_pixels"),
			"Configured canvas width.", nil, nil),
		heightDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "canvas", "height_pixels"),
			"Configured canvas height.", nil, nil),
		sessionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sessions_registered"),
			"Sessions currently tracked by the session registry.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.widthDesc
	ch <- c.heightDesc
	if c.sessions != nil {
		ch <- c.sessionsDesc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	w, h := c.canvas.Size()
	ch <- prometheus.MustNewConstMetric(c.widthDesc, prometheus.GaugeValue, float64(w))
	ch <- prometheus.MustNewConstMetric(c.heightDesc, prometheus.GaugeValue, float64(h))
	if c.sessions != nil {
		ch <- prometheus.MustNewConstMetric(c.sessionsDesc, prometheus.GaugeValue, float64(c.sessions.Count()))
	}
}
