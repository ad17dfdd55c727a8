package render

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Part outcomes reported by Metrics
const (
	OutcomeRendered = "rendered"
	OutcomeCached   = "cached"
	OutcomeFailed   = "failed"
)

// Metrics collects render counters on a private registry
type Metrics struct {
	registry  *prometheus.Registry
	parts     *prometheus.CounterVec
	duration  prometheus.Histogram
	meshBytes prometheus.Counter
	fallbacks prometheus.Counter
}

// NewMetrics creates render metrics on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		parts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scadforge",
			Name:      "parts_total",
			Help:      "Parts processed, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scadforge",
			Name:      "part_render_seconds",
			Help:      "Wall time to produce one part's mesh.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		meshBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scadforge",
			Name:      "mesh_bytes_total",
			Help:      "Bytes of mesh produced.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scadforge",
			Name:      "fallback_scripts_total",
			Help:      "Scripts rendered without export markers.",
		}),
	}
	m.registry.MustRegister(m.parts, m.duration, m.meshBytes, m.fallbacks)
	return m
}

// Registry exposes the registry for scraping or tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the current metrics in text exposition format
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(r *PartResult) {
	if m == nil {
		return
	}
	switch {
	case r.Failed():
		m.parts.WithLabelValues(OutcomeFailed).Inc()
		return
	case r.Cached:
		m.parts.WithLabelValues(OutcomeCached).Inc()
	default:
		m.parts.WithLabelValues(OutcomeRendered).Inc()
		m.duration.Observe(r.Duration.Seconds())
	}
	m.meshBytes.Add(float64(len(r.Mesh)))
}

func (m *Metrics) fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}
