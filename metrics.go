package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the DSP-scoped Prometheus surface described in
// SPEC_FULL.md's "Metrics surface" supplemented feature: frames
// produced, frame period jitter, per-client drops, dispatch duration,
// squelch gauge per session, and active session counts by kind. It
// replaces the teacher's sprawling noise-floor/decoder metric set, which
// has no DSP-core analogue in this spec.
type Metrics struct {
	FramesProduced   *prometheus.CounterVec
	FramePeriodMs    prometheus.Histogram
	ClientDropped    *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	SquelchOpen      *prometheus.GaugeVec
	ActiveSessions   *prometheus.GaugeVec
	GPUFailures      *prometheus.CounterVec
}

// NewMetrics registers every collector against reg. Pass a fresh
// prometheus.Registry per process; tests can use prometheus.NewRegistry()
// to avoid colliding with the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesProduced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novasdr",
			Name:      "frames_produced_total",
			Help:      "SpectrumFrames produced, per receiver id.",
		}, []string{"receiver"}),
		FramePeriodMs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "novasdr",
			Name:      "frame_period_ms",
			Help:      "Observed inter-frame period in milliseconds.",
			Buckets:   prometheus.LinearBuckets(5, 5, 20),
		}),
		ClientDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novasdr",
			Name:      "client_dropped_frames_total",
			Help:      "Frames dropped due to a full per-client queue, per client kind.",
		}, []string{"kind"}),
		DispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "novasdr",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time for one Dispatcher pass over all registered clients.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		SquelchOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "novasdr",
			Name:      "squelch_open",
			Help:      "1 if the given audio session's squelch gate is open, else 0.",
		}, []string{"session"}),
		ActiveSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "novasdr",
			Name:      "active_sessions",
			Help:      "Currently registered sessions, per client kind.",
		}, []string{"kind"}),
		GPUFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novasdr",
			Name:      "gpu_submission_failures_total",
			Help:      "FFT submission failures on a GPU-backed engine, per accelerator.",
		}, []string{"accelerator"}),
	}
}

// ReportSessionCounts publishes the registry's current per-kind counts.
func (m *Metrics) ReportSessionCounts(r *ClientRegistry) {
	audio, waterfall, events, chat := r.Counts()
	m.ActiveSessions.WithLabelValues("audio").Set(float64(audio))
	m.ActiveSessions.WithLabelValues("waterfall").Set(float64(waterfall))
	m.ActiveSessions.WithLabelValues("events").Set(float64(events))
	m.ActiveSessions.WithLabelValues("chat").Set(float64(chat))
}
