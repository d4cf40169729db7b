package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Watcher tick counters
	Ticks        atomic.Uint64
	TicksSkipped atomic.Uint64
	TicksQueued  atomic.Uint64

	// Recognition counters
	FacesRecognized atomic.Uint64
	FacesUnknown    atomic.Uint64
	Marks           atomic.Uint64

	// Error counters
	RecognizerErrors atomic.Uint64
	CameraErrors     atomic.Uint64

	// Live state
	ActiveSessions atomic.Uint64
	InFlight       atomic.Uint64 // 0 or 1 per session aggregate

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_ticks_total",
			Help: "Total watcher ticks executed",
		},
		func() float64 { return float64(m.Ticks.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_ticks_skipped_total",
			Help: "Total ticks skipped because a detection request was in flight",
		},
		func() float64 { return float64(m.TicksSkipped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_ticks_queued_total",
			Help: "Total overlapping ticks queued for execution",
		},
		func() float64 { return float64(m.TicksQueued.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_faces_recognized_total",
			Help: "Total detections matched to an enrolled person",
		},
		func() float64 { return float64(m.FacesRecognized.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_faces_unknown_total",
			Help: "Total detections matching no enrolled person",
		},
		func() float64 { return float64(m.FacesUnknown.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_marks_total",
			Help: "Total attendance marks emitted",
		},
		func() float64 { return float64(m.Marks.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_recognizer_errors_total",
			Help: "Total failed detection requests",
		},
		func() float64 { return float64(m.RecognizerErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_camera_errors_total",
			Help: "Total camera frame read errors",
		},
		func() float64 { return float64(m.CameraErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_active_sessions",
			Help: "Number of running watch sessions",
		},
		func() float64 { return float64(m.ActiveSessions.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "attendance_detections_in_flight",
			Help: "Detection requests currently in flight",
		},
		func() float64 { return float64(m.InFlight.Load()) },
	))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
