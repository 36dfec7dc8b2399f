package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Governor metrics
	AdmissionsTotal    *prometheus.CounterVec
	RejectionsTotal    *prometheus.CounterVec
	ReportsTotal       *prometheus.CounterVec
	AcquireWait        *prometheus.HistogramVec
	BackoffScheduled   *prometheus.HistogramVec
	InFlight           *prometheus.GaugeVec
	QueueDepth         *prometheus.GaugeVec
	BreakerOpen        *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec

	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      *prometheus.CounterVec

	// System metrics
	SourcesConfigured prometheus.Gauge
	Uptime            prometheus.GaugeFunc
	startTime         time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalAdmissions int64
	TotalRejections int64
	ActiveStreams   int64
	TotalWait       float64 // sum of all acquire waits
	AdmissionCount  int64   // count for averaging
}

// New creates a metrics collector registered on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftwatch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Governor metrics
		AdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_governor_admissions_total",
				Help: "Total number of admitted source calls",
			},
			[]string{"source"},
		),
		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_governor_rejections_total",
				Help: "Total number of calls rejected by an open breaker",
			},
			[]string{"source"},
		),
		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_governor_reports_total",
				Help: "Total number of reported call outcomes",
			},
			[]string{"source", "outcome"},
		),
		AcquireWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftwatch_governor_acquire_wait_seconds",
				Help:    "Time callers spent waiting for admission",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		BackoffScheduled: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftwatch_governor_backoff_seconds",
				Help:    "Backoff delays scheduled after failures",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 60, 120, 180},
			},
			[]string{"source"},
		),
		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "driftwatch_governor_in_flight",
				Help: "Admitted calls awaiting an outcome report",
			},
			[]string{"source"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "driftwatch_governor_queue_depth",
				Help: "Callers queued for a concurrency slot",
			},
			[]string{"source"},
		),
		BreakerOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "driftwatch_governor_breaker_open",
				Help: "Whether the source breaker is open (1) or closed (0)",
			},
			[]string{"source"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_governor_breaker_transitions_total",
				Help: "Total number of breaker state transitions",
			},
			[]string{"source", "from", "to"},
		),

		// Fetch metrics
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_fetches_total",
				Help: "Total number of upstream fetches",
			},
			[]string{"source", "status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftwatch_fetch_duration_seconds",
				Help:    "Upstream fetch duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "driftwatch_ws_connections",
				Help: "Number of active WebSocket stream subscribers",
			},
		),
		WSEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftwatch_ws_events_total",
				Help: "Total number of events broadcast to stream subscribers",
			},
			[]string{"type"},
		),

		// System metrics
		SourcesConfigured: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "driftwatch_sources_configured",
				Help: "Number of governed sources",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "driftwatch_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// NewDefault creates a metrics collector on the default Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordAdmission records an admitted source call
func (m *Metrics) RecordAdmission(source string) {
	m.AdmissionsTotal.WithLabelValues(source).Inc()

	m.mu.Lock()
	m.snapshot.TotalAdmissions++
	m.mu.Unlock()
}

// RecordRejection records a call rejected by an open breaker
func (m *Metrics) RecordRejection(source string) {
	m.RejectionsTotal.WithLabelValues(source).Inc()

	m.mu.Lock()
	m.snapshot.TotalRejections++
	m.mu.Unlock()
}

// RecordReport records a reported call outcome
func (m *Metrics) RecordReport(source, outcome string) {
	m.ReportsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveAcquireWait records how long a caller waited for admission
func (m *Metrics) ObserveAcquireWait(source string, d time.Duration) {
	m.AcquireWait.WithLabelValues(source).Observe(d.Seconds())

	m.mu.Lock()
	m.snapshot.TotalWait += d.Seconds()
	m.snapshot.AdmissionCount++
	m.mu.Unlock()
}

// ObserveBackoff records a scheduled backoff delay
func (m *Metrics) ObserveBackoff(source string, d time.Duration) {
	m.BackoffScheduled.WithLabelValues(source).Observe(d.Seconds())
}

// SetInFlight sets the number of admitted calls awaiting a report
func (m *Metrics) SetInFlight(source string, count int) {
	m.InFlight.WithLabelValues(source).Set(float64(count))
}

// SetQueueDepth sets the number of callers queued for a slot
func (m *Metrics) SetQueueDepth(source string, count int) {
	m.QueueDepth.WithLabelValues(source).Set(float64(count))
}

// SetBreakerOpen sets the breaker gauge for a source
func (m *Metrics) SetBreakerOpen(source string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.BreakerOpen.WithLabelValues(source).Set(v)
}

// RecordBreakerTransition records a breaker state transition
func (m *Metrics) RecordBreakerTransition(source, from, to string) {
	m.BreakerTransitions.WithLabelValues(source, from, to).Inc()
}

// RecordFetch records an upstream fetch
func (m *Metrics) RecordFetch(source, status string, duration time.Duration) {
	m.FetchesTotal.WithLabelValues(source, status).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordWSEvent records an event broadcast to stream subscribers
func (m *Metrics) RecordWSEvent(eventType string) {
	m.WSEvents.WithLabelValues(eventType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()

	m.mu.Lock()
	m.snapshot.ActiveStreams++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()

	m.mu.Lock()
	m.snapshot.ActiveStreams--
	m.mu.Unlock()
}

// SetSourcesConfigured sets the number of governed sources
func (m *Metrics) SetSourcesConfigured(count int) {
	m.SourcesConfigured.Set(float64(count))
}
