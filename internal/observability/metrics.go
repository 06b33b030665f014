package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	classified      *prometheus.GaugeVec
	critical        *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maintenance_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_notification_deliveries_total",
			Help: "Email deliveries by report and outcome.",
		}, []string{"report", "outcome"}),
		classified: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "maintenance_classified_tickets",
			Help: "Tickets flagged by the last deadline run.",
		}, []string{"bucket"}),
		critical: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_critical_conditions_total",
			Help: "Critical condition breaches by fault category.",
		}, []string{"category"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_escalation_runs_total",
			Help: "Deadline escalation runs by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maintenance_escalation_run_duration_seconds",
			Help:    "Wall time of deadline escalation runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.errors,
		m.deliveries, m.classified, m.critical, m.runs, m.runDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordDelivery counts one email attempt for a report.
func (m *Metrics) RecordDelivery(report string, ok bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.deliveries.WithLabelValues(report, outcome).Inc()
}

// SetClassified records bucket sizes of the latest run.
func (m *Metrics) SetClassified(bucket string, n int) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(bucket).Set(float64(n))
}

// RecordCriticalCondition counts a breached category.
func (m *Metrics) RecordCriticalCondition(category string) {
	if m == nil {
		return
	}
	m.critical.WithLabelValues(category).Inc()
}

// RecordEscalationRun counts a finished run.
func (m *Metrics) RecordEscalationRun(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(duration.Seconds())
}
