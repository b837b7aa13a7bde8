package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	Notifications        *prometheus.CounterVec
	DispatchRuns         *prometheus.CounterVec
	Classifications      *prometheus.CounterVec
	AuditPublishFailures prometheus.Counter
	RateLimited          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "employeehub_http_requests_total",
			Help: "HTTP requests by method, route pattern and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "employeehub_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "employeehub_notifications_total",
			Help: "Compliance notifications by outcome (sent, skipped, failed) and type",
		}, []string{"outcome", "type"}),
		DispatchRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "employeehub_notification_dispatch_runs_total",
			Help: "Notification dispatch runs by result",
		}, []string{"result"}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "employeehub_compliance_classifications_total",
			Help: "Computed compliance classifications by domain and status",
		}, []string{"domain", "status"}),
		AuditPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "employeehub_audit_publish_failures_total",
			Help: "Audit events that could not be fanned out to the event stream",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "employeehub_rate_limited_total",
			Help: "Requests rejected by a rate limiter",
		}, []string{"limiter"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) IncNotification(outcome, notificationType string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome, notificationType).Inc()
	}
}

func (m *Metrics) IncDispatchRun(result string) {
	if m != nil {
		m.DispatchRuns.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveClassification(domain, status string) {
	if m != nil {
		m.Classifications.WithLabelValues(domain, status).Inc()
	}
}

func (m *Metrics) IncAuditPublishFailure() {
	if m != nil {
		m.AuditPublishFailures.Inc()
	}
}

func (m *Metrics) IncRateLimited(limiter string) {
	if m != nil {
		m.RateLimited.WithLabelValues(limiter).Inc()
	}
}
