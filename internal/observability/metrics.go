package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the service. Each instance owns
// a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	stepFailures     *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	authzDenials     *prometheus.CounterVec
	externalErrors   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		stepFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_workflow_step_failures_total",
				Help: "Failed steps of multi-step workflows.",
			},
			[]string{"workflow", "step", "policy"},
		),
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_workflow_duration_seconds",
				Help:    "Duration of multi-step workflows.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"workflow"},
		),
		authzDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_authorization_denials_total",
				Help: "Requests rejected by the access gate.",
			},
			[]string{"action"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_external_errors_total",
				Help: "Errors from the identity registry, object store and geocoder.",
			},
			[]string{"service"},
		),
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) IncrStepFailure(workflow, step, policy string) {
	m.stepFailures.WithLabelValues(workflow, step, policy).Inc()
}

func (m *Metrics) RecordWorkflowDuration(workflow string, d time.Duration) {
	m.workflowDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

func (m *Metrics) IncrAuthorizationDenial(action string) {
	m.authzDenials.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}
