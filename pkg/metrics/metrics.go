// Package metrics provides Prometheus instrumentation for the registration
// server: ceremony counters, HTTP request metrics, and resource gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all server metrics
	Namespace = "regeester"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"
)

var (
	// CeremoniesTotal tracks completed passkey ceremonies by kind and outcome.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of passkey ceremonies by kind and outcome",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// CeremonyDuration tracks the server-side duration of ceremony verification.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of passkey ceremony verification in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelCeremony},
	)

	// SubmissionsTotal tracks accepted form submissions.
	SubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Total number of accepted form submissions",
		},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// ActiveConnections tracks the number of in-flight HTTP requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// Enable turns metrics collection on.
func Enable() { enabled.Store(true) }

// Disable turns metrics collection off. Recording functions become no-ops.
func Disable() { enabled.Store(false) }

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool { return enabled.Load() }

// RecordCeremony records a completed ceremony attempt.
//
// Example:
//
//	start := time.Now()
//	_, _, err := svc.FinishLogin(ctx, email, response)
//	metrics.RecordCeremony(metrics.CeremonyAuthentication, err == nil, time.Since(start).Seconds())
func RecordCeremony(ceremony string, ok bool, duration float64) {
	if !enabled.Load() {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusError
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordSubmission records an accepted form submission.
func RecordSubmission() {
	if !enabled.Load() {
		return
	}
	SubmissionsTotal.Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}
