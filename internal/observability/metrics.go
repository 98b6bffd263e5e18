package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	contactSubmissions    *prometheus.CounterVec
	contactRelayDuration  *prometheus.HistogramVec
	contactFormsActive    prometheus.Gauge
	contactFormTransition *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		contactSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact submissions by form origin and outcome.",
		}, []string{"origin", "outcome"})

		contactRelayDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contact_relay_duration_seconds",
			Help:    "Duration of calls to the email relay.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"origin"})

		contactFormsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contact_forms_active",
			Help: "Number of mounted contact form instances.",
		})

		contactFormTransition = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_form_transitions_total",
			Help: "State transitions applied to contact forms.",
		}, []string{"from", "to"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			contactSubmissions,
			contactRelayDuration,
			contactFormsActive,
			contactFormTransition,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ContactSubmissions exposes the submission outcome counter.
func ContactSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return contactSubmissions
}

// ContactRelayDuration exposes the relay call latency histogram.
func ContactRelayDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return contactRelayDuration
}

// ContactFormsActive exposes the mounted form gauge.
func ContactFormsActive() prometheus.Gauge {
	RegisterMetrics()
	return contactFormsActive
}

// ContactFormTransitions exposes the state transition counter.
func ContactFormTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return contactFormTransition
}
