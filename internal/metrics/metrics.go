// Package metrics exposes Prometheus collectors for the HTTP layer and
// the booking flow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create as many as they
// like without colliding on the default one.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bookings        *prometheus.CounterVec
	rebookDuration  prometheus.Histogram
	verifications   *prometheus.CounterVec
	partialReleases prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk_booking",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "desk_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk_booking",
			Name:      "booking_attempts_total",
			Help:      "Booking confirmations by outcome.",
		}, []string{"outcome"}),
		rebookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "desk_booking",
			Name:      "booking_confirm_duration_seconds",
			Help:      "Time from token submission to outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "desk_booking",
			Name:      "verifications_total",
			Help:      "Verification service calls by result.",
		}, []string{"result"}),
		partialReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "desk_booking",
			Name:      "partial_releases_total",
			Help:      "Committed bookings that left old seats held.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.bookings, m.rebookDuration, m.verifications, m.partialReleases,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records one served request.  A nil *Metrics is a no-op.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveBooking records the outcome of a confirm call.  outcome is
// "committed" or a failure kind.
func (m *Metrics) ObserveBooking(outcome string, d time.Duration, partial bool) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
	m.rebookDuration.Observe(d.Seconds())
	if partial {
		m.partialReleases.Inc()
	}
}

// ObserveVerification records a call to the verification service.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}
