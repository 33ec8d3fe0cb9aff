package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters/histograms for the HTTP surface and the
// appointment lifecycle.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	videoTokensSent *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telepharmacy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telepharmacy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP request handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telepharmacy",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment status transition attempts",
		}, []string{"action", "result"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telepharmacy",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Appointment booking attempts",
		}, []string{"result"}),
		videoTokensSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telepharmacy",
			Subsystem: "video",
			Name:      "tokens_issued_total",
			Help:      "Video room tokens issued",
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.transitions, m.bookingsTotal, m.videoTokensSent)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTransition records a transition attempt. result is "ok" or an error class.
func (m *Metrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

// ObserveVideoToken counts issued tokens by source, such as "join".
func (m *Metrics) ObserveVideoToken(source string) {
	if m == nil {
		return
	}
	m.videoTokensSent.WithLabelValues(source).Inc()
}
