package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("GET", "/api/v1/appointments", 200, 20*time.Millisecond)
	m.ObserveRequest("GET", "/api/v1/appointments", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)
	m.ObserveTransition("confirm", "ok")
	m.ObserveTransition("confirm", "conflict")
	m.ObserveBooking("ok")
	m.ObserveVideoToken("join")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/v1/appointments", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("confirm", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.videoTokensSent.WithLabelValues("join")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/health", 200, time.Millisecond)
	m.ObserveTransition("start", "ok")
	m.ObserveBooking("ok")
	m.ObserveVideoToken("direct")
}
