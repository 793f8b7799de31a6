package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBooking(t *testing.T) {
	m := New()
	m.ObserveBooking("committed", 120*time.Millisecond, false)
	m.ObserveBooking("committed", 80*time.Millisecond, true)
	m.ObserveBooking("seat_no_longer_free", 10*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("seat_no_longer_free")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.partialReleases))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/x", 200, time.Millisecond)
		m.ObserveBooking("committed", time.Millisecond, true)
		m.ObserveVerification("ok")
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/v1/units/:unit/seats", 200, 5*time.Millisecond)
	m.ObserveVerification("rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `desk_booking_http_requests_total{method="GET",route="/v1/units/:unit/seats",status="200"} 1`))
	assert.True(t, strings.Contains(body, `desk_booking_verifications_total{result="rejected"} 1`))
}
