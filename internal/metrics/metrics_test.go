package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ViewRecorded()
	m.ViewRecorded()
	m.PropagationFailed()
	m.UpdateResult("ok")
	m.UpdateResult("CONFLICT")
	m.UpdateResult("ok")

	require.Equal(t, 2.0, testutil.ToFloat64(m.ProfileViews))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PropagationFailures))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ProfileUpdates.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProfileUpdates.WithLabelValues("CONFLICT")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ViewRecorded()
		m.PropagationFailed()
		m.UpdateResult("ok")
		m.ObserveRequest("GET", "/health", "200", 0.01)
	})
}

func TestMetrics_HandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/profiles/{ownerId}", "200", 0.02)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, string(body), `biolink_http_requests_total{method="GET",route="/profiles/{ownerId}",status="200"} 1`)
	require.Contains(t, string(body), "biolink_http_request_duration_seconds")
}
