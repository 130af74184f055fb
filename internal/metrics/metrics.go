// Package metrics holds the prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ProfileViews        prometheus.Counter
	ProfileUpdates      *prometheus.CounterVec
	PropagationFailures prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ProfileViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biolink_profile_views_total",
			Help: "Profile views recorded.",
		}),
		ProfileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biolink_profile_updates_total",
			Help: "Profile update attempts by result.",
		}, []string{"result"}),
		PropagationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "biolink_view_propagation_failures_total",
			Help: "Views whose denormalized profile count could not be updated in the request path.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "biolink_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "biolink_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.ProfileViews, m.ProfileUpdates, m.PropagationFailures, m.HTTPRequests, m.HTTPRequestDuration)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ViewRecorded() {
	if m == nil {
		return
	}
	m.ProfileViews.Inc()
}

func (m *Metrics) PropagationFailed() {
	if m == nil {
		return
	}
	m.PropagationFailures.Inc()
}

// UpdateResult counts one profile update. result is "ok" or an error code.
func (m *Metrics) UpdateResult(result string) {
	if m == nil {
		return
	}
	m.ProfileUpdates.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
