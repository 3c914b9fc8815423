// Package metrics provides Prometheus metrics for the host process.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Latency buckets cover quick commands as well as long streamed calls.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300}

// Metrics holds the collectors of the host process
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	UpstreamFailures  *prometheus.CounterVec
	StreamEvents      prometheus.Counter
}

// New creates a Metrics instance on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oasc_host_http_requests_total",
			Help: "Total inbound host commands.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oasc_host_http_request_duration_seconds",
			Help:    "Inbound host command latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oasc_host_http_requests_in_flight",
			Help: "Number of host commands currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oasc_host_upstream_request_duration_seconds",
			Help:    "Latency of requests made on behalf of clients, in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oasc_host_upstream_responses_total",
			Help: "Upstream responses by method and status code.",
		}, []string{"method", "status_code"}),

		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oasc_host_upstream_failures_total",
			Help: "Upstream requests that produced no response.",
		}, []string{"method"}),

		StreamEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oasc_host_stream_events_total",
			Help: "Server-sent events relayed to clients.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.UpstreamFailures,
		m.StreamEvents,
	)

	return m
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true, "TRACE": true,
}

// NormalizeMethod maps non-standard methods to "other"
func NormalizeMethod(method string) string {
	method = strings.ToUpper(method)
	if knownMethods[method] {
		return method
	}
	return "other"
}

var knownPrefixes = []string{"/commands/make_request", "/commands/load_spec", "/healthz", "/host/status", "/metrics"}

// NormalizePath returns a bounded path label
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "other"
}
