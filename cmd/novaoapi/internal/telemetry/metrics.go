// Package telemetry holds the Prometheus instruments of the portal API.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "novao"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GateResults      *prometheus.CounterVec
	Logins           *prometheus.CounterVec
	Bridges          *prometheus.CounterVec
	GatewayResponses *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	RequestDuration  *prometheus.HistogramVec
}

// NewMetrics creates the instruments on a private registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GateResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_attempts_total",
				Help:      "PIN gate attempts by result (ok/mismatch/locked)",
			},
			[]string{"result"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Local logins by scope and result",
			},
			[]string{"scope", "result"},
		),
		Bridges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_total",
				Help:      "Upstream session bridge outcomes",
			},
			[]string{"outcome"},
		),
		GatewayResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_responses_total",
				Help:      "Gateway responses by status class",
			},
			[]string{"method", "class"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Latency of outbound calls to the panel",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"op"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Inbound request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GateResults,
		m.Logins,
		m.Bridges,
		m.GatewayResponses,
		m.UpstreamLatency,
		m.RequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, used by tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordGate counts one PIN gate attempt.
func (m *Metrics) RecordGate(result string) {
	if m == nil {
		return
	}
	m.GateResults.WithLabelValues(result).Inc()
}

// RecordLogin counts one local login attempt.
func (m *Metrics) RecordLogin(scope, result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(scope, result).Inc()
}

// RecordBridge counts one bridge outcome.
func (m *Metrics) RecordBridge(outcome string) {
	if m == nil {
		return
	}
	m.Bridges.WithLabelValues(outcome).Inc()
}

// RecordGateway counts one gateway response.
func (m *Metrics) RecordGateway(method string, status int) {
	if m == nil {
		return
	}
	m.GatewayResponses.WithLabelValues(method, StatusClass(status)).Inc()
}

// ObserveUpstream records the latency of one outbound panel call.
func (m *Metrics) ObserveUpstream(op string, started time.Time) {
	if m == nil {
		return
	}
	m.UpstreamLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// ObserveRequest records one inbound request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// StatusClass buckets an HTTP status into "2xx", "4xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
