package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cosmterm"

// Registry holds the proxy metrics served on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	proxyRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of proxied requests by target and upstream status code",
		},
		[]string{"target", "code"},
	)

	proxyErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "errors_total",
			Help:      "Total number of proxied requests that failed to reach the upstream",
		},
		[]string{"target"},
	)

	proxyLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "upstream_latency_seconds",
			Help:      "Upstream round trip time",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	upstreamUp = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "proxy",
			Name:      "upstream_up",
			Help:      "Whether the last probe reached the upstream (1=reachable, 0=unreachable)",
		},
		[]string{"target"},
	)

	wsClients = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Number of connected /ws clients",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}
