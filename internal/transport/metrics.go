package transport

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genctl",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Requests to the remote service by path and status code (0 for network failures)",
		},
		[]string{"path", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "genctl",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Remote request latency",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"path"},
	)

	breakerOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "genctl",
			Subsystem: "transport",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker rejects requests",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, breakerOpen)
}

func observe(path string, status int, seconds float64) {
	requestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(path).Observe(seconds)
}
