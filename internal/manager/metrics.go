package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	lifecycleOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genctl",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by op and result (ok or error kind)",
		},
		[]string{"op", "result"},
	)

	lifecycleCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genctl",
			Subsystem: "lifecycle",
			Name:      "coalesced_total",
			Help:      "Callers attached to an in-flight operation instead of issuing a new call",
		},
		[]string{"op"},
	)

	lifecycleInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "genctl",
			Subsystem: "lifecycle",
			Name:      "inflight",
			Help:      "Lifecycle operations currently in flight",
		},
		[]string{"op"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genctl",
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Generation jobs by mode and outcome",
		},
		[]string{"mode", "result"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "genctl",
			Subsystem: "dispatch",
			Name:      "job_duration_seconds",
			Help:      "Transport time of generation jobs",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "genctl",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Jobs waiting per lane",
		},
		[]string{"lane"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genctl",
			Subsystem: "dispatch",
			Name:      "backpressure_total",
			Help:      "Submissions rejected because the queue was full",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		lifecycleOpsTotal,
		lifecycleCoalescedTotal,
		lifecycleInflight,
		jobsTotal,
		jobDuration,
		queueDepth,
		backpressureTotal,
	)
}
