package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Simulator metrics exposed on /metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfs_sim_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hdfs_sim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hdfs_sim_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfs_sim_jobs_total",
			Help: "Analysis jobs by final state",
		},
		[]string{"state"}, // started | complete | cancelled
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hdfs_sim_jobs_running",
			Help: "Analysis jobs currently processing blocks",
		},
	)

	BlocksScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfs_sim_blocks_scored_total",
			Help: "Blocks scored by category and scoring source",
		},
		[]string{"category", "source"},
	)

	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hdfs_sim_callbacks_total",
			Help: "Outbound callbacks by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: block | complete | publish
	)
)
