package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "rotosolve_"

var sweepsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "sweeps_total",
		Help: "Number of completed optimizer sweeps across all jobs",
	},
)

var evaluationsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: metricsPrefix + "objective_evaluations_total",
		Help: "Number of objective function evaluations across all jobs",
	},
)

var sweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    metricsPrefix + "sweep_duration_seconds",
		Help:    "Wall time of a single sweep including the cost evaluation",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	},
)

var jobsFinished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: metricsPrefix + "jobs_finished_total",
		Help: "Number of jobs that reached a terminal state, by state",
	},
	[]string{"state"},
)

var activeStreams = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: metricsPrefix + "active_streams",
		Help: "Number of open progress streams",
	},
)
