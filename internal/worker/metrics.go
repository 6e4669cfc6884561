package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audit",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Jobs finalized by the pipeline, by result.",
	}, []string{"result"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "audit",
		Subsystem: "worker",
		Name:      "job_duration_seconds",
		Help:      "Wall time from claim to completion for successful jobs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)
