package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts finished runs by outcome kind ("ok" on success)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeflow_runs_total",
		Help: "Total worker runs by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodeflow_run_duration_seconds",
		Help:    "Wall time of worker runs from trigger to outcome",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
	}, []string{"outcome"})

	mediaDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nodeflow_media_parts_dropped_total",
		Help: "Media inputs dropped because they could not be normalized",
	})
)
