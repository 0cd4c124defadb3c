package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pollAttempts counts status queries by what they observed.
var pollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nodeflow_poll_attempts_total",
	Help: "Job status queries by observed result",
}, []string{"result"})
