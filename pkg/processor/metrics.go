package processor

import "github.com/zeromicro/go-zero/core/metric"

var (
	jobsProcessed = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: "outboxguard",
		Subsystem: "processor",
		Name:      "jobs_total",
		Help:      "Job dispositions by outcome",
		Labels:    []string{"outcome"},
	})

	sendDuration = metric.NewHistogramVec(&metric.HistogramVecOpts{
		Namespace: "outboxguard",
		Subsystem: "processor",
		Name:      "send_duration_ms",
		Help:      "Provider send latency in milliseconds",
		Labels:    []string{"success"},
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 5000, 30000},
	})

	retriesScheduled = metric.NewCounterVec(&metric.CounterVecOpts{
		Namespace: "outboxguard",
		Subsystem: "processor",
		Name:      "retries_total",
		Help:      "Retries scheduled through the self-healing engine and rate-limit reschedules",
		Labels:    []string{"reason"},
	})
)

func successLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
