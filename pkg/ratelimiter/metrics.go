package ratelimiter

import "github.com/zeromicro/go-zero/core/metric"

var checksTotal = metric.NewCounterVec(&metric.CounterVecOpts{
	Namespace: "outboxguard",
	Subsystem: "ratelimiter",
	Name:      "checks_total",
	Help:      "Limiter checks by decision and deny reason",
	Labels:    []string{"allowed", "reason"},
})

func allowedLabel(allowed bool) string {
	if allowed {
		return "true"
	}
	return "false"
}
