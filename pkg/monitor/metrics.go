package monitor

import "github.com/zeromicro/go-zero/core/metric"

var (
	queueDepthGauge = metric.NewGaugeVec(&metric.GaugeVecOpts{
		Namespace: "outboxguard",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Jobs held per queue (ready + delayed); DLQ reported under queue=\"DLQ\"",
		Labels:    []string{"queue"},
	})

	activeAlertsGauge = metric.NewGaugeVec(&metric.GaugeVecOpts{
		Namespace: "outboxguard",
		Subsystem: "monitor",
		Name:      "active_alerts",
		Help:      "Currently active alerts by severity",
		Labels:    []string{"severity"},
	})

	errorRateGauge = metric.NewGaugeVec(&metric.GaugeVecOpts{
		Namespace: "outboxguard",
		Subsystem: "processor",
		Name:      "error_rate",
		Help:      "Failure fraction over the rolling 60s window",
		Labels:    []string{"window"},
	})
)
