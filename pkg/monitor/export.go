package monitor

import (
	"fmt"
	"sort"
	"strings"
)

// Export renders a Snapshot as a flat text metrics dump, one
// `metric{label="value",...} value` line per series — the format the
// HTTP /export endpoint serves alongside the Prometheus /metrics handler.
func Export(s Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "outbox_health{} %s\n", statusValue(s.Health))

	for _, name := range queueOrder {
		stats, ok := s.Queues[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "outbox_queue_waiting{queue=%q} %d\n", name, stats.Waiting)
		fmt.Fprintf(&b, "outbox_queue_delayed{queue=%q} %d\n", name, stats.Delayed)
		fmt.Fprintf(&b, "outbox_queue_paused{queue=%q} %s\n", name, boolValue(stats.Paused))
	}
	fmt.Fprintf(&b, "outbox_dlq_total{} %d\n", s.DLQTotal)

	fmt.Fprintf(&b, "outbox_processed_total{} %d\n", s.ProcessorStats.Processed)
	fmt.Fprintf(&b, "outbox_succeeded_total{} %d\n", s.ProcessorStats.Succeeded)
	fmt.Fprintf(&b, "outbox_failed_total{} %d\n", s.ProcessorStats.Failed)
	successRate := 0.0
	if s.ProcessorStats.Processed > 0 {
		successRate = float64(s.ProcessorStats.Succeeded) / float64(s.ProcessorStats.Processed)
	}
	fmt.Fprintf(&b, "outbox_success_rate{} %.4f\n", successRate)
	fmt.Fprintf(&b, "outbox_throughput_per_sec{} %.4f\n", s.ProcessorStats.ThroughputPerSec)
	fmt.Fprintf(&b, "outbox_avg_latency_ms{} %.2f # %s\n", s.ProcessorStats.AvgLatencyMs, FormatDuration(s.ProcessorStats.AvgLatencyMs))
	fmt.Fprintf(&b, "outbox_error_rate{} %.4f\n", s.ProcessorStats.ErrorRate)

	util := append([]DomainUtilization(nil), s.DomainUtilization...)
	sort.Slice(util, func(i, j int) bool {
		if util[i].Domain != util[j].Domain {
			return util[i].Domain < util[j].Domain
		}
		return util[i].AccountID < util[j].AccountID
	})
	for _, u := range util {
		fmt.Fprintf(&b, "outbox_domain_utilization{domain=%q,account=%q,tier=%q} %.4f\n",
			u.Domain, u.AccountID, u.TierLabel, u.Utilization)
		fmt.Fprintf(&b, "outbox_domain_sent_today{domain=%q,account=%q} %d\n", u.Domain, u.AccountID, u.SentToday)
	}

	for _, c := range s.Components {
		fmt.Fprintf(&b, "outbox_component_health{component=%q} %s\n", c.Component, statusValue(c.Status))
	}

	for _, a := range s.ActiveAlerts {
		fmt.Fprintf(&b, "outbox_alert_active{component=%q,rule_id=%q,severity=%q} 1\n", a.Component, a.RuleID, a.Severity)
	}

	return b.String()
}

func statusValue(s HealthStatus) string {
	switch s {
	case HealthHealthy:
		return "1"
	case HealthDegraded:
		return "0.5"
	case HealthCritical:
		return "0"
	default:
		return "-1"
	}
}

func boolValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// FormatDuration renders a millisecond count for the export's average
// latency annotation, scaling up to seconds once the value crosses a
// second.
func FormatDuration(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.0fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

// FormatBytes renders a byte count in human-readable units, for exposing
// email body sizes (BodyText/BodyHTML) in logs without a raw byte count.
func FormatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := int64(n) / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), units[exp])
}
