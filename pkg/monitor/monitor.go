// Package monitor implements the queue monitor: a sampling plane that
// aggregates queue depths, processor throughput, per-domain rate-limiter
// utilization, and component health, evaluates alert rules, and emits a
// text metrics export. It only reads the components it samples.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outboxguard/engine/pkg/clock"
	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/emailqueue"
	"github.com/outboxguard/engine/pkg/log"
	"github.com/outboxguard/engine/pkg/processor"
	"github.com/outboxguard/engine/pkg/provider"
	"github.com/outboxguard/engine/pkg/ratelimiter"
)

// Severity is the urgency of an Alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a raised or resolved condition. Its uniqueness key is
// (Component, RuleID): a recurring condition updates the existing alert
// instead of duplicating it.
type Alert struct {
	ID         string
	RuleID     string
	Component  string
	Severity   Severity
	Message    string
	RaisedAt   time.Time
	ResolvedAt *time.Time
}

// HealthStatus is the aggregate or per-component health state.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// ComponentHealth is one health-check result.
type ComponentHealth struct {
	Component string
	Status    HealthStatus
	Detail    string
}

// DomainUtilization is one tracked (domain, account_id)'s warm-up state.
type DomainUtilization struct {
	Domain      string
	AccountID   string
	TierLabel   string
	SentToday   int
	Utilization float64
}

// Snapshot is one complete sample.
type Snapshot struct {
	SampledAt         time.Time
	Queues            map[email.QueueName]emailqueue.Stats
	DLQTotal          int
	ProcessorStats    processor.Stats
	DomainUtilization []DomainUtilization
	ActiveAlerts      []Alert
	Components        []ComponentHealth
	Health            HealthStatus
}

// Config configures a Monitor. Zero values take the default alert-rule
// thresholds.
type Config struct {
	SampleInterval              time.Duration
	QueueDepthThreshold         int
	ErrorRateThreshold          float64
	UtilizationThreshold        float64
	ConsecutiveFailureThreshold int
	TrackedCap                  int // rate-limiter health check's cap
	Clock                       clock.Clock
	Timer                       clock.Timer
}

const (
	ruleQueueDepth          = "queue_depth"
	ruleErrorRate           = "error_rate"
	ruleDomainUtilization   = "domain_utilization"
	ruleConsecutiveFailures = "consecutive_failures"
	ruleProviderHealth      = "provider_health"
)

// Monitor samples the Queue, Limiter, and Processor on a timer, evaluates
// alert rules, and aggregates health. It never mutates any of them — the
// Monitor holds only read-only snapshots, per the ownership rules.
type Monitor struct {
	cfg      Config
	queue    *emailqueue.Queue
	limiter  *ratelimiter.Limiter
	proc     *processor.Processor
	provider provider.Provider

	mu     sync.Mutex
	active map[string]*Alert

	subscribers []func(Alert, string) // (alert, "raised"|"resolved")
}

// New builds a Monitor, applying Config defaults.
func New(cfg Config, q *emailqueue.Queue, limiter *ratelimiter.Limiter, proc *processor.Processor, prov provider.Provider) *Monitor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 10 * time.Second
	}
	if cfg.QueueDepthThreshold <= 0 {
		cfg.QueueDepthThreshold = 1000
	}
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = 0.2
	}
	if cfg.UtilizationThreshold <= 0 {
		cfg.UtilizationThreshold = 0.9
	}
	if cfg.ConsecutiveFailureThreshold <= 0 {
		cfg.ConsecutiveFailureThreshold = 10
	}
	if cfg.TrackedCap <= 0 {
		cfg.TrackedCap = 100_000
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Timer == nil {
		cfg.Timer = clock.Real{}
	}
	return &Monitor{
		cfg:      cfg,
		queue:    q,
		limiter:  limiter,
		proc:     proc,
		provider: prov,
		active:   make(map[string]*Alert),
	}
}

// OnAlert registers a subscriber, called with the transition ("raised" or
// "resolved") every time an alert's active state changes. Subscriber
// errors are isolated and never block the sampler.
func (m *Monitor) OnAlert(fn func(Alert, string)) {
	m.subscribers = append(m.subscribers, fn)
}

var queueOrder = []email.QueueName{email.QueueHigh, email.QueueNormal, email.QueueBulk}

// Sample performs one complete tick: reads every data source, evaluates
// alert rules, and returns the resulting Snapshot. Exposed directly (not
// just via Run) so tests can drive ticks deterministically.
func (m *Monitor) Sample(now time.Time) Snapshot {
	queues := make(map[email.QueueName]emailqueue.Stats, len(queueOrder))
	for _, name := range queueOrder {
		queues[name] = m.queue.Stats(name, now)
	}
	dlqTotal := len(m.queue.DeadLetterJobs())

	procStats := m.proc.Stats()

	utilization := m.sampleUtilization()

	providerHealth := m.provider.Health()

	firing := m.evaluateRules(queues, procStats, utilization, providerHealth)
	active := m.reconcileAlerts(now, firing)

	components := m.healthChecks(procStats, providerHealth)
	aggregate := aggregateHealth(components)

	for _, name := range queueOrder {
		stats := queues[name]
		queueDepthGauge.Set(float64(stats.Waiting+stats.Delayed), string(name))
	}
	queueDepthGauge.Set(float64(dlqTotal), "DLQ")
	errorRateGauge.Set(procStats.ErrorRate, "60s")
	severityCounts := map[Severity]int{SeverityInfo: 0, SeverityWarning: 0, SeverityCritical: 0}
	for _, a := range active {
		severityCounts[a.Severity]++
	}
	for sev, n := range severityCounts {
		activeAlertsGauge.Set(float64(n), string(sev))
	}

	return Snapshot{
		SampledAt:         now,
		Queues:            queues,
		DLQTotal:          dlqTotal,
		ProcessorStats:    procStats,
		DomainUtilization: utilization,
		ActiveAlerts:      active,
		Components:        components,
		Health:            aggregate,
	}
}

// Run ticks Sample every cfg.SampleInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.cfg.Timer.After(m.cfg.SampleInterval):
			m.Sample(m.cfg.Clock.Now())
		}
	}
}

func (m *Monitor) sampleUtilization() []DomainUtilization {
	keys := m.limiter.TrackedKeys()
	out := make([]DomainUtilization, 0, len(keys))
	for _, k := range keys {
		window, ok := m.limiter.Snapshot(k.Domain, k.AccountID)
		if !ok {
			continue
		}
		// Resolve the same tier the most recent admission decision used,
		// so sent_today is divided by the cap that actually applies. A
		// key never seen by Check resolves to age 0, the most
		// restrictive tier, which over-reports rather than masking a
		// warm-up account near its cap.
		tier := m.limiter.Tier(m.limiter.AccountAgeDays(k.Domain, k.AccountID))
		util := 0.0
		if tier.PerDay > 0 {
			util = float64(window.Day) / float64(tier.PerDay)
		}
		out = append(out, DomainUtilization{
			Domain:      k.Domain,
			AccountID:   k.AccountID,
			TierLabel:   tier.Label,
			SentToday:   window.Day,
			Utilization: util,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

func (m *Monitor) evaluateRules(queues map[email.QueueName]emailqueue.Stats, procStats processor.Stats, utilization []DomainUtilization, providerHealth provider.HealthProbe) map[string]Alert {
	firing := make(map[string]Alert)

	for _, name := range queueOrder {
		stats := queues[name]
		depth := stats.Waiting + stats.Delayed
		if depth > m.cfg.QueueDepthThreshold {
			key := alertKey(string(name), ruleQueueDepth)
			firing[key] = Alert{
				RuleID:    ruleQueueDepth,
				Component: string(name),
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("queue %s depth %d exceeds %d", name, depth, m.cfg.QueueDepthThreshold),
			}
		}
	}

	if procStats.ErrorRate > m.cfg.ErrorRateThreshold {
		key := alertKey("processor", ruleErrorRate)
		firing[key] = Alert{
			RuleID:    ruleErrorRate,
			Component: "processor",
			Severity:  SeverityCritical,
			Message:   fmt.Sprintf("error rate %.2f exceeds %.2f over the last 60s", procStats.ErrorRate, m.cfg.ErrorRateThreshold),
		}
	}

	for _, u := range utilization {
		component := u.Domain + ":" + u.AccountID
		if u.Utilization > m.cfg.UtilizationThreshold {
			key := alertKey(component, ruleDomainUtilization)
			firing[key] = Alert{
				RuleID:    ruleDomainUtilization,
				Component: component,
				Severity:  SeverityWarning,
				Message:   fmt.Sprintf("%s utilization %.2f exceeds %.2f", component, u.Utilization, m.cfg.UtilizationThreshold),
			}
		}
		if fails := m.limiter.ConsecutiveFailures(u.Domain, u.AccountID); fails >= m.cfg.ConsecutiveFailureThreshold {
			key := alertKey(component, ruleConsecutiveFailures)
			firing[key] = Alert{
				RuleID:    ruleConsecutiveFailures,
				Component: component,
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("%s has %d consecutive failures", component, fails),
			}
		}
	}

	if !providerHealth.Healthy {
		key := alertKey("provider", ruleProviderHealth)
		firing[key] = Alert{
			RuleID:    ruleProviderHealth,
			Component: "provider",
			Severity:  SeverityCritical,
			Message:   "provider health probe reports unhealthy",
		}
	}

	return firing
}

// reconcileAlerts applies the idempotent raise/resolve lifecycle: a rule
// firing for the first time raises a new alert; a rule firing again while
// already active leaves RaisedAt untouched; a previously active alert
// whose rule no longer fires is resolved and dropped from the active set.
func (m *Monitor) reconcileAlerts(now time.Time, firing map[string]Alert) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, a := range firing {
		if _, exists := m.active[key]; exists {
			continue
		}
		raised := a
		raised.ID = uuid.New().String()
		raised.RaisedAt = now
		m.active[key] = &raised
		m.publish(raised, "raised")
	}

	for key, a := range m.active {
		if _, stillFiring := firing[key]; stillFiring {
			continue
		}
		resolvedAt := now
		a.ResolvedAt = &resolvedAt
		m.publish(*a, "resolved")
		delete(m.active, key)
	}

	out := make([]Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Component != out[j].Component {
			return out[i].Component < out[j].Component
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

func (m *Monitor) publish(a Alert, transition string) {
	for _, sub := range m.subscribers {
		m.safeCall(sub, a, transition)
	}
}

func (m *Monitor) safeCall(fn func(Alert, string), a Alert, transition string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("monitor alert subscriber panicked", "recover", r, "rule_id", a.RuleID)
		}
	}()
	fn(a, transition)
}

func (m *Monitor) healthChecks(procStats processor.Stats, providerHealth provider.HealthProbe) []ComponentHealth {
	tracked := m.limiter.TrackedCount()
	rateLimiterStatus := HealthHealthy
	if tracked >= m.cfg.TrackedCap {
		rateLimiterStatus = HealthCritical
	} else if float64(tracked) >= 0.8*float64(m.cfg.TrackedCap) {
		rateLimiterStatus = HealthDegraded
	}

	processorStatus := HealthHealthy
	switch {
	case procStats.ErrorRate >= m.cfg.ErrorRateThreshold || !providerHealth.Healthy:
		processorStatus = HealthCritical
	case procStats.ErrorRate >= m.cfg.ErrorRateThreshold/2:
		processorStatus = HealthDegraded
	}

	return []ComponentHealth{
		{Component: "queue-service", Status: HealthHealthy, Detail: "responding"},
		{Component: "rate-limiter", Status: rateLimiterStatus, Detail: fmt.Sprintf("%d/%d tracked keys", tracked, m.cfg.TrackedCap)},
		{Component: "processor", Status: processorStatus, Detail: fmt.Sprintf("error_rate=%.3f provider_healthy=%v", procStats.ErrorRate, providerHealth.Healthy)},
	}
}

func aggregateHealth(components []ComponentHealth) HealthStatus {
	if len(components) == 0 {
		return HealthUnknown
	}
	degraded := false
	for _, c := range components {
		if c.Status == HealthCritical {
			return HealthCritical
		}
		if c.Status == HealthDegraded {
			degraded = true
		}
	}
	if degraded {
		return HealthDegraded
	}
	return HealthHealthy
}

func alertKey(component, ruleID string) string {
	return component + "\x00" + ruleID
}
