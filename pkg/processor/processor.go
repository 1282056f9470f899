// Package processor implements the email processor: the worker that
// dequeues jobs, consults the rate limiter, sends through a pluggable
// provider, updates the limiter on success or failure, and drives retries
// through the self-healing engine. Per-account admission lives in
// pkg/ratelimiter and backoff math in pkg/healing; this package only
// orchestrates.
package processor

import (
	"context"
	"time"

	"github.com/outboxguard/engine/pkg/clock"
	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/emailqueue"
	"github.com/outboxguard/engine/pkg/healing"
	"github.com/outboxguard/engine/pkg/log"
	"github.com/outboxguard/engine/pkg/provider"
	"github.com/outboxguard/engine/pkg/ratelimiter"
)

// Outcome is the terminal (or rescheduling) disposition of one ProcessJob
// call.
type Outcome string

const (
	OutcomeSucceeded     Outcome = "succeeded"
	OutcomeRateLimited   Outcome = "rate_limited"
	OutcomeRetryDeferred Outcome = "retry_deferred"
	OutcomeDeadLettered  Outcome = "dead_lettered"
	OutcomeEscalated     Outcome = "escalated"
)

// Result is returned from ProcessJob.
type Result struct {
	JobID   string
	Outcome Outcome
}

// EventType names a point in the producer-visible event stream: the
// terminal succeeded/dead_lettered/escalated states plus the internal
// rate_limited and retrying transitions the Monitor and tests observe.
type EventType string

const (
	EventSucceeded    EventType = "succeeded"
	EventFailed       EventType = "failed"
	EventRateLimited  EventType = "rate_limited"
	EventRetrying     EventType = "retrying"
	EventDeadLettered EventType = "dead_lettered"
	EventEscalated    EventType = "escalated"
)

// Event is published to subscribers after every job disposition. Job is
// the descriptor as of the disposition (retry events carry the rewritten
// ScheduledAt/AttemptsMade), so persistence subscribers can append a full
// lifecycle snapshot without a queue lookup.
type Event struct {
	Type              EventType
	JobID             string
	Job               email.Job
	ProviderMessageID string
	Reason            string
	History           []healing.HealingAttempt
}

// Config configures a Processor.
type Config struct {
	// MaxAttempts gates whether a retryable failure is routed to
	// self-healing (attempts_made < MaxAttempts) or escalated directly.
	// Should match healing.Config.MaxAttempts; the double gate covers a
	// job recovered after a restart whose AttemptsMade already exceeds
	// the cap while the healing engine's in-memory history is empty.
	MaxAttempts int
	Clock       clock.Clock
	Timer       clock.Timer
}

// Processor orchestrates Queue -> Limiter -> Provider -> Limiter/Healing.
type Processor struct {
	cfg      Config
	queue    *emailqueue.Queue
	limiter  *ratelimiter.Limiter
	provider provider.Provider
	healing  *healing.Engine

	stats       *tracker
	subscribers []func(Event)
}

// New builds a Processor. A zero MaxAttempts defaults to 3.
func New(cfg Config, q *emailqueue.Queue, limiter *ratelimiter.Limiter, prov provider.Provider, heal *healing.Engine) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Timer == nil {
		cfg.Timer = clock.Real{}
	}
	return &Processor{
		cfg:      cfg,
		queue:    q,
		limiter:  limiter,
		provider: prov,
		healing:  heal,
		stats:    newTracker(),
	}
}

// OnEvent registers a subscriber, called in registration order. A
// panicking subscriber is caught and logged.
func (p *Processor) OnEvent(fn func(Event)) {
	p.subscribers = append(p.subscribers, fn)
}

// Stats returns a snapshot of the processor's send metrics.
func (p *Processor) Stats() Stats {
	return p.stats.snapshot(p.cfg.Clock.Now())
}

// ProcessJob runs one job through Check -> Send -> record. It never
// blocks on the queue: scheduling decisions (reschedule, retry,
// dead-letter) are all synchronous queue operations.
func (p *Processor) ProcessJob(job email.Job) Result {
	domain, err := email.Domain(job.To)
	if err != nil {
		// Validation should have rejected this at Enqueue; defensively
		// dead-letter rather than send to an unparseable address.
		p.queue.DeadLetter(job)
		p.emit(Event{Type: EventDeadLettered, JobID: job.JobID, Job: job, Reason: "unparseable recipient"})
		return Result{JobID: job.JobID, Outcome: OutcomeDeadLettered}
	}

	decision := p.limiter.Check(domain, job.AccountID, job.AccountAgeDays)
	if !decision.Allowed && p.limiter.HardLimit() {
		now := p.cfg.Clock.Now()
		rescheduled := job.WithRescheduled(now.Add(time.Duration(decision.RetryAfterMs) * time.Millisecond))
		p.requeue(rescheduled)
		p.emit(Event{Type: EventRateLimited, JobID: job.JobID, Job: rescheduled, Reason: decision.Reason})
		return Result{JobID: job.JobID, Outcome: OutcomeRateLimited}
	}
	if !decision.Allowed {
		log.Warn("rate limit denial downgraded to warning by hard_limit=false",
			"job_id", job.JobID, "reason", decision.Reason)
	}

	outcome := p.provider.Send(job)
	now := p.cfg.Clock.Now()
	p.stats.record(now, outcome.Success, outcome.LatencyMs)
	sendDuration.Observe(outcome.LatencyMs, successLabel(outcome.Success))

	if outcome.Success {
		p.limiter.RecordSuccess(domain, job.AccountID)
		p.healing.Succeed(job.JobID)
		p.emit(Event{Type: EventSucceeded, JobID: job.JobID, Job: job, ProviderMessageID: outcome.ProviderMessageID})
		return Result{JobID: job.JobID, Outcome: OutcomeSucceeded}
	}

	p.limiter.RecordFailure(domain, job.AccountID)
	p.emit(Event{Type: EventFailed, JobID: job.JobID, Job: job, Reason: string(outcome.ErrorKind)})

	if !outcome.Retryable {
		p.queue.DeadLetter(job)
		p.emit(Event{Type: EventDeadLettered, JobID: job.JobID, Job: job, Reason: string(outcome.ErrorKind)})
		return Result{JobID: job.JobID, Outcome: OutcomeDeadLettered}
	}

	if job.AttemptsMade >= p.cfg.MaxAttempts {
		history := p.healing.Escalate(job.JobID)
		p.queue.DeadLetter(job)
		p.emit(Event{Type: EventEscalated, JobID: job.JobID, Job: job, Reason: string(outcome.ErrorKind), History: history})
		return Result{JobID: job.JobID, Outcome: OutcomeEscalated}
	}

	decision2 := p.healing.Monitor(job.JobID, outcome.ErrorKind, outcome.ErrorMessage)
	if decision2.Retry {
		retryJob := job.WithRetry(now.Add(time.Duration(decision2.DelayMs) * time.Millisecond))
		p.requeue(retryJob)
		p.emit(Event{Type: EventRetrying, JobID: job.JobID, Job: retryJob, Reason: string(outcome.ErrorKind)})
		return Result{JobID: job.JobID, Outcome: OutcomeRetryDeferred}
	}

	p.queue.DeadLetter(job)
	p.emit(Event{Type: EventEscalated, JobID: job.JobID, Job: job, Reason: string(outcome.ErrorKind), History: decision2.History})
	return Result{JobID: job.JobID, Outcome: OutcomeEscalated}
}

func (p *Processor) requeue(job email.Job) {
	if err := p.queue.Requeue(job); err != nil {
		log.Error("processor: failed to requeue job", "job_id", job.JobID, "error", err)
	}
}

func (p *Processor) emit(ev Event) {
	switch ev.Type {
	case EventRetrying, EventRateLimited:
		retriesScheduled.Inc(ev.Reason)
	case EventSucceeded, EventDeadLettered, EventEscalated:
		jobsProcessed.Inc(string(ev.Type))
	}
	for _, sub := range p.subscribers {
		p.safeCall(sub, ev)
	}
}

func (p *Processor) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("processor subscriber panicked", "recover", r, "event", ev.Type)
		}
	}()
	fn(ev)
}

// Run is the worker loop: repeatedly DequeueReady -> ProcessJob, polling
// at pollInterval when no ready job is found, and unwinding cleanly when
// ctx is cancelled. Multiple Run goroutines may share one Processor safely
// — the Queue's pop is atomic, so no job is ever handed to two workers.
func (p *Processor) Run(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, _, ok := p.queue.DequeueReady(p.cfg.Clock.Now())
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.cfg.Timer.After(pollInterval):
				continue
			}
		}

		p.ProcessJob(job)
	}
}
