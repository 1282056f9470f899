package processor

import (
	"regexp"
	"testing"
	"time"

	"github.com/outboxguard/engine/pkg/clock"
	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/emailqueue"
	"github.com/outboxguard/engine/pkg/errkind"
	"github.com/outboxguard/engine/pkg/healing"
	"github.com/outboxguard/engine/pkg/provider"
	"github.com/outboxguard/engine/pkg/randomness"
	"github.com/outboxguard/engine/pkg/ratelimiter"
)

func newJob(t *testing.T, to string, scheduledAt time.Time) email.Job {
	t.Helper()
	j, err := email.New(to, "sender@example.com", "hello", "body", "", "acct-1", 100, email.PriorityNormal, scheduledAt)
	if err != nil {
		t.Fatalf("email.New: %v", err)
	}
	return j
}

func newHarness(t *testing.T, fake *clock.Fake, failures []provider.FailurePattern) (*Processor, *emailqueue.Queue) {
	t.Helper()
	q := emailqueue.New()
	lim := ratelimiter.New(ratelimiter.Config{Clock: fake, HardLimit: true})
	heal := healing.New(healing.Config{
		BaseDelayMs: 10, MaxDelayMs: 1000, MaxAttempts: 3,
		Clock: fake, Randomness: randomness.NewFixed(0.5),
	})
	prov := provider.NewSimulated(provider.SimulatedConfig{
		Failures:   failures,
		Randomness: randomness.NewFixed(0.1),
	})
	p := New(Config{MaxAttempts: 3, Clock: fake}, q, lim, prov, heal)
	return p, q
}

func TestProcessJobSucceeds(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p, _ := newHarness(t, fake, nil)

	var events []EventType
	p.OnEvent(func(ev Event) { events = append(events, ev.Type) })

	job := newJob(t, "ok@example.com", fake.Now())
	res := p.ProcessJob(job)
	if res.Outcome != OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", res.Outcome)
	}
	if len(events) != 1 || events[0] != EventSucceeded {
		t.Fatalf("events = %v, want [succeeded]", events)
	}

	stats := p.Stats()
	if stats.Processed != 1 || stats.Succeeded != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

// Deterministic failure: the job retries through 3 backoff cycles then
// escalates to the dead-letter queue, per scenario 3.
func TestProcessJobEscalatesAfterMaxAttempts(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p, q := newHarness(t, fake, []provider.FailurePattern{
		{Pattern: regexp.MustCompile(`^always-fails`), Kind: errkind.ProviderUnknown, Message: "boom"},
	})

	var escalated int
	p.OnEvent(func(ev Event) {
		if ev.Type == EventEscalated {
			escalated++
		}
	})

	job := newJob(t, "always-fails@example.com", fake.Now())
	for i := 0; i < 4; i++ {
		res := p.ProcessJob(job)
		if res.Outcome != OutcomeRetryDeferred {
			break
		}
		// Advance the fake clock past the scheduled retry and re-dequeue the
		// rescheduled copy the processor wrote back to the queue.
		fake.Advance(time.Hour)
		next, _, ok := q.DequeueReady(fake.Now())
		if !ok {
			t.Fatalf("expected a requeued retry after attempt %d", i+1)
		}
		job = next
	}

	if escalated != 1 {
		t.Fatalf("escalated events = %d, want 1", escalated)
	}
	if got := len(q.DeadLetterJobs()); got != 1 {
		t.Fatalf("DLQ size = %d, want 1", got)
	}
}

// Rate-limit denials reschedule without incrementing attempts_made.
func TestRateLimitedDenialDoesNotConsumeAttempt(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	q := emailqueue.New()
	lim := ratelimiter.New(ratelimiter.Config{
		Tiers: ratelimiter.NewTierTable([]ratelimiter.TierRow{
			{MinAgeDays: 0, Tier: ratelimiter.Tier{Label: "New", PerDay: 0, PerHour: 0, PerMinute: 0}},
		}),
		Clock:     fake,
		HardLimit: true,
	})
	heal := healing.New(healing.Config{Clock: fake, Randomness: randomness.NewFixed(0.5)})
	prov := provider.NewSimulated(provider.SimulatedConfig{Randomness: randomness.NewFixed(0.1)})
	p := New(Config{MaxAttempts: 3, Clock: fake}, q, lim, prov, heal)

	job := newJob(t, "ok@example.com", fake.Now())
	res := p.ProcessJob(job)
	if res.Outcome != OutcomeRateLimited {
		t.Fatalf("outcome = %s, want rate_limited", res.Outcome)
	}

	rescheduled, _, ok := q.DequeueReady(fake.Now().Add(24 * time.Hour))
	if !ok {
		t.Fatal("expected the job to be requeued")
	}
	if rescheduled.AttemptsMade != 0 {
		t.Fatalf("attempts_made = %d, want 0 (rate-limit denial must not consume a retry)", rescheduled.AttemptsMade)
	}
}
