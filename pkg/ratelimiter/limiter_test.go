package ratelimiter

import (
	"testing"
	"time"

	"github.com/outboxguard/engine/pkg/clock"
)

func newLimiterForTest(fake *clock.Fake) *Limiter {
	return New(Config{
		Tiers: NewTierTable([]TierRow{
			{MinAgeDays: 0, Tier: Tier{Label: "New", PerDay: 50, PerHour: 10, PerMinute: 2}},
		}),
		Clock: fake,
	})
}

// Scenario 1: day-1 account hits its per-minute cap of 2, the third Check
// is denied, and after advancing the clock 60s the retry succeeds.
func TestPerMinuteCapDeniesThirdSend(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	l := newLimiterForTest(fake)

	domain, account, age := "example.com", "acct-new", 1

	d1 := l.Check(domain, account, age)
	if !d1.Allowed {
		t.Fatal("expected 1st check allowed")
	}
	l.RecordSuccess(domain, account)

	d2 := l.Check(domain, account, age)
	if !d2.Allowed {
		t.Fatal("expected 2nd check allowed")
	}
	l.RecordSuccess(domain, account)

	d3 := l.Check(domain, account, age)
	if d3.Allowed {
		t.Fatal("expected 3rd check denied (per-minute cap is 2)")
	}
	if d3.Reason != "per_minute" {
		t.Errorf("reason = %q, want per_minute", d3.Reason)
	}
	if d3.RetryAfterMs < 59_000 || d3.RetryAfterMs > 60_000 {
		t.Errorf("retry_after_ms = %d, want ~60000", d3.RetryAfterMs)
	}

	fake.Advance(60 * time.Second)
	d4 := l.Check(domain, account, age)
	if !d4.Allowed {
		t.Fatal("expected check allowed after minute window rolls over")
	}
}

// Tie-break: exact equality with the limit is a deny (the 50th send
// succeeds, the 51st is denied).
func TestExactLimitIsDeny(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)
	l := New(Config{
		Tiers: NewTierTable([]TierRow{
			{MinAgeDays: 0, Tier: Tier{Label: "New", PerDay: 50, PerHour: 1000, PerMinute: 1000}},
		}),
		Clock: fake,
	})

	domain, account := "example.com", "acct-day"
	for i := 0; i < 50; i++ {
		d := l.Check(domain, account, 1)
		if !d.Allowed {
			t.Fatalf("send %d should be allowed (limit is 50/day)", i+1)
		}
		l.RecordSuccess(domain, account)
	}

	d := l.Check(domain, account, 1)
	if d.Allowed {
		t.Fatal("the 51st send should be denied: 50/day is exhausted at exactly 50")
	}
	if d.Reason != "per_day" {
		t.Errorf("reason = %q, want per_day", d.Reason)
	}
}

// Scenario 5: 9 failures then 1 success resets consecutive_failures to 0
// and a subsequent Check is allowed.
func TestConsecutiveFailuresResetOnSuccess(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := newLimiterForTest(fake)

	domain, account := "example.com", "acct-x"
	for i := 0; i < 9; i++ {
		l.RecordFailure(domain, account)
	}
	if got := l.ConsecutiveFailures(domain, account); got != 9 {
		t.Fatalf("consecutive failures = %d, want 9", got)
	}

	l.RecordSuccess(domain, account)
	if got := l.ConsecutiveFailures(domain, account); got != 0 {
		t.Fatalf("consecutive failures after success = %d, want 0", got)
	}

	d := l.Check(domain, account, 1)
	if !d.Allowed {
		t.Fatal("expected allowed after failure streak reset by success")
	}
}

// The circuit breaker opens once consecutive_failures reaches the
// threshold (default 10), independent of window exhaustion.
func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := New(Config{
		Tiers: NewTierTable([]TierRow{
			{MinAgeDays: 0, Tier: Tier{Label: "New", PerDay: 1000, PerHour: 1000, PerMinute: 1000}},
		}),
		ConsecutiveFailureThreshold: 10,
		Clock:                       fake,
	})

	domain, account := "example.com", "acct-flaky"
	for i := 0; i < 10; i++ {
		l.RecordFailure(domain, account)
	}

	d := l.Check(domain, account, 1)
	if d.Allowed {
		t.Fatal("expected circuit open after 10 consecutive failures")
	}
	if d.Reason != "circuit_open" {
		t.Errorf("reason = %q, want circuit_open", d.Reason)
	}
	if d.RetryAfterMs != 60_000 {
		t.Errorf("retry_after_ms = %d, want 60000", d.RetryAfterMs)
	}
}

func TestNegativeAgeClampsToMostRestrictiveTier(t *testing.T) {
	table := NewTierTable(DefaultTiers)
	gotNeg := table.Resolve(-5)
	gotZero := table.Resolve(0)
	if gotNeg != gotZero {
		t.Errorf("Resolve(-5) = %+v, want same as Resolve(0) = %+v", gotNeg, gotZero)
	}
}

func TestCheckEmitsEventAfterDecision(t *testing.T) {
	fake := clock.NewFake(time.Now())
	l := newLimiterForTest(fake)

	var events []Event
	l.Subscribe(func(e Event) { events = append(events, e) })

	l.Check("example.com", "acct-1", 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].Allowed {
		t.Error("expected allowed=true in event")
	}
}
