package provider

import (
	"regexp"
	"testing"
	"time"

	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/errkind"
	"github.com/outboxguard/engine/pkg/randomness"
)

func testJob(to string) email.Job {
	j, err := email.New(to, "sender@example.com", "hi", "body", "", "acct-1", 10, email.PriorityNormal, time.Unix(0, 0))
	if err != nil {
		panic(err)
	}
	return j
}

func TestSimulatedProviderFailsMatchingPattern(t *testing.T) {
	p := NewSimulated(SimulatedConfig{
		Failures: []FailurePattern{
			{Pattern: regexp.MustCompile(`^bounce`), Kind: errkind.ProviderInvalidRecipient, Message: "mailbox does not exist"},
		},
		Randomness: randomness.NewFixed(0.5),
	})

	out := p.Send(testJob("bounce-1@example.com"))
	if out.Success {
		t.Fatal("expected failure for bounce-matching recipient")
	}
	if out.ErrorKind != errkind.ProviderInvalidRecipient {
		t.Errorf("error kind = %v, want ProviderInvalidRecipient", out.ErrorKind)
	}
	if out.Retryable {
		t.Error("invalid_recipient must not be retryable")
	}
}

func TestSimulatedProviderSucceedsByDefault(t *testing.T) {
	p := NewSimulated(SimulatedConfig{Randomness: randomness.NewFixed(0.1)})
	out := p.Send(testJob("ok@example.com"))
	if !out.Success {
		t.Fatal("expected success for non-matching recipient")
	}
	if out.ProviderMessageID == "" {
		t.Error("expected a provider_message_id on success")
	}
}

func TestSimulatedProviderIsIdempotentUnderJobID(t *testing.T) {
	p := NewSimulated(SimulatedConfig{
		Failures: []FailurePattern{
			{Pattern: regexp.MustCompile(`^bounce`), Kind: errkind.ProviderInvalidRecipient, Message: "nope"},
		},
		Randomness: randomness.NewFixed(0.3, 0.9),
	})
	job := testJob("bounce-2@example.com")

	first := p.Send(job)
	second := p.Send(job)
	if first != second {
		t.Fatalf("repeated sends of the same job_id produced different outcomes: %+v vs %+v", first, second)
	}
}

func TestLatencyDistributionStaysInBounds(t *testing.T) {
	dist := LatencyDistribution{MinMs: 100, MaxMs: 500, LogNormal: true}
	src := randomness.NewFixed(0.01, 0.25, 0.5, 0.75, 0.99)
	for i := 0; i < 20; i++ {
		v := dist.Sample(src)
		if v < dist.MinMs || v > dist.MaxMs {
			t.Fatalf("sample %d out of bounds: %d", i, v)
		}
	}
}
