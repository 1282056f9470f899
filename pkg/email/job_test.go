package email

import (
	"testing"
	"time"
)

func TestNewValidJob(t *testing.T) {
	j, err := New("a@example.com", "sender@example.com", "hello", "body", "", "acct-1", 5, PriorityNormal, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.JobID == "" {
		t.Error("expected a generated job id")
	}
	if j.AttemptsMade != 0 {
		t.Errorf("AttemptsMade = %d, want 0", j.AttemptsMade)
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() (string, string, string, string, string, string, int, Priority) {
		return "a@example.com", "sender@example.com", "hello", "body", "", "acct-1", 5, PriorityNormal
	}

	cases := []struct {
		name   string
		mutate func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority)
	}{
		{"bad to", func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority) {
			return "not-an-email", from, subject, text, html, acct, age, p
		}},
		{"bad from", func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority) {
			return to, "no-domain@", subject, text, html, acct, age, p
		}},
		{"empty subject", func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority) {
			return to, from, "  ", text, html, acct, age, p
		}},
		{"both bodies", func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority) {
			return to, from, subject, text, "<b>x</b>", acct, age, p
		}},
		{"no bodies", func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority) {
			return to, from, subject, "", "", acct, age, p
		}},
		{"bad priority", func(to, from, subject, text, html, acct string, age int, p Priority) (string, string, string, string, string, string, int, Priority) {
			return to, from, subject, text, html, acct, age, Priority("urgent")
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			to, from, subject, text, html, acct, age, p := c.mutate(base())
			if _, err := New(to, from, subject, text, html, acct, age, p, time.Now()); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPriorityQueueMapping(t *testing.T) {
	cases := map[Priority]QueueName{
		PriorityCritical: QueueHigh,
		PriorityHigh:     QueueHigh,
		PriorityNormal:   QueueNormal,
		PriorityLow:      QueueBulk,
	}
	for p, want := range cases {
		got, err := p.Queue()
		if err != nil {
			t.Fatalf("Queue() error for %v: %v", p, err)
		}
		if got != want {
			t.Errorf("%v.Queue() = %v, want %v", p, got, want)
		}
	}
}

func TestDomain(t *testing.T) {
	d, err := Domain("user@example.com")
	if err != nil || d != "example.com" {
		t.Errorf("Domain() = %q, %v, want example.com, nil", d, err)
	}
	if _, err := Domain("no-at-sign"); err == nil {
		t.Error("expected error for missing @")
	}
	if _, err := Domain("@example.com"); err == nil {
		t.Error("expected error for empty local part")
	}
}

func TestWithRetryAndRescheduled(t *testing.T) {
	j, _ := New("a@example.com", "sender@example.com", "hello", "body", "", "acct-1", 5, PriorityNormal, time.Now())
	later := time.Now().Add(time.Minute)

	retried := j.WithRetry(later)
	if retried.AttemptsMade != 1 {
		t.Errorf("AttemptsMade = %d, want 1", retried.AttemptsMade)
	}
	if !retried.ScheduledAt.Equal(later) {
		t.Error("ScheduledAt not updated")
	}

	rescheduled := j.WithRescheduled(later)
	if rescheduled.AttemptsMade != 0 {
		t.Errorf("AttemptsMade = %d, want 0 (rate-limit reschedule must not consume retries)", rescheduled.AttemptsMade)
	}
}
