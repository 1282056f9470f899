package emailqueue

import (
	"testing"
	"time"

	"github.com/outboxguard/engine/pkg/email"
)

func mustJob(t *testing.T, priority email.Priority, scheduledAt time.Time) email.Job {
	t.Helper()
	j, err := email.New("to@example.com", "from@example.com", "subject", "body", "", "acct-1", 10, priority, scheduledAt)
	if err != nil {
		t.Fatalf("email.New: %v", err)
	}
	return j
}

// Scenario 4: a BULK job enqueued first must not block a HIGH_PRIORITY job
// enqueued afterwards; DequeueReady always drains HIGH before NORMAL before
// BULK.
func TestStrictPriorityOrderingPreventsInversion(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()

	bulk := mustJob(t, email.PriorityLow, now)
	if _, err := q.Enqueue(bulk); err != nil {
		t.Fatalf("enqueue bulk: %v", err)
	}

	high := mustJob(t, email.PriorityCritical, now.Add(time.Second))
	if _, err := q.Enqueue(high); err != nil {
		t.Fatalf("enqueue high: %v", err)
	}

	job, queueName, ok := q.DequeueReady(now.Add(time.Minute))
	if !ok {
		t.Fatal("expected a ready job")
	}
	if queueName != email.QueueHigh {
		t.Fatalf("dequeued from %q, want HIGH_PRIORITY", queueName)
	}
	if job.JobID != high.JobID {
		t.Fatal("expected the critical job to dequeue before the bulk job")
	}

	job2, queueName2, ok := q.DequeueReady(now.Add(time.Minute))
	if !ok {
		t.Fatal("expected a second ready job")
	}
	if queueName2 != email.QueueBulk || job2.JobID != bulk.JobID {
		t.Fatal("expected the bulk job to dequeue second")
	}
}

func TestLaneOrdersByScheduledAtThenEnqueueSeq(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()

	later := mustJob(t, email.PriorityNormal, now.Add(time.Hour))
	earlier := mustJob(t, email.PriorityNormal, now)

	if _, err := q.Enqueue(later); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(earlier); err != nil {
		t.Fatal(err)
	}

	job, _, ok := q.DequeueReady(now.Add(2 * time.Hour))
	if !ok {
		t.Fatal("expected a ready job")
	}
	if job.JobID != earlier.JobID {
		t.Fatal("expected the earlier-scheduled job to dequeue first")
	}
}

func TestDequeueReadySkipsDelayedJobs(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()

	future := mustJob(t, email.PriorityNormal, now.Add(time.Hour))
	if _, err := q.Enqueue(future); err != nil {
		t.Fatal(err)
	}

	if _, _, ok := q.DequeueReady(now); ok {
		t.Fatal("expected no ready job before scheduled_at")
	}
	if _, _, ok := q.DequeueReady(now.Add(time.Hour)); !ok {
		t.Fatal("expected the job ready once scheduled_at is reached")
	}
}

func TestPauseSuppressesDequeueButKeepsJobs(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()

	job := mustJob(t, email.PriorityNormal, now)
	if _, err := q.Enqueue(job); err != nil {
		t.Fatal(err)
	}

	q.Pause(email.QueueNormal)
	if !q.Paused(email.QueueNormal) {
		t.Fatal("expected queue to report paused")
	}
	if _, _, ok := q.DequeueReady(now); ok {
		t.Fatal("expected paused lane to yield nothing")
	}

	stats := q.Stats(email.QueueNormal, now)
	if stats.Waiting != 1 {
		t.Fatalf("waiting = %d, want 1 (job must not be dropped)", stats.Waiting)
	}

	q.Resume(email.QueueNormal)
	if _, _, ok := q.DequeueReady(now); !ok {
		t.Fatal("expected resumed lane to yield the job")
	}
}

func TestDeadLetterTracksCountAndJobs(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()
	job := mustJob(t, email.PriorityNormal, now)

	q.DeadLetter(job)

	stats := q.Stats(email.QueueNormal, now)
	if stats.DLQ != 1 {
		t.Fatalf("DLQ = %d, want 1", stats.DLQ)
	}
	jobs := q.DeadLetterJobs()
	if len(jobs) != 1 || jobs[0].JobID != job.JobID {
		t.Fatal("expected the dead-lettered job in DeadLetterJobs")
	}
}

func TestStatsSeparatesWaitingFromDelayed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()

	ready := mustJob(t, email.PriorityNormal, now)
	delayed := mustJob(t, email.PriorityNormal, now.Add(time.Hour))
	if _, err := q.Enqueue(ready); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(delayed); err != nil {
		t.Fatal(err)
	}

	stats := q.Stats(email.QueueNormal, now)
	if stats.Waiting != 1 || stats.Delayed != 1 {
		t.Fatalf("stats = %+v, want waiting=1 delayed=1", stats)
	}
}

func TestDepthCountsAllLanes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := New()
	if _, err := q.Enqueue(mustJob(t, email.PriorityCritical, now)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(mustJob(t, email.PriorityLow, now)); err != nil {
		t.Fatal(err)
	}
	if got := q.Depth(); got != 2 {
		t.Fatalf("Depth() = %d, want 2", got)
	}
}
