// Package emailqueue implements the three named priority lanes
// (HIGH_PRIORITY, NORMAL, BULK) plus the dead-letter queue. Each lane is a
// container/heap ordered by (scheduled_at, enqueue_seq) so ready jobs come
// out deterministically; DequeueReady enforces strict priority across
// lanes. The lanes are independent in-memory structures rather than one
// status-column table: strict cross-lane priority cannot ride a single
// ORDER BY without losing the atomic hand-off guarantee.
package emailqueue

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/outboxguard/engine/pkg/email"
)

// Stats describes the state of one lane.
type Stats struct {
	Waiting int // ready jobs (scheduled_at <= now)
	Delayed int // jobs whose scheduled_at is in the future
	Paused  bool
	DLQ     int
}

// EnqueueResult is returned from Enqueue, the producer API's acknowledgement.
type EnqueueResult struct {
	JobID     string
	QueueName email.QueueName
}

type lane struct {
	heap   laneHeap
	paused bool
}

// Queue holds the three priority lanes and the dead-letter queue.
type Queue struct {
	mu      sync.Mutex
	lanes   map[email.QueueName]*lane
	dlq     []email.Job
	nextSeq atomic.Uint64
}

var order = []email.QueueName{email.QueueHigh, email.QueueNormal, email.QueueBulk}

// New creates an empty Queue with all three lanes unpaused.
func New() *Queue {
	q := &Queue{lanes: make(map[email.QueueName]*lane, 3)}
	for _, name := range order {
		q.lanes[name] = &lane{}
	}
	return q
}

// Enqueue routes job to the lane its Priority maps to and returns the
// acknowledgement. The job's EnqueueSeq is assigned here, not by the
// caller.
func (q *Queue) Enqueue(job email.Job) (EnqueueResult, error) {
	queueName, err := job.Priority.Queue()
	if err != nil {
		return EnqueueResult{}, err
	}

	job.EnqueueSeq = q.nextSeq.Add(1)

	q.mu.Lock()
	heap.Push(&q.lanes[queueName].heap, job)
	q.mu.Unlock()

	return EnqueueResult{JobID: job.JobID, QueueName: queueName}, nil
}

// DequeueReady scans HIGH, NORMAL, BULK in order and pops the first lane's
// earliest ready job. The scan and pop happen under a single lock, so the
// pop is atomic: no job is ever handed to two callers. Returns ok=false if
// every lane is empty of ready jobs (or paused).
func (q *Queue) DequeueReady(now time.Time) (job email.Job, queueName email.QueueName, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, name := range order {
		l := q.lanes[name]
		if l.paused || l.heap.Len() == 0 {
			continue
		}
		if l.heap[0].ScheduledAt.After(now) {
			continue
		}
		popped := heap.Pop(&l.heap).(email.Job)
		return popped, name, true
	}
	return email.Job{}, "", false
}

// Stats returns the waiting/delayed/paused counts for name. DLQ is the
// size of the shared dead-letter queue, not a per-lane count.
func (q *Queue) Stats(name email.QueueName, now time.Time) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.lanes[name]
	if !ok {
		return Stats{}
	}

	var waiting, delayed int
	for _, j := range l.heap {
		if j.ScheduledAt.After(now) {
			delayed++
		} else {
			waiting++
		}
	}
	return Stats{Waiting: waiting, Delayed: delayed, Paused: l.paused, DLQ: len(q.dlq)}
}

// Pause suppresses DequeueReady for name without dropping its jobs.
func (q *Queue) Pause(name email.QueueName) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[name]; ok {
		l.paused = true
	}
}

// Resume un-suppresses DequeueReady for name.
func (q *Queue) Resume(name email.QueueName) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[name]; ok {
		l.paused = false
	}
}

// Paused reports whether name currently rejects dequeues.
func (q *Queue) Paused(name email.QueueName) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[name]; ok {
		return l.paused
	}
	return false
}

// DeadLetter parks job in the DLQ. DLQ jobs are never re-dequeued but are
// countable and exportable.
func (q *Queue) DeadLetter(job email.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dlq = append(q.dlq, job)
}

// DeadLetterJobs returns a snapshot of the DLQ contents.
func (q *Queue) DeadLetterJobs() []email.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]email.Job, len(q.dlq))
	copy(out, q.dlq)
	return out
}

// Requeue re-inserts job (typically from self-healing, after rewriting
// ScheduledAt/AttemptsMade) into the lane its current Priority maps to.
func (q *Queue) Requeue(job email.Job) error {
	_, err := q.Enqueue(job)
	return err
}

// Depth returns the total job count (ready + delayed) across all three
// lanes, for the Monitor's queue_depth alert rule.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, l := range q.lanes {
		n += l.heap.Len()
	}
	return n
}
