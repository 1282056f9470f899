package emailqueue

import (
	"container/heap"

	"github.com/outboxguard/engine/pkg/email"
)

// laneHeap orders jobs by (ScheduledAt, EnqueueSeq), the FIFO-with-schedule
// rule for a single lane. It implements container/heap.Interface so the
// earliest-ready job is always at index 0.
type laneHeap []email.Job

func (h laneHeap) Len() int { return len(h) }

func (h laneHeap) Less(i, j int) bool {
	if !h[i].ScheduledAt.Equal(h[j].ScheduledAt) {
		return h[i].ScheduledAt.Before(h[j].ScheduledAt)
	}
	return h[i].EnqueueSeq < h[j].EnqueueSeq
}

func (h laneHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *laneHeap) Push(x any) {
	*h = append(*h, x.(email.Job))
}

func (h *laneHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*laneHeap)(nil)
