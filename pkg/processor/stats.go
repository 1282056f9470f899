package processor

import (
	"sync"
	"sync/atomic"
	"time"
)

const throughputWindow = 60 * time.Second

// Stats is a point-in-time read of the processor's send metrics, the
// shape the Monitor samples on each tick.
type Stats struct {
	Processed        int64
	Succeeded        int64
	Failed           int64
	ThroughputPerSec float64
	AvgLatencyMs     float64
	ErrorRate        float64
}

type sendEvent struct {
	at        time.Time
	success   bool
	latencyMs int64
}

// tracker accumulates all-time counters plus a 60s rolling window of send
// events for throughput/latency/error-rate, mirroring the "rolling
// throughput (sends per second over last 60s)" requirement.
type tracker struct {
	mu             sync.Mutex
	window         []sendEvent
	processedTotal atomic.Int64
	succeededTotal atomic.Int64
	failedTotal    atomic.Int64
}

func newTracker() *tracker {
	return &tracker{}
}

// record appends a completed send and evicts window entries older than
// 60s relative to now.
func (t *tracker) record(now time.Time, success bool, latencyMs int64) {
	t.processedTotal.Add(1)
	if success {
		t.succeededTotal.Add(1)
	} else {
		t.failedTotal.Add(1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = append(t.window, sendEvent{at: now, success: success, latencyMs: latencyMs})
	t.pruneLocked(now)
}

func (t *tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	i := 0
	for ; i < len(t.window); i++ {
		if t.window[i].at.After(cutoff) {
			break
		}
	}
	t.window = t.window[i:]
}

// snapshot returns the current Stats as of now, pruning the window first.
func (t *tracker) snapshot(now time.Time) Stats {
	t.mu.Lock()
	t.pruneLocked(now)
	windowLen := len(t.window)
	var failedInWindow int
	var latencySum int64
	for _, e := range t.window {
		if !e.success {
			failedInWindow++
		}
		latencySum += e.latencyMs
	}
	t.mu.Unlock()

	stats := Stats{
		Processed: t.processedTotal.Load(),
		Succeeded: t.succeededTotal.Load(),
		Failed:    t.failedTotal.Load(),
	}
	if windowLen > 0 {
		stats.ThroughputPerSec = float64(windowLen) / throughputWindow.Seconds()
		stats.AvgLatencyMs = float64(latencySum) / float64(windowLen)
		stats.ErrorRate = float64(failedInWindow) / float64(windowLen)
	}
	return stats
}
