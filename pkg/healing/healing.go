// Package healing implements the self-healing engine: a per-task retry
// controller with a hard attempt cap, exponential backoff with jitter
// bounded to [0.8,1.2] of the expected delay, and operator escalation
// once the cap is exhausted. State transitions publish to a subscriber
// bus; a panicking subscriber never takes down the others.
package healing

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outboxguard/engine/pkg/clock"
	"github.com/outboxguard/engine/pkg/errkind"
	"github.com/outboxguard/engine/pkg/log"
	"github.com/outboxguard/engine/pkg/randomness"
)

// EventType names a point in the per-task state machine.
type EventType string

const (
	EventStarted   EventType = "started"
	EventRetrying  EventType = "retrying"
	EventFailed    EventType = "failed"
	EventSucceeded EventType = "succeeded"
	EventEscalated EventType = "escalated"
)

// ActionKind is the advisory classification of a failure, recorded on the
// HealingAttempt but never changing the backoff curve.
type ActionKind string

const (
	ActionRetryWithBackoff    ActionKind = "retry_with_backoff"
	ActionRetryAfterRateLimit ActionKind = "retry_after_rate_limit"
	ActionRetryNetwork        ActionKind = "retry_network"
	ActionWaitForResource     ActionKind = "wait_for_resource"
	ActionRetryDefault        ActionKind = "retry_default"
)

// HealingAttempt is one recorded attempt within a task's retry history.
type HealingAttempt struct {
	AttemptID     string
	TaskID        string
	AttemptNumber int
	StartedAt     time.Time
	Action        ActionKind
	Outcome       string // always "failed": only failed attempts are recorded
	DelayMsBefore int64
}

// Event is published to subscribers after every state transition.
type Event struct {
	Type          EventType
	TaskID        string
	AttemptNumber int
	DelayMs       int64
	Action        ActionKind
	History       []HealingAttempt // populated only on EventEscalated
}

// Decision is returned from Monitor: either a scheduled retry with a
// concrete delay, or a terminal escalation.
type Decision struct {
	Retry     bool
	DelayMs   int64
	Escalated bool
	History   []HealingAttempt
}

// Config configures an Engine. Zero values default to MaxAttempts 3,
// BackoffMultiplier 2, and a 24h delay ceiling so an unset MaxDelayMs
// doesn't collapse every backoff to zero.
type Config struct {
	BaseDelayMs       int64
	MaxDelayMs        int64
	MaxAttempts       int
	BackoffMultiplier float64
	OnEscalate        func(taskID string, history []HealingAttempt)
	Clock             clock.Clock
	Randomness        randomness.Source
}

const defaultMaxDelayMs = int64(24 * time.Hour / time.Millisecond)

// Engine is the self-healing retry controller, one instance per pipeline,
// tracking independent state per task_id.
type Engine struct {
	cfg         Config
	mu          sync.Mutex
	tasks       map[string][]HealingAttempt
	subscribers []func(Event)
}

// New builds an Engine, applying Config defaults.
func New(cfg Config) *Engine {
	if cfg.BaseDelayMs <= 0 {
		cfg.BaseDelayMs = 1000
	}
	if cfg.MaxDelayMs <= 0 {
		cfg.MaxDelayMs = defaultMaxDelayMs
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Randomness == nil {
		cfg.Randomness = randomness.Real{}
	}
	return &Engine{cfg: cfg, tasks: make(map[string][]HealingAttempt)}
}

// OnEvent registers a subscriber, called in registration order. A
// panicking subscriber is caught and logged; other subscribers still run.
func (e *Engine) OnEvent(fn func(Event)) {
	e.subscribers = append(e.subscribers, fn)
}

// Monitor reports a failed attempt for taskID, advancing its state machine:
// idle/attempting(n) -> attempting(n+1) if n < MaxAttempts, or ->
// escalated if n == MaxAttempts. kind and message feed the advisory action
// classifier; they never change the backoff curve.
func (e *Engine) Monitor(taskID string, kind errkind.Kind, message string) Decision {
	e.mu.Lock()
	hist := e.tasks[taskID]
	isFirst := len(hist) == 0

	if isFirst {
		e.emit(Event{Type: EventStarted, TaskID: taskID})
	} else {
		e.emit(Event{Type: EventFailed, TaskID: taskID, AttemptNumber: len(hist)})
	}

	attemptNumber := len(hist) + 1
	action := classify(kind, message)

	if attemptNumber <= e.cfg.MaxAttempts {
		delay := e.backoff(attemptNumber)
		attempt := HealingAttempt{
			AttemptID:     uuid.New().String(),
			TaskID:        taskID,
			AttemptNumber: attemptNumber,
			StartedAt:     e.cfg.Clock.Now(),
			Action:        action,
			Outcome:       "failed",
			DelayMsBefore: delay,
		}
		hist = append(hist, attempt)
		e.tasks[taskID] = hist
		e.mu.Unlock()

		e.emit(Event{Type: EventRetrying, TaskID: taskID, AttemptNumber: attemptNumber, DelayMs: delay, Action: action})
		return Decision{Retry: true, DelayMs: delay, History: append([]HealingAttempt{}, hist...)}
	}

	final := append([]HealingAttempt{}, hist...)
	delete(e.tasks, taskID)
	e.mu.Unlock()

	e.safeEscalate(taskID, final)
	e.emit(Event{Type: EventEscalated, TaskID: taskID, History: final})
	return Decision{Escalated: true, History: final}
}

// Escalate terminally escalates taskID outside the normal attempt
// progression — a caller whose own accounting says the attempt budget is
// spent (e.g. a job re-hydrated after a restart with AttemptsMade already
// at the cap) uses this instead of Monitor. The recorded history is
// delivered to OnEscalate, the event is emitted, and the per-task state
// is cleared.
func (e *Engine) Escalate(taskID string) []HealingAttempt {
	e.mu.Lock()
	final := append([]HealingAttempt{}, e.tasks[taskID]...)
	delete(e.tasks, taskID)
	e.mu.Unlock()

	e.safeEscalate(taskID, final)
	e.emit(Event{Type: EventEscalated, TaskID: taskID, History: final})
	return final
}

// Succeed clears taskID's history and emits EventSucceeded, but only if
// the task had entered the attempting state — a first-try success never
// touched Monitor and so emits nothing.
func (e *Engine) Succeed(taskID string) {
	e.mu.Lock()
	_, existed := e.tasks[taskID]
	delete(e.tasks, taskID)
	e.mu.Unlock()

	if existed {
		e.emit(Event{Type: EventSucceeded, TaskID: taskID})
	}
}

// History returns a snapshot of taskID's recorded attempts so far.
func (e *Engine) History(taskID string) []HealingAttempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HealingAttempt{}, e.tasks[taskID]...)
}

// backoff computes delay(attempt) = min(base*mult^(attempt-1), max) *
// jitter, jitter uniform in [0.8, 1.2], rounded to the nearest millisecond.
func (e *Engine) backoff(attempt int) int64 {
	expected := float64(e.cfg.BaseDelayMs) * math.Pow(e.cfg.BackoffMultiplier, float64(attempt-1))
	if expected > float64(e.cfg.MaxDelayMs) {
		expected = float64(e.cfg.MaxDelayMs)
	}
	jitter := 0.8 + 0.4*e.cfg.Randomness.Float64()
	return int64(math.Round(expected * jitter))
}

// emit calls every subscriber in registration order. It may run while e.mu
// is held by Monitor, which is safe only because subscribers must do
// trivial work and never call back into the Engine.
func (e *Engine) emit(ev Event) {
	for _, sub := range e.subscribers {
		e.safeCall(sub, ev)
	}
}

func (e *Engine) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("healing subscriber panicked", "recover", r, "event", ev.Type)
		}
	}()
	fn(ev)
}

func (e *Engine) safeEscalate(taskID string, history []HealingAttempt) {
	if e.cfg.OnEscalate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("healing on_escalate panicked", "recover", r, "task_id", taskID)
		}
	}()
	e.cfg.OnEscalate(taskID, history)
}
