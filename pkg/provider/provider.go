// Package provider defines the Provider port, a single "send one email"
// operation plus a health probe, and the fixed error taxonomy every
// implementation maps its failures onto. A send returns a SendOutcome
// carrying latency and a typed, retryable-flagged error kind rather than
// a bare error.
package provider

import (
	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/errkind"
)

// HealthProbe reports whether the provider is currently reachable and how
// long the probe took.
type HealthProbe struct {
	Healthy   bool
	LatencyMs int64
}

// SendOutcome is produced per send attempt.
type SendOutcome struct {
	Success           bool
	ProviderMessageID string
	LatencyMs         int64
	ErrorKind         errkind.Kind
	ErrorMessage      string
	Retryable         bool
}

// Provider is the pluggable "send one email" abstraction. Implementations
// must be idempotent under job.JobID: two Send calls with the same job_id
// must not produce two real deliveries.
type Provider interface {
	Send(job email.Job) SendOutcome
	Health() HealthProbe
}

// Failure builds a SendOutcome for a send failure, deriving Retryable from
// the error kind's fixed taxonomy rule rather than letting callers guess.
func Failure(kind errkind.Kind, message string, latencyMs int64) SendOutcome {
	return SendOutcome{
		Success:      false,
		LatencyMs:    latencyMs,
		ErrorKind:    kind,
		ErrorMessage: message,
		Retryable:    kind.Retryable(),
	}
}

// Success builds a SendOutcome for a successful send.
func Success(messageID string, latencyMs int64) SendOutcome {
	return SendOutcome{
		Success:           true,
		ProviderMessageID: messageID,
		LatencyMs:         latencyMs,
	}
}
