// Package email defines the EmailJob data model and the validation rules
// that gate entry into the pipeline from Enqueue.
package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/outboxguard/engine/pkg/errkind"
)

// Priority is the caller-supplied urgency of a job. It maps to exactly one
// queue: critical/high route to QueueHigh, normal to QueueNormal, low to
// QueueBulk.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// QueueName is one of the three named lanes a job routes to.
type QueueName string

const (
	QueueHigh   QueueName = "HIGH_PRIORITY"
	QueueNormal QueueName = "NORMAL"
	QueueBulk   QueueName = "BULK"
)

// Queue maps a Priority to the queue it belongs in.
func (p Priority) Queue() (QueueName, error) {
	switch p {
	case PriorityCritical, PriorityHigh:
		return QueueHigh, nil
	case PriorityNormal:
		return QueueNormal, nil
	case PriorityLow:
		return QueueBulk, nil
	default:
		return "", fmt.Errorf("unknown priority %q", p)
	}
}

// Job is an immutable EmailJob descriptor. Only EnqueueSeq, AttemptsMade,
// and ScheduledAt are ever rewritten after creation — by the queue
// (EnqueueSeq at insert) and by the processor/self-healing engine
// (AttemptsMade, ScheduledAt on retry).
type Job struct {
	JobID          string
	To             string
	From           string
	Subject        string
	BodyText       string
	BodyHTML       string
	AccountID      string
	AccountAgeDays int
	Priority       Priority
	ScheduledAt    time.Time
	Headers        map[string]string
	CampaignID     string
	AttemptsMade   int

	// EnqueueSeq breaks ties between jobs with equal ScheduledAt within a
	// single queue; assigned by the queue on Enqueue, not by the caller.
	EnqueueSeq uint64
}

// New validates fields and returns a ready-to-enqueue Job with a generated
// JobID and AttemptsMade reset to 0. Validation errors surface synchronously
// to the caller, per the error-handling design: they never reach the
// processor or self-healing engine.
func New(to, from, subject, bodyText, bodyHTML, accountID string, accountAgeDays int, priority Priority, scheduledAt time.Time) (Job, error) {
	j := Job{
		JobID:          uuid.New().String(),
		To:             to,
		From:           from,
		Subject:        subject,
		BodyText:       bodyText,
		BodyHTML:       bodyHTML,
		AccountID:      accountID,
		AccountAgeDays: accountAgeDays,
		Priority:       priority,
		ScheduledAt:    scheduledAt,
		AttemptsMade:   0,
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Validate checks the EmailJob invariants from the data model: to/from
// parse as local@domain, subject is non-empty, exactly one body is set,
// and priority maps to a queue.
func (j Job) Validate() error {
	if _, err := Domain(j.To); err != nil {
		return errkind.New(errkind.JobValidation, fmt.Sprintf("invalid to address: %v", err))
	}
	if _, err := Domain(j.From); err != nil {
		return errkind.New(errkind.JobValidation, fmt.Sprintf("invalid from address: %v", err))
	}
	if strings.TrimSpace(j.Subject) == "" {
		return errkind.New(errkind.JobValidation, "subject must not be empty")
	}
	hasText := strings.TrimSpace(j.BodyText) != ""
	hasHTML := strings.TrimSpace(j.BodyHTML) != ""
	if hasText == hasHTML {
		return errkind.New(errkind.JobValidation, "exactly one of body_text/body_html must be set")
	}
	if _, err := j.Priority.Queue(); err != nil {
		return errkind.New(errkind.JobValidation, err.Error())
	}
	return nil
}

// Domain splits a local@domain address and returns the domain part,
// erroring if the address doesn't parse.
func Domain(address string) (string, error) {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 || at == len(address)-1 {
		return "", fmt.Errorf("address %q is not local@domain", address)
	}
	local, domain := address[:at], address[at+1:]
	if strings.TrimSpace(local) == "" || strings.TrimSpace(domain) == "" || strings.Contains(domain, "@") {
		return "", fmt.Errorf("address %q is not local@domain", address)
	}
	return domain, nil
}

// Local returns the local part of a local@domain address.
func Local(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 {
		return address
	}
	return address[:at]
}

// WithRetry returns a copy of j advanced for a retry: AttemptsMade
// incremented and ScheduledAt rewritten. Rate-limit denials should use
// WithRescheduled instead, since they don't consume the attempt budget.
func (j Job) WithRetry(scheduledAt time.Time) Job {
	j.AttemptsMade++
	j.ScheduledAt = scheduledAt
	return j
}

// WithRescheduled returns a copy of j with only ScheduledAt rewritten,
// leaving AttemptsMade untouched — used for rate-limit-denial re-enqueues.
func (j Job) WithRescheduled(scheduledAt time.Time) Job {
	j.ScheduledAt = scheduledAt
	return j
}
