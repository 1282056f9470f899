package svc

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/time/rate"

	"github.com/outboxguard/engine/internal/config"
	pkgconfig "github.com/outboxguard/engine/pkg/config"
	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/emailqueue"
	"github.com/outboxguard/engine/pkg/errkind"
	"github.com/outboxguard/engine/pkg/healing"
	"github.com/outboxguard/engine/pkg/mail"
	"github.com/outboxguard/engine/pkg/monitor"
	"github.com/outboxguard/engine/pkg/persist"
	"github.com/outboxguard/engine/pkg/predictive"
	"github.com/outboxguard/engine/pkg/processor"
	"github.com/outboxguard/engine/pkg/provider"
	"github.com/outboxguard/engine/pkg/ratelimiter"
)

// ServiceContext is the service container: every pipeline component,
// constructed once at startup and wired together here. There are no
// package-level singletons; tests build their own context (and may call
// Reset between cases), production code builds exactly one in cmd/server.
type ServiceContext struct {
	Config config.Config

	Store *persist.Store
	Log   *persist.Log

	Queue     *emailqueue.Queue
	Limiter   *ratelimiter.Limiter
	Provider  provider.Provider
	Healing   *healing.Engine
	Processor *processor.Processor
	Monitor   *monitor.Monitor
	Guard     *predictive.Guard
}

// NewServiceContext opens the persistence store and builds the full
// pipeline.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	dbPath := c.Database.Path
	if dbPath == "" {
		dbPath = pkgconfig.GetPersistenceDBPath()
	}

	store, err := persist.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open persistence store: %w", err)
	}

	plog, err := persist.NewLog(store.SqlConn())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create append-only log: %w", err)
	}

	s := &ServiceContext{Config: c, Store: store, Log: plog}
	if err := s.buildPipeline(); err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// buildPipeline constructs the in-memory components and wires the event
// subscriptions. Called from NewServiceContext and again from Reset.
func (s *ServiceContext) buildPipeline() error {
	c := s.Config

	prov, err := buildProvider(c.Provider)
	if err != nil {
		return err
	}

	s.Queue = emailqueue.New()
	s.Limiter = ratelimiter.New(ratelimiter.Config{
		Tiers:                       c.Limiter.Tiers(),
		ConsecutiveFailureThreshold: c.Limiter.ConsecutiveFailureThreshold,
		HardLimit:                   c.Limiter.HardLimit,
	})
	s.Provider = prov
	s.Healing = healing.New(healing.Config{
		BaseDelayMs:       c.Healing.BaseDelayMs,
		MaxDelayMs:        c.Healing.MaxDelayMs,
		MaxAttempts:       c.Healing.MaxAttempts,
		BackoffMultiplier: c.Healing.BackoffMultiplier,
		OnEscalate: func(taskID string, history []healing.HealingAttempt) {
			logx.Errorw("job escalated to operator",
				logx.Field("job_id", taskID),
				logx.Field("attempts", len(history)))
		},
	})
	s.Processor = processor.New(processor.Config{
		MaxAttempts: c.Healing.MaxAttempts,
	}, s.Queue, s.Limiter, s.Provider, s.Healing)
	s.Monitor = monitor.New(monitor.Config{
		SampleInterval:              time.Duration(c.Monitor.SampleIntervalMs) * time.Millisecond,
		QueueDepthThreshold:         c.Monitor.QueueDepthThreshold,
		ErrorRateThreshold:          c.Monitor.ErrorRateThreshold,
		UtilizationThreshold:        c.Monitor.UtilizationThreshold,
		ConsecutiveFailureThreshold: c.Limiter.ConsecutiveFailureThreshold,
		TrackedCap:                  c.Limiter.TrackedCap,
	}, s.Queue, s.Limiter, s.Processor, s.Provider)
	s.Guard = predictive.New(predictive.Config{})

	s.Processor.OnEvent(s.recordJobEvent)
	s.Healing.OnEvent(s.recordHealingEvent)
	s.Monitor.OnAlert(s.recordAlertTransition)

	return nil
}

func buildProvider(c config.ProviderConfig) (provider.Provider, error) {
	switch c.Mode {
	case "", "simulated":
		var failures []provider.FailurePattern
		if c.FailurePattern != "" {
			re, err := regexp.Compile(c.FailurePattern)
			if err != nil {
				return nil, fmt.Errorf("compile provider failure pattern: %w", err)
			}
			failures = append(failures, provider.FailurePattern{
				Pattern: re,
				Kind:    errkind.ProviderUnknown,
				Message: "simulated failure",
			})
		}
		return provider.NewSimulated(provider.SimulatedConfig{
			Latency:  provider.LatencyDistribution{MinMs: c.LatencyMinMs, MaxMs: c.LatencyMaxMs},
			Failures: failures,
		}), nil
	case "smtp":
		return provider.NewSMTP(provider.SMTPConfig{
			Mail: mail.Config{
				SMTPHost: c.SMTP.Host,
				SMTPPort: c.SMTP.Port,
				Username: c.SMTP.Username,
				Password: c.SMTP.Password,
				FromName: c.SMTP.FromName,
			},
			PerSecond: rate.Limit(c.RatePerSecond),
			Burst:     c.Burst,
			Timeout:   time.Duration(c.ProviderTimeoutMs) * time.Millisecond,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider mode %q", c.Mode)
	}
}

// Enqueue is the in-process producer API: it validates and enqueues job,
// then appends a "queued" snapshot to the jobs log. Validation errors
// surface synchronously; send-time errors never will.
func (s *ServiceContext) Enqueue(job email.Job) (emailqueue.EnqueueResult, error) {
	if err := job.Validate(); err != nil {
		return emailqueue.EnqueueResult{}, err
	}
	res, err := s.Queue.Enqueue(job)
	if err != nil {
		return emailqueue.EnqueueResult{}, err
	}
	s.Log.RecordJob(jobRecord(job, string(res.QueueName), "queued"))
	return res, nil
}

// Recover warms the limiter from the rate-track snapshot, then replays
// the jobs log and re-enqueues every job whose last recorded event is not
// terminal, per the persisted-state recovery contract. Returns the number
// of jobs re-enqueued.
func (s *ServiceContext) Recover(ctx context.Context) (int, error) {
	tracks, err := persist.LoadRateTracks(ctx, s.Store.SqlConn())
	if err != nil {
		return 0, fmt.Errorf("load rate tracks: %w", err)
	}
	states := make([]ratelimiter.TrackState, 0, len(tracks))
	for _, t := range tracks {
		states = append(states, ratelimiter.TrackState{
			Domain:              t.Domain,
			AccountID:           t.AccountID,
			AccountAgeDays:      t.AccountAgeDays,
			MinuteWindowStart:   t.MinuteWindowStart,
			HourWindowStart:     t.HourWindowStart,
			DayWindowStart:      t.DayWindowStart,
			SentThisMinute:      t.SentThisMinute,
			SentThisHour:        t.SentThisHour,
			SentToday:           t.SentToday,
			FailureCountTotal:   t.FailureCountTotal,
			ConsecutiveFailures: t.ConsecutiveFailures,
			LastSendAt:          t.LastSendAt,
		})
	}
	s.Limiter.RestoreTracks(states)

	inflight, err := persist.ReplayInFlight(ctx, s.Store.SqlConn())
	if err != nil {
		return 0, fmt.Errorf("replay jobs log: %w", err)
	}

	n := 0
	for _, in := range inflight {
		job := email.Job{
			JobID:          in.JobID,
			To:             in.To,
			From:           in.From,
			Subject:        in.Subject,
			BodyText:       in.BodyText,
			BodyHTML:       in.BodyHTML,
			AccountID:      in.AccountID,
			AccountAgeDays: in.AccountAgeDays,
			Priority:       email.Priority(in.Priority),
			ScheduledAt:    in.ScheduledAt,
			Headers:        in.Headers,
			CampaignID:     in.CampaignID,
			AttemptsMade:   in.AttemptsMade,
		}
		if _, err := s.Queue.Enqueue(job); err != nil {
			logx.Errorw("recovery: dropping unroutable job",
				logx.Field("job_id", in.JobID), logx.Field("error", err.Error()))
			continue
		}
		n++
	}
	return n, nil
}

// Reset tears down the in-memory pipeline state and rebuilds it against
// the same store. Tests only; production code never calls this.
func (s *ServiceContext) Reset() error {
	return s.buildPipeline()
}

// Close flushes pending log batches, snapshots the limiter's rate tracks,
// and closes the store.
func (s *ServiceContext) Close() {
	s.Log.Flush()

	states := s.Limiter.ExportTracks()
	records := make([]persist.RateTrackRecord, 0, len(states))
	for _, st := range states {
		records = append(records, persist.RateTrackRecord{
			Domain:              st.Domain,
			AccountID:           st.AccountID,
			AccountAgeDays:      st.AccountAgeDays,
			MinuteWindowStart:   st.MinuteWindowStart,
			HourWindowStart:     st.HourWindowStart,
			DayWindowStart:      st.DayWindowStart,
			SentThisMinute:      st.SentThisMinute,
			SentThisHour:        st.SentThisHour,
			SentToday:           st.SentToday,
			FailureCountTotal:   st.FailureCountTotal,
			ConsecutiveFailures: st.ConsecutiveFailures,
			LastSendAt:          st.LastSendAt,
		})
	}
	if err := persist.SaveRateTracks(context.Background(), s.Store.SqlConn(), records); err != nil {
		logx.Errorf("snapshot rate tracks: %v", err)
	}

	if err := s.Store.Close(); err != nil {
		logx.Errorf("close persistence store: %v", err)
	}
}

func (s *ServiceContext) recordJobEvent(ev processor.Event) {
	var status string
	switch ev.Type {
	case processor.EventSucceeded:
		status = "succeeded"
	case processor.EventDeadLettered:
		status = "dead_lettered"
	case processor.EventEscalated:
		status = "escalated"
	case processor.EventRetrying:
		status = "retrying"
	case processor.EventRateLimited:
		status = "rescheduled"
	default:
		return // attempt-level detail lands in the attempts log instead
	}
	queueName := ""
	if qn, err := ev.Job.Priority.Queue(); err == nil {
		queueName = string(qn)
	}
	s.Log.RecordJob(jobRecord(ev.Job, queueName, status))
}

func (s *ServiceContext) recordHealingEvent(ev healing.Event) {
	switch ev.Type {
	case healing.EventRetrying, healing.EventSucceeded, healing.EventEscalated:
	default:
		return
	}
	s.Log.RecordAttempt(persist.AttemptRecord{
		AttemptID:     uuid.New().String(),
		JobID:         ev.TaskID,
		AttemptNumber: ev.AttemptNumber,
		Action:        string(ev.Action),
		Outcome:       string(ev.Type),
		DelayMsBefore: int(ev.DelayMs),
	})
}

func (s *ServiceContext) recordAlertTransition(a monitor.Alert, transition string) {
	s.Log.RecordAlert(persist.AlertRecord{
		AlertID:    a.ID,
		RuleID:     a.RuleID,
		Component:  a.Component,
		Severity:   string(a.Severity),
		Message:    a.Message,
		Transition: transition,
	})
}

func jobRecord(job email.Job, queueName, status string) persist.JobRecord {
	return persist.JobRecord{
		JobID:          job.JobID,
		QueueName:      queueName,
		Status:         status,
		Priority:       string(job.Priority),
		AccountID:      job.AccountID,
		To:             job.To,
		From:           job.From,
		Subject:        job.Subject,
		BodyText:       job.BodyText,
		BodyHTML:       job.BodyHTML,
		Headers:        job.Headers,
		CampaignID:     job.CampaignID,
		AccountAgeDays: job.AccountAgeDays,
		AttemptsMade:   job.AttemptsMade,
		ScheduledAt:    job.ScheduledAt,
	}
}
