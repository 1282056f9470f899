package svc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/outboxguard/engine/internal/config"
	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/processor"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		Pipeline: config.PipelineConfig{Workers: 1, PollIntervalMs: 10},
		Limiter:  config.LimiterConfig{HardLimit: true, ConsecutiveFailureThreshold: 10},
		Healing:  config.HealingConfig{BaseDelayMs: 10, MaxDelayMs: 1000, MaxAttempts: 3, BackoffMultiplier: 2},
		Monitor:  config.MonitorConfig{SampleIntervalMs: 1000},
		Provider: config.ProviderConfig{Mode: "simulated", LatencyMinMs: 1, LatencyMaxMs: 2},
	}
}

func newTestJob(t *testing.T, to string) email.Job {
	t.Helper()
	job, err := email.New(to, "sender@outbound.example", "hello", "plain body", "",
		"acct-test", 40, email.PriorityNormal, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	return job
}

func TestServiceContextEndToEnd(t *testing.T) {
	s, err := NewServiceContext(testConfig(t))
	if err != nil {
		t.Fatalf("NewServiceContext: %v", err)
	}
	defer s.Close()

	res, err := s.Enqueue(newTestJob(t, "rcpt@example.com"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if res.QueueName != email.QueueNormal {
		t.Fatalf("queue = %s, want %s", res.QueueName, email.QueueNormal)
	}

	job, _, ok := s.Queue.DequeueReady(time.Now())
	if !ok {
		t.Fatal("expected a ready job")
	}
	result := s.Processor.ProcessJob(job)
	if result.Outcome != processor.OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", result.Outcome)
	}

	// The succeeded job's last snapshot is terminal, so recovery must not
	// re-enqueue it.
	s.Log.Flush()
	n, err := s.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 0 {
		t.Fatalf("recovered %d jobs, want 0", n)
	}
}

func TestServiceContextRecoversInFlightJobs(t *testing.T) {
	s, err := NewServiceContext(testConfig(t))
	if err != nil {
		t.Fatalf("NewServiceContext: %v", err)
	}
	defer s.Close()

	if _, err := s.Enqueue(newTestJob(t, "stuck@example.com")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	s.Log.Flush()

	// Simulate a restart: the in-memory queue is rebuilt empty, then the
	// log replay re-hydrates the never-processed job.
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, _, ok := s.Queue.DequeueReady(time.Now()); ok {
		t.Fatal("queue should be empty after Reset")
	}

	n, err := s.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d jobs, want 1", n)
	}

	job, queueName, ok := s.Queue.DequeueReady(time.Now())
	if !ok {
		t.Fatal("expected the recovered job to be ready")
	}
	if queueName != email.QueueNormal {
		t.Fatalf("queue = %s, want %s", queueName, email.QueueNormal)
	}
	if job.To != "stuck@example.com" {
		t.Fatalf("to = %s", job.To)
	}
}

func TestBuildProviderRejectsUnknownMode(t *testing.T) {
	c := testConfig(t)
	c.Provider.Mode = "carrier-pigeon"
	if _, err := NewServiceContext(c); err == nil {
		t.Fatal("expected an error for an unknown provider mode")
	}
}
