package predictive

import (
	"testing"
	"time"

	"github.com/outboxguard/engine/pkg/clock"
)

func blockedTask(id, assignee string, blockedFor time.Duration, createdAt time.Time) Task {
	blockedAt := createdAt.Add(time.Hour)
	unblockedAt := blockedAt.Add(blockedFor)
	return Task{
		TaskID:      id,
		Status:      "blocked",
		Priority:    "normal",
		Assignee:    assignee,
		Tags:        []string{"backend"},
		BlockedAt:   &blockedAt,
		UnblockedAt: &unblockedAt,
		CreatedAt:   createdAt,
	}
}

func cleanTask(id, assignee string, createdAt time.Time) Task {
	return Task{
		TaskID:    id,
		Status:    "done",
		Priority:  "normal",
		Assignee:  assignee,
		Tags:      []string{"backend"},
		CreatedAt: createdAt,
	}
}

func TestMinePatternsFindsRecurringAssigneeBlocker(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		blockedTask("t1", "alice", 2*time.Hour, base),
		blockedTask("t2", "alice", 4*time.Hour, base),
		blockedTask("t3", "alice", 3*time.Hour, base),
		cleanTask("t4", "bob", base),
		cleanTask("t5", "bob", base),
		cleanTask("t6", "bob", base),
	}

	patterns := MinePatterns(tasks, MineConfig{MinSupport: 3, MinOccurrence: 2})

	var found *BlockerPattern
	for i := range patterns {
		if patterns[i].ID == "assignee:alice" {
			found = &patterns[i]
		}
	}
	if found == nil {
		t.Fatalf("patterns = %+v, want an assignee:alice pattern", patterns)
	}
	if found.Frequency != 1.0 {
		t.Fatalf("Frequency = %v, want 1.0 (all of alice's tasks blocked)", found.Frequency)
	}
	if found.OccurrenceCount != 3 {
		t.Fatalf("OccurrenceCount = %d, want 3", found.OccurrenceCount)
	}
	if found.AvgResolutionTimeMs != 3*time.Hour.Milliseconds() {
		t.Fatalf("AvgResolutionTimeMs = %d, want %d", found.AvgResolutionTimeMs, 3*time.Hour.Milliseconds())
	}
	if found.Severity != SeverityCritical {
		t.Fatalf("Severity = %s, want critical (frequency 1.0)", found.Severity)
	}

	for _, p := range patterns {
		if p.ID == "assignee:bob" {
			t.Fatalf("bob's tasks never blocked, should not produce a pattern: %+v", p)
		}
	}
}

func TestMinePatternsDropsBelowMinSupport(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		blockedTask("t1", "carol", time.Hour, base),
	}
	patterns := MinePatterns(tasks, MineConfig{MinSupport: 3, MinOccurrence: 2})
	for _, p := range patterns {
		if p.ID == "assignee:carol" {
			t.Fatalf("single-occurrence condition should be dropped below MinSupport: %+v", p)
		}
	}
}

func TestPredictRanksByConfidenceAndAppliesCriticalBoost(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	patterns := []BlockerPattern{
		{
			ID:                  "assignee:alice",
			Severity:            SeverityHigh,
			Conditions:          []Condition{{Field: "assignee", Operator: OperatorEquals, Value: "alice"}},
			Frequency:           0.8,
			AvgResolutionTimeMs: int64(2 * time.Hour / time.Millisecond),
		},
	}
	tasks := []Task{
		{TaskID: "normal-task", Assignee: "alice", Priority: "normal"},
		{TaskID: "critical-task", Assignee: "alice", Priority: "critical"},
		{TaskID: "unrelated-task", Assignee: "bob", Priority: "normal"},
	}

	predictions := Predict(patterns, tasks, PredictConfig{MaxPredictions: 10, MinConfidence: 0, Clock: fake})

	if len(predictions) != 2 {
		t.Fatalf("predictions = %+v, want 2 (bob never matches)", predictions)
	}
	if predictions[0].TaskID != "critical-task" {
		t.Fatalf("predictions[0] = %+v, want critical-task ranked first (boosted)", predictions[0])
	}
	wantBase := 0.8 * SeverityHigh.Weight()
	wantCritical := clamp01(wantBase + criticalPriorityBoost)
	if predictions[0].Confidence != wantCritical {
		t.Fatalf("critical-task confidence = %v, want %v", predictions[0].Confidence, wantCritical)
	}
	if predictions[1].Confidence != wantBase {
		t.Fatalf("normal-task confidence = %v, want %v", predictions[1].Confidence, wantBase)
	}
	if predictions[0].PredictedBlockTime.Sub(fake.Now()) != 2*time.Hour {
		t.Fatalf("PredictedBlockTime offset = %v, want 2h", predictions[0].PredictedBlockTime.Sub(fake.Now()))
	}
}

func TestPredictDropsBelowMinConfidence(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	patterns := []BlockerPattern{
		{
			ID:         "tag:flaky",
			Severity:   SeverityLow,
			Conditions: []Condition{{Field: "tag", Operator: OperatorContains, Value: "flaky"}},
			Frequency:  0.3,
		},
	}
	tasks := []Task{{TaskID: "t1", Tags: []string{"flaky"}}}

	predictions := Predict(patterns, tasks, PredictConfig{MaxPredictions: 10, MinConfidence: 0.9, Clock: fake})
	if len(predictions) != 0 {
		t.Fatalf("predictions = %+v, want none (all below min_confidence 0.9)", predictions)
	}
}

func TestGuardTrainThenPredict(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(base)
	g := New(Config{
		Mine:    MineConfig{MinSupport: 2, MinOccurrence: 2},
		Predict: PredictConfig{MaxPredictions: 5, MinConfidence: 0, Clock: fake},
	})

	historical := []Task{
		blockedTask("h1", "dave", time.Hour, base),
		blockedTask("h2", "dave", time.Hour, base),
	}
	if got := g.Train(historical); len(got) == 0 {
		t.Fatal("Train produced no patterns")
	}

	current := []Task{{TaskID: "c1", Assignee: "dave", Priority: "normal"}}
	predictions := g.Predict(current)
	// h1/h2 yield assignee:dave, priority:normal, status:blocked and
	// tag:backend patterns; c1 matches the first two.
	if len(predictions) != 2 || predictions[0].TaskID != "c1" || predictions[1].TaskID != "c1" {
		t.Fatalf("predictions = %+v, want two predictions for c1", predictions)
	}
	if predictions[0].PatternID != "assignee:dave" || predictions[1].PatternID != "priority:normal" {
		t.Fatalf("pattern ids = %q, %q, want assignee:dave, priority:normal", predictions[0].PatternID, predictions[1].PatternID)
	}
}
