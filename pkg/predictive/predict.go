package predictive

import (
	"fmt"
	"sort"
	"time"

	"github.com/outboxguard/engine/pkg/clock"
)

// PredictConfig bounds how Predict ranks and truncates its output.
type PredictConfig struct {
	MaxPredictions int
	MinConfidence  float64
	Clock          clock.Clock
}

func (c PredictConfig) withDefaults() PredictConfig {
	if c.MaxPredictions <= 0 {
		c.MaxPredictions = 10
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	return c
}

const criticalPriorityBoost = 0.1

// Predict scores every (task, pattern) pair against the confidence
// formula, drops anything below cfg.MinConfidence or with no matching
// condition, sorts by confidence descending, and truncates to
// cfg.MaxPredictions. PredictedBlockTime is now + the pattern's
// AvgResolutionTimeMs: when a block by that pattern starting now would
// typically clear, not a predicted onset time.
func Predict(patterns []BlockerPattern, tasks []Task, cfg PredictConfig) []PredictedBlocker {
	cfg = cfg.withDefaults()
	now := cfg.Clock.Now()

	var out []PredictedBlocker
	for _, task := range tasks {
		for _, pattern := range patterns {
			matched, ratio := matchRatio(pattern, task)
			if ratio <= 0 {
				continue
			}

			confidence := pattern.Frequency * pattern.Severity.Weight() * ratio
			if task.Priority == "critical" {
				confidence += criticalPriorityBoost
			}
			confidence = clamp01(confidence)

			if confidence < cfg.MinConfidence {
				continue
			}

			out = append(out, PredictedBlocker{
				TaskID:              task.TaskID,
				PatternID:           pattern.ID,
				Confidence:          confidence,
				PredictedBlockTime:  now.Add(time.Duration(pattern.AvgResolutionTimeMs) * time.Millisecond),
				ContributingFactors: matched,
				RecommendedAction:   recommendedAction(pattern),
				MitigationTasks:     mitigationTasks(pattern),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].PatternID < out[j].PatternID
	})
	if len(out) > cfg.MaxPredictions {
		out = out[:cfg.MaxPredictions]
	}
	return out
}

// matchRatio returns the matched condition descriptions and the fraction
// of pattern's conditions the task satisfies.
func matchRatio(pattern BlockerPattern, task Task) ([]string, float64) {
	if len(pattern.Conditions) == 0 {
		return nil, 0
	}
	var matched []string
	for _, c := range pattern.Conditions {
		if c.Matches(task) {
			matched = append(matched, fmt.Sprintf("%s=%s", c.Field, c.Value))
		}
	}
	return matched, float64(len(matched)) / float64(len(pattern.Conditions))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func recommendedAction(pattern BlockerPattern) string {
	if len(pattern.Conditions) == 0 {
		return "review task for blocker risk"
	}
	c := pattern.Conditions[0]
	switch c.Field {
	case "assignee":
		return fmt.Sprintf("rebalance workload away from %s", c.Value)
	case "tag":
		return fmt.Sprintf("unblock the dependency tagged %q ahead of time", c.Value)
	case "priority":
		return fmt.Sprintf("expedite triage for %s-priority tasks", c.Value)
	case "status":
		return fmt.Sprintf("audit tasks stuck in status %q", c.Value)
	default:
		return "review task for blocker risk"
	}
}

func mitigationTasks(pattern BlockerPattern) []string {
	if len(pattern.Conditions) == 0 {
		return nil
	}
	c := pattern.Conditions[0]
	return []string{
		fmt.Sprintf("Create a follow-up task to pre-empt the %s=%s blocker pattern", c.Field, c.Value),
	}
}
