package predictive

import (
	"fmt"
	"sort"
)

// MineConfig bounds how aggressively MinePatterns reports a candidate
// condition as a pattern.
type MineConfig struct {
	// MinSupport is the minimum number of tasks (blocked or not) a
	// condition must match before it's considered at all. Guards against
	// noisy single-occurrence conditions skewing frequency to 0 or 1.
	MinSupport int
	// MinOccurrence is the minimum number of *blocked* matching tasks
	// required to report the condition as a pattern.
	MinOccurrence int
}

func (c MineConfig) withDefaults() MineConfig {
	if c.MinSupport <= 0 {
		c.MinSupport = 3
	}
	if c.MinOccurrence <= 0 {
		c.MinOccurrence = 2
	}
	return c
}

// MinePatterns scans historical tasks for single-field conditions
// (priority, status, assignee, each tag) that correlate with tasks
// entering a blocked state, and reports each as a BlockerPattern.
//
// Candidates are single conditions, not combinations: multi-condition
// itemset mining would need a combinatorial search, while
// single-condition patterns keep the miner O(candidates x tasks) and
// deterministic. PredictedBlocker.ContributingFactors still reports
// every condition a pattern carries (here, always one), so emitting
// multi-condition patterns later needs no consumer changes.
func MinePatterns(tasks []Task, cfg MineConfig) []BlockerPattern {
	cfg = cfg.withDefaults()

	candidates := candidateConditions(tasks)
	patterns := make([]BlockerPattern, 0, len(candidates))

	for _, cond := range candidates {
		var matching, blocked []Task
		for _, t := range tasks {
			if !cond.Matches(t) {
				continue
			}
			matching = append(matching, t)
			if t.BlockedAt != nil {
				blocked = append(blocked, t)
			}
		}
		if len(matching) < cfg.MinSupport || len(blocked) < cfg.MinOccurrence {
			continue
		}

		freq := float64(len(blocked)) / float64(len(matching))
		avgResolution := avgResolutionMs(blocked)
		severity := severityFromFrequency(freq)

		patterns = append(patterns, BlockerPattern{
			ID:                  fmt.Sprintf("%s:%s", cond.Field, cond.Value),
			Name:                fmt.Sprintf("tasks with %s=%s tend to block", cond.Field, cond.Value),
			Severity:            severity,
			Conditions:          []Condition{cond},
			Frequency:           freq,
			AvgResolutionTimeMs: avgResolution,
			OccurrenceCount:     len(blocked),
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Frequency != patterns[j].Frequency {
			return patterns[i].Frequency > patterns[j].Frequency
		}
		return patterns[i].ID < patterns[j].ID
	})
	return patterns
}

func candidateConditions(tasks []Task) []Condition {
	seen := make(map[Condition]bool)
	var out []Condition
	add := func(c Condition) {
		if c.Value == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	for _, t := range tasks {
		add(Condition{Field: "priority", Operator: OperatorEquals, Value: t.Priority})
		add(Condition{Field: "status", Operator: OperatorEquals, Value: t.Status})
		add(Condition{Field: "assignee", Operator: OperatorEquals, Value: t.Assignee})
		for _, tag := range t.Tags {
			add(Condition{Field: "tag", Operator: OperatorContains, Value: tag})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func avgResolutionMs(blocked []Task) int64 {
	var sum int64
	var n int64
	for _, t := range blocked {
		if !t.IsResolvedBlock() {
			continue
		}
		sum += t.UnblockedAt.Sub(*t.BlockedAt).Milliseconds()
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
