package predictive

import "sync"

// Config configures a Guard.
type Config struct {
	Mine    MineConfig
	Predict PredictConfig
}

// Guard holds the most recently mined patterns and serves predictions
// against them. Training and prediction are independent calls — the
// service re-trains on demand (the guard train endpoint) and serves
// Predict against whatever patterns the last Train call produced.
type Guard struct {
	cfg Config

	mu       sync.RWMutex
	patterns []BlockerPattern
}

// New builds a Guard with no trained patterns.
func New(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Train mines patterns from tasks and replaces the Guard's pattern set.
func (g *Guard) Train(tasks []Task) []BlockerPattern {
	patterns := MinePatterns(tasks, g.cfg.Mine)
	g.mu.Lock()
	g.patterns = patterns
	g.mu.Unlock()
	return patterns
}

// Patterns returns the currently trained pattern set.
func (g *Guard) Patterns() []BlockerPattern {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]BlockerPattern, len(g.patterns))
	copy(out, g.patterns)
	return out
}

// Predict scores tasks against the Guard's currently trained patterns.
func (g *Guard) Predict(tasks []Task) []PredictedBlocker {
	g.mu.RLock()
	patterns := make([]BlockerPattern, len(g.patterns))
	copy(patterns, g.patterns)
	g.mu.RUnlock()
	return Predict(patterns, tasks, g.cfg.Predict)
}
