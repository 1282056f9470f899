package provider

import (
	"fmt"
	"math"
	"regexp"
	"sync"

	"github.com/outboxguard/engine/pkg/email"
	"github.com/outboxguard/engine/pkg/errkind"
	"github.com/outboxguard/engine/pkg/randomness"
)

// LatencyDistribution picks a send latency from an injected Randomness
// source. Two shapes are supported: uniform over min..max and a
// log-normal-ish curve built from a Box-Muller transform.
type LatencyDistribution struct {
	MinMs, MaxMs int64
	LogNormal    bool
}

// Sample draws one latency value in milliseconds using src.
func (d LatencyDistribution) Sample(src randomness.Source) int64 {
	if d.MaxMs <= d.MinMs {
		return d.MinMs
	}
	spread := float64(d.MaxMs - d.MinMs)
	if !d.LogNormal {
		return d.MinMs + int64(src.Float64()*spread)
	}
	// Box-Muller: two uniforms -> one standard normal, folded into [0,1)
	// and clamped before scaling, so a single extreme draw can't produce
	// a negative or wildly oversized latency.
	u1, u2 := clampUnit(src.Float64()), clampUnit(src.Float64())
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	folded := clampUnit((z + 3) / 6)
	return d.MinMs + int64(folded*spread)
}

func clampUnit(v float64) float64 {
	const epsilon = 1e-9
	if v < epsilon {
		return epsilon
	}
	if v > 1-epsilon {
		return 1 - epsilon
	}
	return v
}

// FailurePattern deterministically fails a send when the recipient's local
// part matches Pattern, tagging the outcome with Kind.
type FailurePattern struct {
	Pattern *regexp.Regexp
	Kind    errkind.Kind
	Message string
}

// SimulatedConfig configures a SimulatedProvider.
type SimulatedConfig struct {
	Latency    LatencyDistribution
	Failures   []FailurePattern
	Randomness randomness.Source
}

// SimulatedProvider is a deterministic, injectable Provider used in tests
// and demos: it fails on recipients matching a configured pattern and
// draws its success latency from an injected distribution, per the
// external-interfaces "simulated provider" contract.
type SimulatedProvider struct {
	cfg SimulatedConfig

	mu   sync.Mutex
	seen map[string]SendOutcome // job_id -> outcome, enforcing idempotency
}

// NewSimulated builds a SimulatedProvider. A zero Randomness defaults to
// randomness.Real{}.
func NewSimulated(cfg SimulatedConfig) *SimulatedProvider {
	if cfg.Randomness == nil {
		cfg.Randomness = randomness.Real{}
	}
	return &SimulatedProvider{cfg: cfg, seen: make(map[string]SendOutcome)}
}

// Send matches job.To's local part against every configured failure
// pattern in order; the first match wins. Repeated calls with the same
// JobID replay the original outcome instead of re-simulating, satisfying
// idempotency-under-job_id. Safe for concurrent use by multiple workers.
func (p *SimulatedProvider) Send(job email.Job) SendOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	if outcome, ok := p.seen[job.JobID]; ok {
		return outcome
	}

	local := email.Local(job.To)
	latencyMs := p.cfg.Latency.Sample(p.cfg.Randomness)

	for _, fp := range p.cfg.Failures {
		if fp.Pattern.MatchString(local) {
			outcome := Failure(fp.Kind, fp.Message, latencyMs)
			p.seen[job.JobID] = outcome
			return outcome
		}
	}

	outcome := Success(fmt.Sprintf("sim-%s", job.JobID), latencyMs)
	p.seen[job.JobID] = outcome
	return outcome
}

// Health always reports healthy for the simulated provider; latency is a
// fixed nominal probe cost.
func (p *SimulatedProvider) Health() HealthProbe {
	return HealthProbe{Healthy: true, LatencyMs: 1}
}
