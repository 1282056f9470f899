// Package randomness provides the Randomness port: a source of floats in
// [0,1) that production wires to math/rand and tests wire to a fixed
// sequence, per the design note resolving the source's Math.random()-driven
// test nondeterminism.
package randomness

import (
	"math/rand/v2"
	"sync"
)

// Source returns successive floats in [0, 1).
type Source interface {
	Float64() float64
}

// Real is the production Source backed by math/rand/v2's default generator.
type Real struct{}

// Float64 returns a pseudo-random float in [0, 1).
func (Real) Float64() float64 { return rand.Float64() }

// Fixed is a deterministic Source that replays a configured sequence,
// looping once exhausted, for tests that need reproducible jitter or
// simulated-provider latency.
type Fixed struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewFixed builds a Fixed source over values. Panics if values is empty.
func NewFixed(values ...float64) *Fixed {
	if len(values) == 0 {
		panic("randomness: NewFixed requires at least one value")
	}
	return &Fixed{values: values}
}

// Float64 returns the next value in the configured sequence, wrapping
// around when exhausted.
func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.values[f.next]
	f.next = (f.next + 1) % len(f.values)
	return v
}
