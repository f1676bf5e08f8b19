// Package testutil holds deterministic stand-ins for time and id sources.
package testutil

import (
	"sync"
)

// Default MillisClock settings: 2023-11-14T22:13:20Z, one second apart.
const (
	DefaultStartMs int64 = 1700000000000
	DefaultStepMs  int64 = 1000
)

// MillisClock is a thread-safe fake wall clock in Unix milliseconds. Each
// Next call advances by a fixed step, so the same script always commits
// with the same timestamps.
type MillisClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	n     int64
}

// NewMillisClock creates a clock whose first Next returns start.
// A non-positive step defaults to DefaultStepMs.
func NewMillisClock(start, step int64) *MillisClock {
	if step <= 0 {
		step = DefaultStepMs
	}
	return &MillisClock{start: start, step: step}
}

// Next returns the current tick and advances the clock.
func (c *MillisClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.start + c.n*c.step
	c.n++
	return ts
}

// Current returns the timestamp the next call to Next will return.
func (c *MillisClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start + c.n*c.step
}

// Observe moves the clock past ts if ts is at or beyond the next tick, so
// explicit timestamps and generated ones stay monotonic.
func (c *MillisClock) Observe(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.start+c.n*c.step <= ts {
		c.n++
	}
}

// Reset rewinds the clock to its start.
func (c *MillisClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

// FixedSessionGenerator returns predetermined session ids in order.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedSessionGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedSessionGenerator creates a generator that returns ids in order.
func NewFixedSessionGenerator(ids ...string) *FixedSessionGenerator {
	return &FixedSessionGenerator{ids: ids}
}

// Generate returns the next id.
//
// Panics if all ids have been consumed.
func (g *FixedSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedSessionGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
