package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// StubClock reports a controllable time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock pinned to 2025-06-15 10:30:00 UTC, the
// reference instant shared by tests that compare recorded timestamps.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator yields deterministic sequential IDs ("id-1", "id-2", ...).
type StubIDGenerator struct {
	counter atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}
