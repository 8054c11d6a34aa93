package testutil

import (
	"maps"
	"sync"
)

// Counter is a thread-safe set of named counters, used by tests to count
// hook invocations per context role.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Inc increments key and returns the new value.
func (c *Counter) Inc(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key]
}

// Get returns the current value of key (0 if never incremented).
func (c *Counter) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Snapshot returns a copy of every counter.
func (c *Counter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

// Reset zeroes every counter.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int)
}
