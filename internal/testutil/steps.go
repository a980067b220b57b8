package testutil

import "sync"

// StepCounter numbers scenario steps. The first call to Next returns 1.
//
// Thread-safety: all methods are safe for concurrent use.
type StepCounter struct {
	mu sync.Mutex
	n  int
}

// Next advances the counter and returns the new step number.
func (c *StepCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}
