package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSessionGenerator(t *testing.T) {
	gen := NewFixedSessionGenerator("session-42")
	assert.Equal(t, "session-42", gen.Generate())
	assert.Equal(t, "session-42", gen.Generate())

	assert.Equal(t, DefaultSessionID, NewFixedSessionGenerator("").Generate())
}

func TestStepCounter(t *testing.T) {
	var c StepCounter
	assert.Equal(t, 1, c.Next())
	assert.Equal(t, 2, c.Next())
}

func TestStepCounter_Concurrent(t *testing.T) {
	var c StepCounter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Next()
		}()
	}
	wg.Wait()
	assert.Equal(t, 51, c.Next())
}
