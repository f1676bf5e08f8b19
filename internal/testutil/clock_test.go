package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMillisClock_Sequence(t *testing.T) {
	clock := NewMillisClock(DefaultStartMs, 250)

	assert.Equal(t, DefaultStartMs, clock.Current())
	assert.Equal(t, DefaultStartMs, clock.Next())
	assert.Equal(t, DefaultStartMs+250, clock.Next())
	assert.Equal(t, DefaultStartMs+500, clock.Current())
}

func TestMillisClock_DefaultStep(t *testing.T) {
	clock := NewMillisClock(0, 0)
	clock.Next()
	assert.Equal(t, DefaultStepMs, clock.Next())
}

func TestMillisClock_Reset(t *testing.T) {
	clock := NewMillisClock(10, 5)
	clock.Next()
	clock.Next()

	clock.Reset()
	assert.Equal(t, int64(10), clock.Next())
}

func TestMillisClock_Observe(t *testing.T) {
	clock := NewMillisClock(0, 10)

	clock.Observe(35)
	assert.Equal(t, int64(40), clock.Next())

	// Timestamps behind the clock leave it alone.
	clock.Observe(5)
	assert.Equal(t, int64(50), clock.Next())
}

func TestMillisClock_ConcurrentAccess(t *testing.T) {
	clock := NewMillisClock(0, 1)

	const goroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	results := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- clock.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		require.False(t, seen[v], "duplicate tick %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), clock.Current())
}

func TestFixedSessionGenerator(t *testing.T) {
	gen := NewFixedSessionGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
