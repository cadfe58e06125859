package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_DefaultInstant(t *testing.T) {
	clock := NewFixedClock(time.Time{})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), clock.Now())
}

func TestFixedClock_StaysFrozen(t *testing.T) {
	start := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	clock := NewFixedClock(time.Time{})
	clock.Advance(90 * time.Second)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 1, 30, 0, time.UTC), clock.Now())

	later := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(time.Time{})

	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 50, 0, time.UTC), clock.Now())
}

func TestSequentialUUIDs(t *testing.T) {
	gen := NewSequentialUUIDs()

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", gen.Generate())
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", gen.Generate())
	assert.Len(t, gen.Generate(), 36)

	gen.Reset()
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", gen.Generate())
}
