// ABOUTME: Tests for the idempotency-key TTL window
// ABOUTME: Duplicate detection, expiry, capacity eviction, concurrent access

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuplicate_FirstSightingIsNotDuplicate(t *testing.T) {
	c := New(time.Minute, 16)

	assert.False(t, c.Duplicate("key-1"))
	assert.True(t, c.Duplicate("key-1"))
}

func TestDuplicate_EmptyKeyBypasses(t *testing.T) {
	c := New(time.Minute, 16)

	assert.False(t, c.Duplicate(""))
	assert.False(t, c.Duplicate(""))
	assert.Equal(t, 0, c.Len())
}

func TestDuplicate_ExpiredKeyForgotten(t *testing.T) {
	c := New(10*time.Millisecond, 16)

	assert.False(t, c.Duplicate("key-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Duplicate("key-1"), "expired keys are first sightings again")
}

func TestDuplicate_CapacityEvictsOldest(t *testing.T) {
	c := New(time.Minute, 2)

	c.Duplicate("a")
	c.Duplicate("b")
	c.Duplicate("c") // evicts "a"

	assert.False(t, c.Duplicate("a"), "oldest key was evicted")
	assert.True(t, c.Duplicate("c"))
}

func TestForget_ReleasesKey(t *testing.T) {
	c := New(time.Minute, 16)

	assert.False(t, c.Duplicate("key-1"))
	c.Forget("key-1")
	assert.False(t, c.Duplicate("key-1"), "a forgotten key is a first sighting again")
	assert.True(t, c.Duplicate("key-1"))

	c.Forget("") // no-op
	assert.Equal(t, 1, c.Len())
}

func TestDuplicate_RefreshedKeyOutlivesOlderEntries(t *testing.T) {
	c := New(time.Minute, 4)

	c.Duplicate("a")
	c.Duplicate("b")
	c.Duplicate("c")

	// Age "b" past the TTL behind a still-fresh head, then sight it again:
	// the refresh must move it to the queue tail so capacity eviction drops
	// genuinely older keys first.
	c.mu.Lock()
	c.seen["b"] = time.Now().Add(-2 * time.Minute)
	c.mu.Unlock()
	assert.False(t, c.Duplicate("b"), "expired key reads as a first sighting")

	c.Duplicate("d")
	c.Duplicate("e") // at capacity: evicts "a"
	c.Duplicate("f") // evicts "c"

	assert.True(t, c.Duplicate("b"), "the refreshed key outlives entries marked before it")
}

func TestDuplicate_ConcurrentSingleWinner(t *testing.T) {
	c := New(time.Minute, 64)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Duplicate("contended") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, firsts, "exactly one caller sees the first sighting")
}

func TestDuplicate_DistinctKeysIndependent(t *testing.T) {
	c := New(time.Minute, 64)

	for i := 0; i < 10; i++ {
		assert.False(t, c.Duplicate(fmt.Sprintf("key-%d", i)))
	}
	assert.Equal(t, 10, c.Len())
}
