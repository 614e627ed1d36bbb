package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissing(t *testing.T) {
	c := New()
	defer c.Close()

	_, ok := c.Get("never-set")
	assert.False(t, ok)
}

func TestCache_SetAndGet(t *testing.T) {
	c := New()
	defer c.Close()

	now := time.Now()
	c.Set("key", now, time.Minute)

	expiry, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute), expiry)
}

func TestCache_GetExpired(t *testing.T) {
	c := New()
	defer c.Close()

	// Observed time far enough in the past that the entry is already dead.
	c.Set("key", time.Now().Add(-2*time.Second), time.Second)

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCache_GetSelfExpires(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("key", time.Now().Add(-2*time.Second), time.Second)
	require.Equal(t, 1, c.Len())

	// The expired read itself must purge the entry, with no sweep running.
	_, ok := c.Get("key")
	require.False(t, ok)
	assert.Equal(t, 0, c.Len())

	_, ok = c.Get("key")
	assert.False(t, ok)
}

func TestCache_SetOverwrites(t *testing.T) {
	c := New()
	defer c.Close()

	now := time.Now()
	c.Set("key", now, time.Second)
	c.Set("key", now, time.Minute)

	expiry, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute), expiry)
}

func TestCache_Delete(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("key", time.Now(), time.Minute)
	c.Delete("key")

	_, ok := c.Get("key")
	assert.False(t, ok)

	// Deleting an absent key is a no-op.
	c.Delete("key")
}

func TestCache_SweepConvergence(t *testing.T) {
	c := New()
	defer c.Close()

	go c.Sweep(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("key-%d", i), time.Now(), 20*time.Millisecond)
	}
	require.Equal(t, 5, c.Len())

	// Within one full sweep period past expiry every key is physically
	// gone, without any Get touching them.
	require.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCache_SweepKeepsLiveEntries(t *testing.T) {
	c := New()
	defer c.Close()

	go c.Sweep(10 * time.Millisecond)

	c.Set("short", time.Now(), 10*time.Millisecond)
	c.Set("long", time.Now(), time.Minute)

	require.Eventually(t, func() bool {
		return c.Len() == 1
	}, time.Second, 5*time.Millisecond)

	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestCache_CloseTwice(t *testing.T) {
	c := New()
	c.Close()
	c.Close()
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New()
	defer c.Close()

	go c.Sweep(5 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%3)
			for j := 0; j < 100; j++ {
				c.Set(key, time.Now(), 10*time.Millisecond)
				c.Get(key)
				c.Delete(key)
			}
		}(i)
	}
	wg.Wait()
}
