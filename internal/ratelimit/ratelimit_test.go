package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withFrozenTime pins the limiter clock for a test and restores it after.
func withFrozenTime(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	current := start
	orig := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = orig })
	return &current
}

func TestLimiter_AdmitExactlyLimit(t *testing.T) {
	withFrozenTime(t, time.Unix(1000, 0))
	l := New(5, time.Minute)

	for i := 0; i < 5; i++ {
		d := l.Admit("client-a")
		assert.True(t, d.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, 4-i, d.Remaining)
	}

	d := l.Admit("client-a")
	assert.False(t, d.Allowed, "request over limit should be denied")
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiter_RetryAfter(t *testing.T) {
	now := withFrozenTime(t, time.Unix(1000, 0))
	l := New(2, time.Minute)

	l.Admit("client-a")
	l.Admit("client-a")

	*now = now.Add(20 * time.Second)

	d := l.Admit("client-a")
	require.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)
}

func TestLimiter_WindowReset(t *testing.T) {
	now := withFrozenTime(t, time.Unix(1000, 0))
	l := New(2, time.Minute)

	l.Admit("client-a")
	l.Admit("client-a")
	require.False(t, l.Admit("client-a").Allowed)

	*now = now.Add(time.Minute)

	d := l.Admit("client-a")
	assert.True(t, d.Allowed, "window should reset fully after the period")
	assert.Equal(t, 1, d.Remaining)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	withFrozenTime(t, time.Unix(1000, 0))
	l := New(1, time.Minute)

	require.True(t, l.Admit("client-a").Allowed)
	require.False(t, l.Admit("client-a").Allowed)

	assert.True(t, l.Admit("client-b").Allowed, "one client's exhaustion must not affect another")
}

func TestLimiter_SweepDropsStaleClients(t *testing.T) {
	now := withFrozenTime(t, time.Unix(1000, 0))
	l := New(5, time.Minute)

	l.Admit("client-a")
	l.Admit("client-b")
	require.Equal(t, 2, l.Len())

	*now = now.Add(3 * time.Minute)
	l.Admit("client-c")

	assert.Equal(t, 1, l.Len(), "stale windows should be swept")
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if l.Admit("shared").Allowed {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted, "concurrent admissions must never exceed the limit")
}
