package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a settable time source for driving window boundaries without
// sleeping.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, cfg Config, clock *testClock) *FixedWindow {
	t.Helper()
	fw := New(cfg, WithClock(clock.Now))
	t.Cleanup(fw.Stop)
	return fw
}

func TestFixedWindow_AllowsUpToMaxWithDecreasingRemaining(t *testing.T) {
	clock := newTestClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fw := newTestLimiter(t, Config{
		Name:        "api",
		MaxRequests: 3,
		Window:      time.Minute,
	}, clock)

	for i, wantRemaining := range []int{2, 1, 0} {
		res := fw.Check("203.0.113.7")
		assert.True(t, res.Allowed, "call %d should be allowed", i+1)
		assert.Equal(t, wantRemaining, res.Remaining, "call %d remaining", i+1)
	}
}

func TestFixedWindow_DeniesBeyondMaxAndReportsOriginalResetAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := newTestClock(start)
	fw := newTestLimiter(t, Config{
		Name:        "api",
		MaxRequests: 3,
		Window:      time.Minute,
	}, clock)

	first := fw.Check("k")
	fw.Check("k")
	fw.Check("k")

	clock.Advance(10 * time.Second)
	denied := fw.Check("k")
	require.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)
	// The original window boundary is reported, not a refreshed one.
	assert.Equal(t, first.ResetAt, denied.ResetAt)
	assert.Equal(t, start.Add(time.Minute), denied.ResetAt)
}

func TestFixedWindow_FreshWindowAfterExpiry(t *testing.T) {
	clock := newTestClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fw := newTestLimiter(t, Config{
		Name:        "api",
		MaxRequests: 2,
		Window:      time.Minute,
	}, clock)

	fw.Check("k")
	fw.Check("k")
	require.False(t, fw.Check("k").Allowed)

	clock.Advance(time.Minute) // now == resetAt counts as expired

	res := fw.Check("k")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining, "fresh window starts with count=1")
	assert.Equal(t, clock.Now().Add(time.Minute), res.ResetAt)
}

// Fixed windows permit a burst of up to 2x the limit straddling a boundary.
// This documents the accepted trade-off rather than guarding against it.
func TestFixedWindow_BoundaryBurstIsAccepted(t *testing.T) {
	clock := newTestClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fw := newTestLimiter(t, Config{
		Name:        "api",
		MaxRequests: 3,
		Window:      time.Minute,
	}, clock)

	// Exhaust the first window just before it closes.
	clock.Advance(59 * time.Second)
	for i := 0; i < 3; i++ {
		require.True(t, fw.Check("k").Allowed)
	}

	// Immediately after the boundary the counter resets, so another full
	// burst succeeds: 6 requests in well under a minute of wall time.
	clock.Advance(2 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, fw.Check("k").Allowed, "post-boundary call %d", i+1)
	}
}

func TestFixedWindow_KeysAreIndependent(t *testing.T) {
	clock := newTestClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fw := newTestLimiter(t, Config{
		Name:        "api",
		MaxRequests: 1,
		Window:      time.Minute,
	}, clock)

	require.True(t, fw.Check("a").Allowed)
	require.False(t, fw.Check("a").Allowed)
	assert.True(t, fw.Check("b").Allowed, "a separate key has its own window")
}

func TestFixedWindow_SweepRemovesExpiredEntries(t *testing.T) {
	clock := newTestClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	fw := New(Config{
		Name:          "api",
		MaxRequests:   5,
		Window:        time.Minute,
		SweepInterval: 10 * time.Millisecond,
	}, WithClock(clock.Now))
	defer fw.Stop()

	fw.Check("stale")
	fw.Check("fresh")
	require.Equal(t, 2, fw.Len())

	// Expire both, then refresh one so the sweep sees a live window for it.
	clock.Advance(2 * time.Minute)
	fw.Check("fresh")

	assert.Eventually(t, func() bool {
		return fw.Len() == 1
	}, time.Second, 5*time.Millisecond, "sweep should drop the expired entry within an interval")
}

func TestFixedWindow_StopClearsStateAndIsIdempotent(t *testing.T) {
	fw := New(Config{Name: "api", MaxRequests: 5, Window: time.Minute})

	fw.Check("a")
	fw.Check("b")
	require.Equal(t, 2, fw.Len())

	fw.Stop()
	assert.Equal(t, 0, fw.Len())

	// Second Stop must not panic on the closed channel.
	fw.Stop()
}

func TestFixedWindow_ConcurrentCheckIsSafe(t *testing.T) {
	fw := New(Config{Name: "api", MaxRequests: 50, Window: time.Minute})
	defer fw.Stop()

	const callers = 10
	const perCaller = 10

	var wg sync.WaitGroup
	allowed := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				if fw.Check("shared").Allowed {
					allowed[n]++
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	// Exactly 50 of the 100 concurrent requests fit in the window.
	assert.Equal(t, 50, total)
}
