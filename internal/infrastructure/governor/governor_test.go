package governor

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startAcquire runs Acquire in its own goroutine and exposes the result.
func startAcquire(g *Governor, source string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- g.Acquire(source) }()
	return done
}

func assertBlocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("acquire returned early: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not return")
		return nil
	}
}

func waitQueueDepth(t *testing.T, g *Governor, source string, depth int) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, _ := g.Snapshot(source)
		return snap.QueueDepth == depth
	}, time.Second, time.Millisecond)
}

func TestUnconfiguredSourceBypasses(t *testing.T) {
	g := New(map[string]Limits{"feed": {MaxConcurrent: 1}})

	// No limits for this name, so nothing blocks and reports are no-ops.
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Acquire("elsewhere"))
	}
	g.ReportSuccess("elsewhere")
	g.ReportFailure("elsewhere", 500)

	assert.False(t, g.IsUnavailable("elsewhere"))
	_, ok := g.Snapshot("elsewhere")
	assert.False(t, ok)
}

func TestConcurrencyCap(t *testing.T) {
	g := New(map[string]Limits{"feed": {MaxConcurrent: 3}})

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire("feed"); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			g.ReportSuccess("feed")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int32(3))
	snap, ok := g.Snapshot("feed")
	require.True(t, ok)
	assert.Equal(t, 0, snap.InFlight)
	assert.Equal(t, 0, snap.QueueDepth)
}

func TestQueueFIFO(t *testing.T) {
	g := New(map[string]Limits{"feed": {MaxConcurrent: 1}})
	require.NoError(t, g.Acquire("feed"))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire("feed"); err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.ReportSuccess("feed")
		}()
		waitQueueDepth(t, g, "feed", i)
	}

	// Releasing the holder cascades the slot down the queue in order.
	g.ReportSuccess("feed")
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestWindowQuotaBurst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}
	g := New(map[string]Limits{"feed": {RequestsPerWindow: 3, Window: 150 * time.Millisecond}})

	var mu sync.Mutex
	var admitted []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire("feed"); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			now := time.Now()
			mu.Lock()
			admitted = append(admitted, now)
			mu.Unlock()
			g.ReportSuccess("feed")
		}()
	}
	wg.Wait()

	require.Len(t, admitted, 9)
	sort.Slice(admitted, func(i, j int) bool { return admitted[i].Before(admitted[j]) })

	// No 150ms window may hold more than 3 admissions, so every fourth
	// admission is at least a window later (minus recording jitter).
	for i := 0; i+3 < len(admitted); i++ {
		span := admitted[i+3].Sub(admitted[i])
		assert.GreaterOrEqual(t, span, 135*time.Millisecond, "admissions %d..%d too close", i, i+3)
	}
	assert.GreaterOrEqual(t, admitted[8].Sub(admitted[0]), 285*time.Millisecond)
}

func TestWindowRolloverTiming(t *testing.T) {
	clk := newFakeClock()
	g := New(
		map[string]Limits{"feed": {RequestsPerWindow: 2, Window: time.Second, MaxConcurrent: 1}},
		WithClock(clk),
	)

	// Two admissions fit in the window back to back.
	require.NoError(t, g.Acquire("feed"))
	g.ReportSuccess("feed")
	require.NoError(t, g.Acquire("feed"))
	g.ReportSuccess("feed")

	// The third must sit out the rest of the window.
	done := startAcquire(g, "feed")
	require.Eventually(t, func() bool { return clk.timerCount() == 1 }, time.Second, time.Millisecond)

	clk.Advance(time.Second)
	assertBlocked(t, done)

	clk.Advance(10 * time.Millisecond)
	require.NoError(t, waitErr(t, done))
	g.ReportSuccess("feed")

	snap, _ := g.Snapshot("feed")
	assert.Equal(t, 1, snap.WindowCount)
}

func TestMinIntervalSpacing(t *testing.T) {
	clk := newFakeClock()
	g := New(
		map[string]Limits{"feed": {MinInterval: 100 * time.Millisecond}},
		WithClock(clk),
	)

	require.NoError(t, g.Acquire("feed"))
	g.ReportSuccess("feed")

	done := startAcquire(g, "feed")
	require.Eventually(t, func() bool { return clk.timerCount() == 1 }, time.Second, time.Millisecond)

	clk.Advance(50 * time.Millisecond)
	assertBlocked(t, done)

	clk.Advance(50 * time.Millisecond)
	require.NoError(t, waitErr(t, done))
	g.ReportSuccess("feed")
}

func TestBackoffGates(t *testing.T) {
	clk := newFakeClock()
	g := New(
		map[string]Limits{"feed": {MaxConcurrent: 2}},
		WithClock(clk),
		WithPolicy(Policy{TripThreshold: 5, BaseBackoff: time.Second, MaxBackoff: 60 * time.Second}),
	)

	require.NoError(t, g.Acquire("feed"))
	g.ReportFailure("feed", 0)

	done := startAcquire(g, "feed")
	require.Eventually(t, func() bool { return clk.timerCount() == 1 }, time.Second, time.Millisecond)

	clk.Advance(999 * time.Millisecond)
	assertBlocked(t, done)

	clk.Advance(time.Millisecond)
	require.NoError(t, waitErr(t, done))
	g.ReportSuccess("feed")
}

func TestThrottledBackoffGates(t *testing.T) {
	clk := newFakeClock()
	g := New(
		map[string]Limits{"feed": {MaxConcurrent: 2}},
		WithClock(clk),
		WithPolicy(Policy{TripThreshold: 5, BaseBackoff: time.Second, MaxBackoff: 60 * time.Second}),
	)

	require.NoError(t, g.Acquire("feed"))
	g.ReportFailure("feed", http.StatusTooManyRequests)

	// An explicit throttle stretches the same backoff threefold.
	done := startAcquire(g, "feed")
	require.Eventually(t, func() bool { return clk.timerCount() == 1 }, time.Second, time.Millisecond)

	clk.Advance(2999 * time.Millisecond)
	assertBlocked(t, done)

	clk.Advance(time.Millisecond)
	require.NoError(t, waitErr(t, done))
	g.ReportSuccess("feed")
}

func TestSuccessClearsBackoff(t *testing.T) {
	g := New(
		map[string]Limits{"feed": {MaxConcurrent: 2}},
		WithPolicy(Policy{TripThreshold: 5, BaseBackoff: 10 * time.Second, MaxBackoff: 60 * time.Second}),
	)

	require.NoError(t, g.Acquire("feed"))
	g.ReportFailure("feed", 0)
	g.ReportSuccess("feed")

	start := time.Now()
	require.NoError(t, g.Acquire("feed"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	g.ReportSuccess("feed")
}

func TestBreakerTripAndRecovery(t *testing.T) {
	g := New(
		map[string]Limits{"feed": {MaxConcurrent: 2}},
		WithPolicy(Policy{TripThreshold: 5, BaseBackoff: time.Millisecond, MaxBackoff: 8 * time.Millisecond}),
	)

	// Five consecutive failures open the breaker.
	for i := 0; i < 5; i++ {
		require.NoError(t, g.Acquire("feed"))
		g.ReportFailure("feed", 0)
	}
	assert.True(t, g.IsUnavailable("feed"))

	// An open breaker fails fast, without consuming a slot.
	start := time.Now()
	err := g.Acquire("feed")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	snap, _ := g.Snapshot("feed")
	assert.Equal(t, 0, snap.InFlight)

	// One reported success closes it again with no extra delay imposed.
	g.ReportSuccess("feed")
	assert.False(t, g.IsUnavailable("feed"))

	start = time.Now()
	require.NoError(t, g.Acquire("feed"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	g.ReportSuccess("feed")
}

func TestTripDrainsQueue(t *testing.T) {
	g := New(
		map[string]Limits{"feed": {MaxConcurrent: 1}},
		WithPolicy(Policy{TripThreshold: 2, BaseBackoff: 50 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}),
	)

	require.NoError(t, g.Acquire("feed"))

	var waiters []<-chan error
	for i := 1; i <= 3; i++ {
		waiters = append(waiters, startAcquire(g, "feed"))
		waitQueueDepth(t, g, "feed", i)
	}

	// Two failures trip the source; every queued caller must resolve
	// instead of waiting for a slot that will not come.
	g.ReportFailure("feed", 0)
	g.ReportFailure("feed", 0)
	require.True(t, g.IsUnavailable("feed"))

	for _, done := range waiters {
		assert.ErrorIs(t, waitErr(t, done), ErrUnavailable)
	}

	snap, _ := g.Snapshot("feed")
	assert.Equal(t, 0, snap.InFlight)
	assert.Equal(t, 0, snap.QueueDepth)
	assert.Equal(t, "open", snap.State)
}

func TestReportFailureWhileOpenOnlyReleases(t *testing.T) {
	var backoffCalls int32
	g := New(
		map[string]Limits{"feed": {MaxConcurrent: 2}},
		WithPolicy(Policy{
			TripThreshold: 1,
			BaseBackoff:   10 * time.Second,
			MaxBackoff:    60 * time.Second,
			OnBackoff: func(string, int, time.Duration, bool) {
				atomic.AddInt32(&backoffCalls, 1)
			},
		}),
	)

	require.NoError(t, g.Acquire("feed"))
	require.NoError(t, g.Acquire("feed"))
	g.ReportFailure("feed", 0)
	require.True(t, g.IsUnavailable("feed"))

	before, _ := g.Snapshot("feed")
	require.Equal(t, 1, before.InFlight)
	require.Equal(t, 1, before.Failures)

	// The second in-flight call acknowledges the open breaker: the slot
	// frees, but failures and backoff stay untouched.
	g.ReportFailure("feed", 0)

	after, _ := g.Snapshot("feed")
	assert.Equal(t, 0, after.InFlight)
	assert.Equal(t, 1, after.Failures)
	assert.Equal(t, "open", after.State)
	assert.Greater(t, after.BackoffRemaining, 5*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backoffCalls))
}

func TestOverReportClamps(t *testing.T) {
	g := New(map[string]Limits{"feed": {MaxConcurrent: 1}})

	require.NoError(t, g.Acquire("feed"))
	g.ReportSuccess("feed")
	g.ReportSuccess("feed")

	snap, _ := g.Snapshot("feed")
	assert.Equal(t, 0, snap.InFlight)

	require.NoError(t, g.Acquire("feed"))
	g.ReportSuccess("feed")
}

func TestCallbacks(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	var delays []time.Duration
	var throttles []bool

	var g *Governor
	g = New(
		map[string]Limits{"feed": {MaxConcurrent: 4}},
		WithPolicy(Policy{
			TripThreshold: 2,
			BaseBackoff:   time.Millisecond,
			MaxBackoff:    8 * time.Millisecond,
			OnStateChange: func(source string, from, to State) {
				// Callbacks run outside the critical section and may call
				// back into the governor.
				_ = g.IsUnavailable(source)
				mu.Lock()
				transitions = append(transitions, from.String()+"->"+to.String())
				mu.Unlock()
			},
			OnBackoff: func(source string, failures int, delay time.Duration, throttled bool) {
				mu.Lock()
				delays = append(delays, delay)
				throttles = append(throttles, throttled)
				mu.Unlock()
			},
		}),
	)

	require.NoError(t, g.Acquire("feed"))
	require.NoError(t, g.Acquire("feed"))
	g.ReportFailure("feed", 0)
	g.ReportFailure("feed", http.StatusTooManyRequests)
	g.ReportSuccess("feed")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
	assert.Equal(t, []time.Duration{time.Millisecond, 6 * time.Millisecond}, delays)
	assert.Equal(t, []bool{false, true}, throttles)
}

func TestBackoffDelays(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name      string
		failures  int
		throttled bool
		want      time.Duration
	}{
		{"first failure", 1, false, time.Second},
		{"second doubles", 2, false, 2 * time.Second},
		{"third doubles again", 3, false, 4 * time.Second},
		{"fourth", 4, false, 8 * time.Second},
		{"sixth", 6, false, 32 * time.Second},
		{"caps at max", 10, false, 60 * time.Second},
		{"throttle triples", 1, true, 3 * time.Second},
		{"throttle triples past the cap", 10, true, 180 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.delayFor(tt.failures, tt.throttled))
		})
	}

	// The throttle multiplier holds at every failure count.
	for n := 1; n <= 12; n++ {
		assert.Equal(t, 3*p.delayFor(n, false), p.delayFor(n, true))
	}
}

func TestPolicyNormalization(t *testing.T) {
	p := Policy{MaxBackoff: time.Second, BaseBackoff: 5 * time.Second}.normalized()
	assert.Equal(t, 5, p.TripThreshold)
	assert.Equal(t, 5*time.Second, p.BaseBackoff)
	assert.Equal(t, 5*time.Second, p.MaxBackoff)
	assert.Equal(t, 3, p.ThrottleFactor)
	assert.NotZero(t, p.WindowSlack)
}

func TestSnapshots(t *testing.T) {
	limits := map[string]Limits{
		"beta":  {RequestsPerWindow: 10, Window: time.Minute, MaxConcurrent: 4},
		"alpha": {MaxConcurrent: 2},
	}
	g := New(limits)
	require.NoError(t, g.Acquire("beta"))

	snaps := g.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "alpha", snaps[0].Source)
	assert.Equal(t, "beta", snaps[1].Source)

	beta := snaps[1]
	assert.Equal(t, "closed", beta.State)
	assert.Equal(t, 1, beta.InFlight)
	assert.Equal(t, 1, beta.WindowCount)
	assert.Equal(t, limits["beta"], beta.Limits)

	g.ReportSuccess("beta")
	snap, ok := g.Snapshot("beta")
	require.True(t, ok)
	assert.Equal(t, 0, snap.InFlight)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(7).String())
}
