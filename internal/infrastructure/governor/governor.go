package governor

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/driftwatch/driftwatch/internal/infrastructure/monitoring"
)

// ErrUnavailable is returned by Acquire while a source's breaker is open.
var ErrUnavailable = errors.New("source unavailable")

// Governor coordinates admission to upstream sources. Each configured
// source gets a concurrency gate with a FIFO wait queue, a rolling request
// window, minimum spacing between calls, exponential backoff on failures,
// and a breaker that rejects callers after too many consecutive failures.
// Sources without configured limits pass through ungoverned.
type Governor struct {
	limits  map[string]Limits
	sources map[string]*sourceState
	policy  Policy
	clock   Clock
	metrics *monitoring.Metrics
}

// Option customizes a Governor.
type Option func(*Governor)

// WithPolicy replaces the default failure policy.
func WithPolicy(p Policy) Option {
	return func(g *Governor) { g.policy = p.normalized() }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(g *Governor) { g.clock = c }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(g *Governor) { g.metrics = m }
}

// New creates a governor for the given per-source limits. The limits map
// is copied; sources cannot be added later.
func New(limits map[string]Limits, opts ...Option) *Governor {
	g := &Governor{
		limits:  make(map[string]Limits, len(limits)),
		sources: make(map[string]*sourceState, len(limits)),
		policy:  DefaultPolicy(),
		clock:   systemClock{},
	}
	for name, l := range limits {
		g.limits[name] = l
		g.sources[name] = &sourceState{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire blocks until the source admits one more call, or returns
// ErrUnavailable when the breaker is open. Every successful Acquire must
// be balanced by exactly one ReportSuccess or ReportFailure, otherwise
// the concurrency slot stays occupied. Unconfigured sources are admitted
// immediately.
func (g *Governor) Acquire(source string) error {
	limits, ok := g.limits[source]
	if !ok {
		return nil
	}
	s := g.sources[source]

	start := g.clock.Now()
	if err := g.admitSlot(source, s, limits); err != nil {
		if g.metrics != nil {
			g.metrics.RecordRejection(source)
		}
		return err
	}
	if err := g.waitTurn(source, s, limits); err != nil {
		if g.metrics != nil {
			g.metrics.RecordRejection(source)
		}
		return err
	}
	if g.metrics != nil {
		g.metrics.RecordAdmission(source)
		g.metrics.ObserveAcquireWait(source, g.clock.Now().Sub(start))
	}
	return nil
}

// admitSlot claims a concurrency slot, queueing FIFO behind earlier
// callers when the source is saturated. A waiter woken by a handoff owns
// the releasing caller's slot; a waiter woken by a queue drain owns
// nothing and re-observes the breaker.
func (g *Governor) admitSlot(source string, s *sourceState, limits Limits) error {
	for {
		s.mu.Lock()
		if s.unavailable {
			s.mu.Unlock()
			return ErrUnavailable
		}
		if limits.MaxConcurrent <= 0 || s.inFlight < limits.MaxConcurrent {
			s.inFlight++
			g.observeLocked(source, s)
			s.mu.Unlock()
			return nil
		}
		w := s.enqueueLocked()
		g.observeLocked(source, s)
		s.mu.Unlock()

		if _, ok := <-w; !ok {
			continue
		}
		s.mu.Lock()
		if s.unavailable {
			s.releaseLocked()
			g.observeLocked(source, s)
			s.mu.Unlock()
			return ErrUnavailable
		}
		s.mu.Unlock()
		return nil
	}
}

// waitTurn holds the caller until the timing gates clear, then records
// the admission. The caller owns a concurrency slot on entry; the slot is
// released if the breaker opens while waiting.
func (g *Governor) waitTurn(source string, s *sourceState, limits Limits) error {
	for {
		s.mu.Lock()
		if s.unavailable {
			s.releaseLocked()
			g.observeLocked(source, s)
			s.mu.Unlock()
			return ErrUnavailable
		}
		now := g.clock.Now()
		wait := s.nextDelayLocked(now, limits, g.policy.WindowSlack)
		if wait <= 0 {
			if limits.RequestsPerWindow > 0 && limits.Window > 0 {
				s.admissions = append(s.admissions, now)
			}
			s.lastAdmitted = now
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		<-g.clock.After(wait)
	}
}

// ReportSuccess records a successful call outcome for the source. The
// consecutive failure count and any pending backoff are cleared, an open
// breaker closes, and the concurrency slot passes to the next waiter.
func (g *Governor) ReportSuccess(source string) {
	s := g.sources[source]
	if s == nil {
		return
	}

	s.mu.Lock()
	recovered := s.unavailable
	s.failures = 0
	s.backoffUntil = time.Time{}
	s.unavailable = false
	s.releaseLocked()
	g.observeLocked(source, s)
	s.mu.Unlock()

	if g.metrics != nil {
		g.metrics.RecordReport(source, "success")
	}
	if recovered && g.policy.OnStateChange != nil {
		g.policy.OnStateChange(source, StateOpen, StateClosed)
	}
}

// ReportFailure records a failed call outcome for the source. The
// consecutive failure count grows, a backoff deadline is scheduled, and
// the breaker opens once the count reaches the trip threshold. Failures
// with status 429 are treated as explicit throttling and back off harder.
// While the breaker is open the report only releases the slot.
func (g *Governor) ReportFailure(source string, status int) {
	s := g.sources[source]
	if s == nil {
		return
	}
	throttled := status == http.StatusTooManyRequests

	s.mu.Lock()
	if s.unavailable {
		s.releaseLocked()
		g.observeLocked(source, s)
		s.mu.Unlock()
		if g.metrics != nil {
			g.metrics.RecordReport(source, "stale")
		}
		return
	}
	s.failures++
	failures := s.failures
	delay := g.policy.delayFor(failures, throttled)
	s.backoffUntil = g.clock.Now().Add(delay)
	tripped := failures >= g.policy.TripThreshold
	if tripped {
		s.unavailable = true
		s.drainLocked()
	}
	s.releaseLocked()
	g.observeLocked(source, s)
	s.mu.Unlock()

	if g.metrics != nil {
		outcome := "failure"
		if throttled {
			outcome = "throttle"
		}
		g.metrics.RecordReport(source, outcome)
		g.metrics.ObserveBackoff(source, delay)
	}
	if g.policy.OnBackoff != nil {
		g.policy.OnBackoff(source, failures, delay, throttled)
	}
	if tripped && g.policy.OnStateChange != nil {
		g.policy.OnStateChange(source, StateClosed, StateOpen)
	}
}

// IsUnavailable reports whether the source's breaker is open.
func (g *Governor) IsUnavailable(source string) bool {
	s := g.sources[source]
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unavailable
}

// Snapshot holds a point-in-time view of one source's admission state.
type Snapshot struct {
	Source           string        `json:"source"`
	State            string        `json:"state"`
	Failures         int           `json:"consecutive_failures"`
	InFlight         int           `json:"in_flight"`
	QueueDepth       int           `json:"queue_depth"`
	WindowCount      int           `json:"window_count"`
	BackoffRemaining time.Duration `json:"backoff_remaining"`
	Limits           Limits        `json:"limits"`
}

// Snapshot returns the current view of one source, and whether the source
// is configured.
func (g *Governor) Snapshot(source string) (Snapshot, bool) {
	s := g.sources[source]
	if s == nil {
		return Snapshot{}, false
	}
	return g.snapshot(source, s), true
}

// Snapshots returns the current view of every configured source, ordered
// by name.
func (g *Governor) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(g.sources))
	for name, s := range g.sources {
		out = append(out, g.snapshot(name, s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (g *Governor) snapshot(source string, s *sourceState) Snapshot {
	limits := g.limits[source]
	now := g.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limits.Window > 0 {
		s.pruneLocked(now, limits.Window)
	}
	state := StateClosed
	if s.unavailable {
		state = StateOpen
	}
	remaining := time.Duration(0)
	if !s.backoffUntil.IsZero() {
		if d := s.backoffUntil.Sub(now); d > 0 {
			remaining = d
		}
	}
	return Snapshot{
		Source:           source,
		State:            state.String(),
		Failures:         s.failures,
		InFlight:         s.inFlight,
		QueueDepth:       len(s.waiters),
		WindowCount:      len(s.admissions),
		BackoffRemaining: remaining,
		Limits:           limits,
	}
}

// observeLocked refreshes the per-source gauges. Callers hold s.mu.
func (g *Governor) observeLocked(source string, s *sourceState) {
	if g.metrics == nil {
		return
	}
	g.metrics.SetInFlight(source, s.inFlight)
	g.metrics.SetQueueDepth(source, len(s.waiters))
}
