package governor

import (
	"sync"
	"time"
)

// waiter receives true when a concurrency slot is handed over directly.
// It is closed without a value when the queue is drained on a breaker trip.
type waiter chan bool

// sourceState is the mutable admission state for one source. All fields
// are guarded by mu.
type sourceState struct {
	mu sync.Mutex

	// admissions holds the timestamps inside the current rolling window,
	// oldest first. Pruned lazily on each window check.
	admissions []time.Time
	// lastAdmitted is the most recent admission, for MinInterval spacing.
	lastAdmitted time.Time
	// backoffUntil blocks admissions until it passes. Zero when clear.
	backoffUntil time.Time
	// failures counts consecutive reported failures.
	failures int
	// inFlight counts admitted calls that have not reported an outcome.
	inFlight int
	// waiters queue callers blocked on a concurrency slot, FIFO.
	waiters []waiter
	// unavailable is true while the breaker is open.
	unavailable bool
}

// enqueueLocked appends a new waiter at the tail of the slot queue.
func (s *sourceState) enqueueLocked() waiter {
	w := make(waiter, 1)
	s.waiters = append(s.waiters, w)
	return w
}

// grantOneLocked hands the caller's slot to the head waiter, if any.
// The slot transfers directly, so inFlight does not change and callers
// arriving later cannot overtake the queue. Reports whether a handoff
// happened.
func (s *sourceState) grantOneLocked() bool {
	if len(s.waiters) == 0 {
		return false
	}
	w := s.waiters[0]
	s.waiters[0] = nil
	s.waiters = s.waiters[1:]
	w <- true
	return true
}

// drainLocked wakes every queued waiter empty-handed. Each drained waiter
// re-observes the breaker before retrying.
func (s *sourceState) drainLocked() {
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}

// releaseLocked returns one concurrency slot: the head waiter inherits it
// when the queue is non-empty, otherwise inFlight drops. The count clamps
// at zero so an over-reported outcome cannot corrupt the gauge.
func (s *sourceState) releaseLocked() {
	if s.grantOneLocked() {
		return
	}
	if s.inFlight > 0 {
		s.inFlight--
	}
}

// nextDelayLocked reports how much longer the caller must wait before the
// next admission, checking the gates in order: backoff deadline, minimum
// spacing, rolling window. Zero means admit now.
func (s *sourceState) nextDelayLocked(now time.Time, limits Limits, slack time.Duration) time.Duration {
	if !s.backoffUntil.IsZero() {
		if d := s.backoffUntil.Sub(now); d > 0 {
			return d
		}
	}
	if limits.MinInterval > 0 && !s.lastAdmitted.IsZero() {
		if d := s.lastAdmitted.Add(limits.MinInterval).Sub(now); d > 0 {
			return d
		}
	}
	if limits.RequestsPerWindow > 0 && limits.Window > 0 {
		s.pruneLocked(now, limits.Window)
		if len(s.admissions) >= limits.RequestsPerWindow {
			oldest := s.admissions[0]
			return oldest.Add(limits.Window).Sub(now) + slack
		}
	}
	return 0
}

// pruneLocked drops admissions that fell out of the rolling window ending
// at now. Entries exactly one window old still count.
func (s *sourceState) pruneLocked(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s.admissions) && s.admissions[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.admissions = append(s.admissions[:0], s.admissions[i:]...)
	}
}
