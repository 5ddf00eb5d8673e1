package sema

import (
	"runtime"
	"sync/atomic"
	"time"
)

// lsemaMaxSpins is the upper bound on CAS retries before LSema falls back
// to blocking on its embedded Sema.
const lsemaMaxSpins = 10000

// LSema is a lightweight semaphore: an atomic signed counter that avoids
// touching the embedded Sema (and thus never parks a goroutine) as long as
// signals keep arriving while a waiter is still spinning. Negative counter
// values represent the number of outstanding waiters blocked (or about to
// block) on the inner Sema; correctness hinges on that signed convention.
type LSema struct {
	count int64
	sema  Sema
}

// NewLSema returns an LSema with the given initial count.
func NewLSema(initcount int32) *LSema {
	return &LSema{count: int64(initcount), sema: Sema{count: int64(initcount)}}
}

// TryWait decrements the counter iff it is currently positive. Never blocks.
func (s *LSema) TryWait() bool {
	old := atomic.LoadInt64(&s.count)
	for old > 0 {
		if atomic.CompareAndSwapInt64(&s.count, old, old-1) {
			return true
		}
		old = atomic.LoadInt64(&s.count)
	}
	return false
}

// Wait blocks until a unit is available.
func (s *LSema) Wait() {
	if s.TryWait() {
		return
	}
	s.waitPartialSpin(0)
}

// TimedWait is like Wait but gives up after d.
func (s *LSema) TimedWait(d time.Duration) bool {
	if s.TryWait() {
		return true
	}
	if d <= 0 {
		return false
	}
	return s.waitPartialSpin(d)
}

// waitPartialSpin implements the Preshing "lightweight semaphore" algorithm:
// spin on a CAS for a bounded number of iterations, then pessimistically
// decrement and block on the inner Sema if that didn't pan out. On a timed
// wait that itself times out, the counter is restored, accounting for the
// possibility that a signal raced in during the timeout.
func (s *LSema) waitPartialSpin(timeout time.Duration) bool {
	for spin := lsemaMaxSpins; spin > 0; spin-- {
		old := atomic.LoadInt64(&s.count)
		if old > 0 && atomic.CompareAndSwapInt64(&s.count, old, old-1) {
			return true
		}
		runtime.Gosched()
	}

	old := atomic.AddInt64(&s.count, -1) + 1 // value before the decrement
	if old > 0 {
		return true
	}
	if timeout <= 0 {
		s.sema.Wait()
		return true
	}
	if s.sema.TimedWait(timeout) {
		return true
	}

	// Timed out waiting on the inner Sema. The counter is still decremented
	// as though we're a pending waiter; undo that, unless a signal arrived
	// for us in the meantime, in which case consume it via the Sema instead.
	for {
		old = atomic.LoadInt64(&s.count)
		if old >= 0 && s.sema.TryWait() {
			return true
		}
		if old < 0 && atomic.CompareAndSwapInt64(&s.count, old, old+1) {
			return false
		}
	}
}

// Signal posts n increments. Exactly enough of the inner Sema is signaled
// to release every waiter that is genuinely blocked there (as opposed to
// still spinning), per the clamp k = min(n, -prev).
func (s *LSema) Signal(n int32) {
	if n <= 0 {
		return
	}
	prev := atomic.AddInt64(&s.count, int64(n))
	prev -= int64(n) // value before the add
	toRelease := int64(n)
	if -prev < toRelease {
		toRelease = -prev
	}
	if toRelease > 0 {
		s.sema.Signal(uint32(toRelease))
	}
}

// ApproxAvail returns a non-authoritative snapshot of the available count,
// clamped to 0.
func (s *LSema) ApproxAvail() int32 {
	c := atomic.LoadInt64(&s.count)
	if c < 0 {
		return 0
	}
	if c > int64(^uint32(0)>>1) {
		return int32(^uint32(0) >> 1)
	}
	return int32(c)
}
