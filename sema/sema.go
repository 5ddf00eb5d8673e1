// Package sema provides the two semaphore layers tchan's channel and
// hybrid mutex are built on: Sema, a blocking counting semaphore, and
// LSema, a spinning layer on top of it that avoids a syscall-equivalent
// block when a signal arrives while the waiter is still spinning.
package sema

import (
	"container/list"
	"sync"
	"time"
)

// Sema is a counting semaphore, standing in for a platform primitive (mach
// semaphore_*, POSIX sem_*, Win32 CreateSemaphore). Go has no portable
// handle to one of those without cgo, so Sema is built from a mutex and a
// FIFO of one-shot wake channels, in the same spirit as a POSIX semaphore
// emulated over condition variables.
type Sema struct {
	mu       sync.Mutex
	count    int64
	waiters  list.List // of *chan struct{}
	disposed bool
}

// NewSema returns a Sema with the given initial count.
func NewSema(initcount uint32) *Sema {
	return &Sema{count: int64(initcount)}
}

// Dispose releases every currently parked waiter and marks the semaphore
// so that future Wait calls return immediately. It does not reclaim any
// OS resource (there is none to reclaim); it exists so an owner that is
// being torn down never leaves a goroutine blocked forever.
func (s *Sema) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	for e := s.waiters.Front(); e != nil; e = e.Next() {
		close(*e.Value.(*chan struct{}))
	}
	s.waiters.Init()
}

// Wait blocks until the semaphore's count is positive, then decrements it.
func (s *Sema) Wait() {
	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return
	}
	if s.disposed {
		s.mu.Unlock()
		return
	}
	ready := make(chan struct{})
	s.waiters.PushBack(&ready)
	s.mu.Unlock()

	<-ready
}

// TryWait decrements the semaphore and returns true iff it was already
// positive. It never blocks.
func (s *Sema) TryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// TimedWait is like Wait but gives up and returns false if d elapses first.
// A non-positive d is treated as an immediate TryWait.
func (s *Sema) TimedWait(d time.Duration) bool {
	if d <= 0 {
		return s.TryWait()
	}

	s.mu.Lock()
	if s.count > 0 {
		s.count--
		s.mu.Unlock()
		return true
	}
	if s.disposed {
		s.mu.Unlock()
		return false
	}
	ready := make(chan struct{})
	elem := s.waiters.PushBack(&ready)
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ready:
		return true
	case <-timer.C:
		s.mu.Lock()
		select {
		case <-ready:
			// Signaled right as the timer fired; honor the signal.
			s.mu.Unlock()
			return true
		default:
			s.waiters.Remove(elem)
			s.mu.Unlock()
			return false
		}
	}
}

// Signal posts n increments to the semaphore, waking up to n waiters
// in FIFO order.
func (s *Sema) Signal(n uint32) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for n > 0 && s.waiters.Len() > 0 {
		e := s.waiters.Front()
		s.waiters.Remove(e)
		close(*e.Value.(*chan struct{}))
		n--
	}
	s.count += int64(n)
}
