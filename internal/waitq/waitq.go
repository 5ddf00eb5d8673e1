// Package waitq implements the FIFO wait queue of parked callers shared by
// tchan's channel implementation: a singly-linked intrusive list of
// Waiter records, manipulated only while the owning channel's lock is
// held.
package waitq

import (
	"sync/atomic"

	"tchan/internal/waiterpool"
	"tchan/sema"
)

// Waiter is one parked caller's record, taken for each blocking call
// (recycled through a Pool when one is available) rather than cached per
// goroutine.
type Waiter[T any] struct {
	next   *Waiter[T]
	ID     uint64
	Sema   *sema.LSema
	msgptr atomic.Pointer[T]
	closed atomic.Bool
}

// NewWaiter returns a fresh Waiter with id as its diagnostic identifier.
func NewWaiter[T any](id uint64) *Waiter[T] {
	return &Waiter[T]{ID: id, Sema: sema.NewLSema(0)}
}

// reset clears a Waiter's per-use state so it can be handed out again by a
// Pool. The embedded LSema is left as-is: a balanced Park/Signal pair
// always leaves its count back at zero, so it needs no reset of its own.
func (w *Waiter[T]) reset(id uint64) {
	w.next = nil
	w.ID = id
	w.msgptr.Store(nil)
	w.closed.Store(false)
}

// Pool recycles Waiter records across blocking calls on a single channel,
// avoiding an allocation (and a fresh LSema) on every Park. It is backed by
// a bounded lock-free ring buffer; a pool miss falls back to allocating a
// new Waiter directly.
type Pool[T any] struct {
	ring *waiterpool.Pool[*Waiter[T]]
}

// NewPool returns a Pool that recycles up to size Waiters.
func NewPool[T any](size int) *Pool[T] {
	return &Pool[T]{ring: waiterpool.New[*Waiter[T]](size)}
}

// Acquire returns a Waiter ready for immediate use, either recycled from
// the pool or freshly allocated.
func (p *Pool[T]) Acquire(id uint64) *Waiter[T] {
	if w, ok := p.ring.Get(); ok {
		w.reset(id)
		return w
	}
	return NewWaiter[T](id)
}

// Release returns w to the pool once the caller is done with it (after
// Park has returned and its message slot has been consumed). Safe to call
// even when the pool is full; the Waiter is simply dropped.
func (p *Pool[T]) Release(w *Waiter[T]) {
	p.ring.Put(w)
}

// PublishMsgPtr makes p visible to whichever goroutine eventually reads
// MsgPtr — used by a parking sender/receiver to advertise the stack slot a
// peer should read from or write to during a direct hand-off.
func (w *Waiter[T]) PublishMsgPtr(p *T) { w.msgptr.Store(p) }

// MsgPtr returns the currently published slot pointer, or nil once it has
// been consumed.
func (w *Waiter[T]) MsgPtr() *T { return w.msgptr.Load() }

// ClearMsgPtr is called by the awakener immediately after copying into or
// out of MsgPtr(), before signaling the waiter's semaphore.
func (w *Waiter[T]) ClearMsgPtr() { w.msgptr.Store(nil) }

// MarkClosed records that this waiter is being woken by channel close
// rather than by a peer completing the hand-off.
func (w *Waiter[T]) MarkClosed() { w.closed.Store(true) }

// WokenByClose reports whether MarkClosed was called before this waiter
// was signaled.
func (w *Waiter[T]) WokenByClose() bool { return w.closed.Load() }

// Signal wakes the parked goroutine.
func (w *Waiter[T]) Signal() { w.Sema.Signal(1) }

// Park blocks the calling goroutine until Signal is called.
func (w *Waiter[T]) Park() { w.Sema.Wait() }

// Q is a FIFO queue of parked Waiters. Enqueue/Dequeue/DrainWithClose must
// only be called with the owning channel's lock held. first is kept as an
// atomic.Pointer so a channel's non-blocking fast path can peek at "is
// anyone parked here" without taking the lock.
type Q[T any] struct {
	first atomic.Pointer[Waiter[T]]
	last  *Waiter[T]
}

// Empty reports whether the queue has no parked waiters. Safe to call
// without the owning channel's lock.
func (q *Q[T]) Empty() bool { return q.first.Load() == nil }

// Enqueue appends w to the tail of the queue.
func (q *Q[T]) Enqueue(w *Waiter[T]) {
	w.next = nil
	if q.first.Load() == nil {
		q.first.Store(w)
	} else {
		q.last.next = w
	}
	q.last = w
}

// Dequeue removes and returns the waiter at the head of the queue, or nil
// if the queue is empty.
func (q *Q[T]) Dequeue() *Waiter[T] {
	w := q.first.Load()
	if w == nil {
		return nil
	}
	q.first.Store(w.next)
	w.next = nil
	// q.last is intentionally left stale when q.first becomes nil — the
	// next Enqueue call overwrites it unconditionally.
	return w
}

// DrainWithClose dequeues every waiter, marking each closed and signaling
// it, used by Close to release all parked peers in FIFO order.
func (q *Q[T]) DrainWithClose() {
	for w := q.Dequeue(); w != nil; w = q.Dequeue() {
		w.MarkClosed()
		w.Signal()
	}
}
