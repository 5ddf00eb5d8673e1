// Package channel implements tchan's Chan[T]: a typed, optionally-buffered,
// multi-producer/multi-consumer message channel with CSP-style rendezvous
// and buffered queueing between goroutines.
//
// The design is modeled on the Go runtime's own channel implementation,
// adapted to sit entirely in user code atop a hybrid spin-then-block mutex
// and a lightweight semaphore instead of the runtime scheduler's internal
// park/ready primitives.
package channel

import (
	"errors"
	"fmt"
	"sync/atomic"

	"tchan/hybridmutex"
	"tchan/internal/waitq"
	"tchan/once"
)

// ErrClosed is a convenience sentinel a caller can wrap its own error
// around when TrySend/TryRecv report closed=true. The channel API itself
// never returns it directly: TrySend/TryRecv communicate "closed" via a
// bool out-parameter rather than an error. Programmer errors (double
// Close, blocking Send on a closed channel, Free before Close) are not
// represented as errors at all: they panic, matching the standard
// library's own built-in channel.
var ErrClosed = errors.New("tchan: channel is closed")

// waiterSeq is a process-wide monotonic waiter-id counter, lazily
// initialized on first use. idOnce gates that first-use initialization
// with the package's own Once rather than relying on a package-level
// var's static zero value, so the lazy-init contract is expressed
// explicitly instead of incidentally.
var (
	idOnce    once.Once
	waiterSeq uint64
)

func nextWaiterID() uint64 {
	idOnce.Do(func() { waiterSeq = 0 })
	return atomic.AddUint64(&waiterSeq, 1)
}

// Allocator supplies and reclaims the backing storage for a Chan's ring
// buffer. Go's garbage collector makes manual reclamation unnecessary for
// correctness, but Free is still called by Chan.Free so an Allocator that
// pools buffers (to avoid repeated large allocations for high-throughput,
// short-lived channels) has a hook to recycle the slice.
type Allocator[T any] interface {
	Alloc(n int) []T
	Free(buf []T)
}

type goAllocator[T any] struct{}

func (goAllocator[T]) Alloc(n int) []T { return make([]T, n) }
func (goAllocator[T]) Free([]T)        {}

// hotFields groups the counters mutated on every operation. sendx and recvx
// are split across padding so that, under heavy contention, a sender
// advancing sendx does not bounce the cache line a concurrent receiver is
// reading recvx from. Go cannot pin field alignment directly, so this pads
// each counter out to a full cache line as a best-effort substitute.
type hotFields struct {
	sendx uint32
	_     [60]byte // pad to a full cache line after sendx
	recvx uint32
	_     [60]byte
	qlen  uint32
	_     [60]byte
}

// Chan is an optionally-buffered messaging channel for CSP-like processing
// between goroutines. The zero value is not usable; construct one with
// Open.
type Chan[T any] struct {
	alloc Allocator[T]
	qcap  uint32 // immutable

	closed uint32 // atomic, one-shot 0->1
	lock   hybridmutex.HybridMutex

	sendq waitq.Q[T]
	recvq waitq.Q[T]

	waiters *waitq.Pool[T]

	hot hotFields
	buf []T
}

// waiterPoolSize bounds how many parked-call records a channel recycles.
// It doesn't need to track qcap: it absorbs bursts of blocking callers on
// an otherwise-draining channel, not the buffer itself.
const waiterPoolSize = 64

// Option configures a Chan at Open time.
type Option[T any] func(*Chan[T])

// WithAllocator overrides the default make()-backed Allocator.
func WithAllocator[T any](a Allocator[T]) Option[T] {
	return func(c *Chan[T]) { c.alloc = a }
}

// Open allocates and initializes a channel with the given buffer capacity.
// A capacity of 0 yields an unbuffered (synchronous) channel. Open returns
// an error only for an invalid capacity, but keeps the error return so a
// future Allocator that can itself fail has somewhere to report it.
func Open[T any](cap int, opts ...Option[T]) (*Chan[T], error) {
	if cap < 0 {
		return nil, fmt.Errorf("tchan: negative capacity %d", cap)
	}
	c := &Chan[T]{qcap: uint32(cap), alloc: goAllocator[T]{}, waiters: waitq.NewPool[T](waiterPoolSize)}
	for _, opt := range opts {
		opt(c)
	}
	if cap > 0 {
		c.buf = c.alloc.Alloc(cap)
	}
	return c, nil
}

// Cap returns the channel's buffer capacity.
func (c *Chan[T]) Cap() int { return int(c.qcap) }

func (c *Chan[T]) isClosed() bool { return atomic.LoadUint32(&c.closed) != 0 }

// isFull reports whether the channel cannot currently accept a send
// without either a waiting receiver or blocking. For qcap==0, "full" means
// no receiver is parked (there's nowhere to hand a message off to).
func (c *Chan[T]) isFull() bool {
	if c.qcap == 0 {
		return c.recvq.Empty()
	}
	return atomic.LoadUint32(&c.hot.qlen) == c.qcap
}

// isEmpty reports the receive-side mirror of isFull.
func (c *Chan[T]) isEmpty() bool {
	if c.qcap == 0 {
		return c.sendq.Empty()
	}
	return atomic.LoadUint32(&c.hot.qlen) == 0
}

// Send enqueues a message, blocking until it is sent. It panics if the
// channel is closed — sending on a closed channel is a programmer error,
// exactly as for Go's own built-in channels.
func (c *Chan[T]) Send(v T) {
	c.send(v, nil)
}

// TrySend attempts to send v without blocking. sent reports whether the
// message was accepted; closed reports whether the channel was observed
// closed (in which case sent is always false).
func (c *Chan[T]) TrySend(v T) (sent, closed bool) {
	return c.send(v, &closed), closed
}

func (c *Chan[T]) send(v T, closedOut *bool) bool {
	block := closedOut == nil

	if !block && !c.isClosed() && c.isFull() {
		return false
	}

	c.lock.Lock()

	if c.isClosed() {
		c.lock.Unlock()
		if block {
			panic("tchan: send on closed channel")
		}
		*closedOut = true
		return false
	}

	if recv := c.recvq.Dequeue(); recv != nil {
		c.sendDirect(v, recv)
		return true
	}

	if atomic.LoadUint32(&c.hot.qlen) < c.qcap {
		i := c.hot.sendx
		c.buf[i] = v
		i++
		if i == c.qcap {
			i = 0
		}
		atomic.StoreUint32(&c.hot.sendx, i)
		atomic.AddUint32(&c.hot.qlen, 1)
		c.lock.Unlock()
		return true
	}

	if !block {
		c.lock.Unlock()
		return false
	}

	w := c.waiters.Acquire(nextWaiterID())
	w.PublishMsgPtr(&v)
	c.sendq.Enqueue(w)
	c.lock.Unlock()
	w.Park()
	c.waiters.Release(w)
	return true
}

// sendDirect hands msg straight to a parked receiver, bypassing the ring
// buffer. c must be locked; recv must already be dequeued from c.recvq.
// Unlocks c before returning.
func (c *Chan[T]) sendDirect(msg T, recv *waitq.Waiter[T]) {
	dst := recv.MsgPtr()
	*dst = msg
	recv.ClearMsgPtr()
	c.lock.Unlock()
	recv.Signal()
}

// Recv dequeues a message, blocking until one is available or the channel
// is closed. ok is false only when the channel is closed and drained.
func (c *Chan[T]) Recv() (v T, ok bool) {
	ok = c.recv(&v, nil)
	return v, ok
}

// TryRecv attempts to receive without blocking. sent reports whether a
// message was returned; closed reports whether the channel was observed
// closed and empty.
func (c *Chan[T]) TryRecv() (v T, sent, closed bool) {
	sent = c.recv(&v, &closed)
	return v, sent, closed
}

func (c *Chan[T]) recv(dst *T, closedOut *bool) bool {
	block := closedOut == nil

	if block {
		return c.recvBlocking(dst)
	}

	if c.isEmpty() {
		if !c.isClosed() {
			return false
		}
		var zero T
		*dst = zero
		*closedOut = true
		return false
	}
	return c.recvLocked(dst, closedOut)
}

func (c *Chan[T]) recvBlocking(dst *T) bool {
	c.lock.Lock()

	if c.isClosed() && atomic.LoadUint32(&c.hot.qlen) == 0 {
		c.lock.Unlock()
		var zero T
		*dst = zero
		return false
	}

	if send := c.sendq.Dequeue(); send != nil {
		c.recvDirect(dst, send)
		return true
	}

	if atomic.LoadUint32(&c.hot.qlen) > 0 {
		c.dequeueBuffered(dst)
		c.lock.Unlock()
		return true
	}

	w := c.waiters.Acquire(nextWaiterID())
	w.PublishMsgPtr(dst)
	c.recvq.Enqueue(w)
	c.lock.Unlock()
	w.Park()

	woken := w.WokenByClose()
	c.waiters.Release(w)
	if woken {
		var zero T
		*dst = zero
		return false
	}
	return true
}

func (c *Chan[T]) recvLocked(dst *T, closedOut *bool) bool {
	c.lock.Lock()

	if c.isClosed() && atomic.LoadUint32(&c.hot.qlen) == 0 {
		c.lock.Unlock()
		var zero T
		*dst = zero
		*closedOut = true
		return false
	}

	if send := c.sendq.Dequeue(); send != nil {
		c.recvDirect(dst, send)
		return true
	}

	if atomic.LoadUint32(&c.hot.qlen) > 0 {
		c.dequeueBuffered(dst)
		c.lock.Unlock()
		return true
	}

	c.lock.Unlock()
	return false
}

// dequeueBuffered reads the head of the ring buffer into *dst. c must be
// locked and c.hot.qlen must be > 0.
func (c *Chan[T]) dequeueBuffered(dst *T) {
	i := c.hot.recvx
	*dst = c.buf[i]
	var zero T
	c.buf[i] = zero
	i++
	if i == c.qcap {
		i = 0
	}
	atomic.StoreUint32(&c.hot.recvx, i)
	atomic.AddUint32(&c.hot.qlen, ^uint32(0)) // -1
}

// recvDirect processes a receive when a sender is parked. c must be
// locked; sender must already be dequeued from c.sendq. Unlocks c before
// returning.
func (c *Chan[T]) recvDirect(dst *T, sender *waitq.Waiter[T]) {
	if atomic.LoadUint32(&c.hot.qlen) == 0 {
		src := sender.MsgPtr()
		*dst = *src
	} else {
		// Buffer is full: take the head of the queue for the receiver and
		// let the sender's value take the tail slot — both are the same
		// slot because the ring is full.
		i := c.hot.recvx
		*dst = c.buf[i]
		var nextRecvx, nextSendx uint32
		if i+1 == c.qcap {
			nextRecvx, nextSendx = 0, 0
		} else {
			nextRecvx, nextSendx = i+1, i+1
		}
		atomic.StoreUint32(&c.hot.recvx, nextRecvx)
		atomic.StoreUint32(&c.hot.sendx, nextSendx)

		src := sender.MsgPtr()
		c.buf[i] = *src
	}
	sender.ClearMsgPtr()
	c.lock.Unlock()
	sender.Signal()
}

// Close closes the channel, waking every parked sender and receiver. It
// panics if the channel is already closed — calling Close twice is a
// programmer error, exactly as for Go's own built-in channels.
func (c *Chan[T]) Close() {
	c.lock.Lock()
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		c.lock.Unlock()
		panic("tchan: close of closed channel")
	}

	c.recvq.DrainWithClose()
	c.sendq.DrainWithClose()

	c.lock.Unlock()
}

// Free releases the channel's backing storage via its Allocator. It panics
// if called before Close — freeing a live channel is a programmer error.
func (c *Chan[T]) Free() {
	if !c.isClosed() {
		panic("tchan: free of unclosed channel")
	}
	if c.buf != nil {
		c.alloc.Free(c.buf)
		c.buf = nil
	}
}
