// Package waiterpool recycles parked-call records so that a busy channel
// doesn't allocate a fresh waiter (and its backing LSema) on every blocking
// Send or Recv. It is a bounded lock-free ring buffer adapted from Dmitry
// Vyukov's bounded MPMC queue design, specialized as a non-blocking object
// pool: Get never blocks (it returns ok=false on an empty pool, and the
// caller allocates fresh), and Put never blocks (it silently drops the
// waiter on a full pool and lets the garbage collector reclaim it).
package waiterpool

import "sync/atomic"

// minSize mirrors the ring buffer's own invariant: a size of 1 breaks the
// position-based ready/empty flagging scheme below.
const minSize = 2

func roundUp(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

type slot[T any] struct {
	position uint64
	item     T
}

// Pool is a fixed-capacity, lock-free, multi-producer/multi-consumer object
// pool. The zero value is not usable; construct one with New.
type Pool[T any] struct {
	_     [8]uint64
	write uint64
	_     [8]uint64
	read  uint64
	_     [8]uint64
	mask  uint64
	slots []slot[T]
}

// New returns a pool that holds up to size recycled items (rounded up to
// the next power of two, minimum 2).
func New[T any](size int) *Pool[T] {
	n := uint64(size)
	if n < minSize {
		n = minSize
	}
	n = roundUp(n)

	p := &Pool[T]{mask: n - 1, slots: make([]slot[T], n)}
	for i := range p.slots {
		p.slots[i].position = uint64(i)
	}
	return p
}

// Get removes and returns an item from the pool. ok is false if the pool
// was empty; the caller is expected to allocate a fresh item in that case.
func (p *Pool[T]) Get() (item T, ok bool) {
	pos := atomic.LoadUint64(&p.read)
	for {
		s := &p.slots[pos&p.mask]
		seq := atomic.LoadUint64(&s.position)
		switch diff := int64(seq) - int64(pos+1); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&p.read, pos, pos+1) {
				item = s.item
				var zero T
				s.item = zero
				atomic.StoreUint64(&s.position, pos+p.mask+1)
				return item, true
			}
		case diff < 0:
			return item, false
		default:
			pos = atomic.LoadUint64(&p.read)
		}
	}
}

// Put returns item to the pool for later reuse. It never blocks: if the
// pool is already full, item is dropped.
func (p *Pool[T]) Put(item T) {
	pos := atomic.LoadUint64(&p.write)
	for {
		s := &p.slots[pos&p.mask]
		seq := atomic.LoadUint64(&s.position)
		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&p.write, pos, pos+1) {
				s.item = item
				atomic.StoreUint64(&s.position, pos+1)
				return
			}
		case diff < 0:
			return
		default:
			pos = atomic.LoadUint64(&p.write)
		}
	}
}
