// Package hybridmutex provides a lock that spins briefly under light
// contention and falls back to blocking on a semaphore when contention
// persists, trading the syscall-per-lock cost of a plain blocking mutex for
// a bounded amount of spinning on the fast path.
package hybridmutex

import (
	"runtime"
	"sync/atomic"

	"tchan/sema"
)

// spinTries is the number of times Lock polls the flag (yielding the
// processor) before registering itself as a blocked waiter and parking on
// the inner semaphore. Cargo-culted from the same ballpark as TCMalloc,
// WebKit and Windows critical sections.
const spinTries = 1000

// HybridMutex is a mutual-exclusion lock with no fairness guarantee beyond
// whatever ordering the OS scheduler imposes on blocked waiters.
type HybridMutex struct {
	flag  int32 // 0 unlocked, 1 locked
	nwait int32
	sem   sema.Sema
}

// NewHybridMutex returns an unlocked HybridMutex.
func NewHybridMutex() *HybridMutex {
	return &HybridMutex{}
}

// Lock acquires the mutex, blocking until it is available.
func (m *HybridMutex) Lock() {
	for {
		if atomic.SwapInt32(&m.flag, 1) == 0 {
			return
		}
		n := spinTries
		for atomic.LoadInt32(&m.flag) != 0 {
			n--
			if n == 0 {
				n = spinTries
				atomic.AddInt32(&m.nwait, 1)
				for atomic.LoadInt32(&m.flag) != 0 {
					m.sem.Wait()
				}
				atomic.AddInt32(&m.nwait, -1)
			} else {
				runtime.Gosched()
			}
		}
	}
}

// Unlock releases the mutex. It is a programmer error to call Unlock on an
// unlocked HybridMutex; unlike the channel's close/send misuse, this is not
// guarded against here, matching sync.Mutex's own contract.
func (m *HybridMutex) Unlock() {
	atomic.StoreInt32(&m.flag, 0)
	if atomic.LoadInt32(&m.nwait) > 0 {
		m.sem.Signal(1)
	}
}
