// Package once provides a one-shot initializer coordinating a single
// "winner" goroutine running an initializer while "loser" goroutines block
// until it finishes, using an explicit four-phase state machine rather than
// delegating to the standard library's sync.Once.
package once

import (
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	phaseUninit       = 0
	phaseInitializing = 1
	phaseRunning      = 2
	phaseDone         = 3
)

// Once runs exactly one function to completion, no matter how many
// goroutines call Do concurrently; every call to Do blocks until that one
// run has completed.
type Once struct {
	phase int32
	mu    sync.Mutex
}

// Do calls f if and only if Do is being called for the first time for this
// instance of Once. Every other call — concurrent or sequential — blocks
// until that first call to f returns, then returns without calling f again.
func (o *Once) Do(f func()) {
	if atomic.LoadInt32(&o.phase) == phaseDone {
		return
	}

	if atomic.CompareAndSwapInt32(&o.phase, phaseUninit, phaseInitializing) {
		o.mu.Lock()
		atomic.StoreInt32(&o.phase, phaseRunning)
		f()
		atomic.StoreInt32(&o.phase, phaseDone)
		o.mu.Unlock()
		return
	}

	// Loser: spin until the winner has at least reached phaseRunning (so
	// o.mu is known to be held), then block on that mutex to wait out the
	// winner's call to f.
	for atomic.LoadInt32(&o.phase) < phaseRunning {
		// The winner is between the CAS and taking o.mu; yield to it.
		runtime.Gosched()
	}
	if atomic.LoadInt32(&o.phase) == phaseDone {
		return
	}
	o.mu.Lock()
	o.mu.Unlock() //nolint:staticcheck // intentional: block on the winner's hold, nothing to protect here
}
