package hybridmutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHybridMutexMutualExclusion(t *testing.T) {
	m := NewHybridMutex()
	counter := 0
	const goroutines = 16
	const perGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, counter)
}

func TestHybridMutexContendedHandoff(t *testing.T) {
	m := NewHybridMutex()
	m.Lock()

	unlocked := make(chan struct{})
	go func() {
		m.Lock()
		close(unlocked)
		m.Unlock()
	}()

	select {
	case <-unlocked:
		t.Fatal("second Lock succeeded before Unlock")
	case <-time.After(20 * time.Millisecond):
	}

	m.Unlock()

	select {
	case <-unlocked:
	case <-time.After(time.Second):
		t.Fatal("blocked Lock never woke up after Unlock")
	}
}

func TestHybridMutexSatisfiesLocker(t *testing.T) {
	var _ sync.Locker = NewHybridMutex()
}
