package waiterpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOnEmptyPoolReportsNotOK(t *testing.T) {
	p := New[int](4)
	_, ok := p.Get()
	assert.False(t, ok)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	p := New[string](4)
	p.Put("hello")
	v, ok := p.Get()
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	_, ok = p.Get()
	assert.False(t, ok)
}

func TestPutBeyondCapacityIsDroppedNotBlocked(t *testing.T) {
	p := New[int](2) // rounds up to 2
	p.Put(1)
	p.Put(2)
	p.Put(3) // pool full, dropped rather than blocking

	seen := map[int]bool{}
	for {
		v, ok := p.Get()
		if !ok {
			break
		}
		seen[v] = true
	}
	assert.LessOrEqual(t, len(seen), 2)
}

func TestConcurrentPutGetNeverCorrupts(t *testing.T) {
	const n = 2000
	p := New[int](n) // large enough that Put never drops, so Get always keeps pace

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p.Put(i)
		}
	}()
	go func() {
		defer wg.Done()
		got := 0
		for got < n {
			if _, ok := p.Get(); ok {
				got++
			}
		}
	}()
	wg.Wait()
}

func TestRoundUpToPowerOfTwo(t *testing.T) {
	assert.Equal(t, uint64(2), roundUp(1))
	assert.Equal(t, uint64(2), roundUp(2))
	assert.Equal(t, uint64(4), roundUp(3))
	assert.Equal(t, uint64(8), roundUp(5))
	assert.Equal(t, uint64(16), roundUp(16))
}
