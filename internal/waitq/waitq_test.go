package waitq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueFIFOOrder(t *testing.T) {
	var q Q[int]
	assert.True(t, q.Empty())

	a := NewWaiter[int](1)
	b := NewWaiter[int](2)
	c := NewWaiter[int](3)
	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(c)
	assert.False(t, q.Empty())

	assert.Same(t, a, q.Dequeue())
	assert.Same(t, b, q.Dequeue())
	assert.Same(t, c, q.Dequeue())
	assert.Nil(t, q.Dequeue())
	assert.True(t, q.Empty())
}

func TestQueueReusableAfterDraining(t *testing.T) {
	var q Q[int]
	q.Enqueue(NewWaiter[int](1))
	q.Dequeue()
	assert.True(t, q.Empty())

	w := NewWaiter[int](2)
	q.Enqueue(w)
	assert.False(t, q.Empty())
	assert.Same(t, w, q.Dequeue())
}

func TestDrainWithCloseSignalsEveryWaiter(t *testing.T) {
	var q Q[int]
	const n = 5
	waiters := make([]*Waiter[int], n)
	for i := 0; i < n; i++ {
		waiters[i] = NewWaiter[int](uint64(i))
		q.Enqueue(waiters[i])
	}

	q.DrainWithClose()
	assert.True(t, q.Empty())

	for _, w := range waiters {
		done := make(chan struct{})
		go func(w *Waiter[int]) {
			w.Park()
			close(done)
		}(w)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("waiter drained by DrainWithClose never returns from Park")
		}
		assert.True(t, w.WokenByClose())
	}
}

func TestPublishAndClearMsgPtr(t *testing.T) {
	w := NewWaiter[int](1)
	assert.Nil(t, w.MsgPtr())

	v := 42
	w.PublishMsgPtr(&v)
	assert.Same(t, &v, w.MsgPtr())

	w.ClearMsgPtr()
	assert.Nil(t, w.MsgPtr())
}

func TestSignalUnparksWaiter(t *testing.T) {
	w := NewWaiter[int](1)
	done := make(chan struct{})
	go func() {
		w.Park()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Park returned before Signal")
	case <-time.After(10 * time.Millisecond):
	}

	w.Signal()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park never returned after Signal")
	}
	assert.False(t, w.WokenByClose())
}

func TestPoolAcquireRecyclesReleasedWaiters(t *testing.T) {
	p := NewPool[int](4)

	w1 := p.Acquire(1)
	w1.MarkClosed()
	v := 7
	w1.PublishMsgPtr(&v)
	p.Release(w1)

	w2 := p.Acquire(2)
	assert.Same(t, w1, w2)
	assert.Equal(t, uint64(2), w2.ID)
	assert.False(t, w2.WokenByClose())
	assert.Nil(t, w2.MsgPtr())
}

func TestPoolAcquireAllocatesFreshWhenEmpty(t *testing.T) {
	p := NewPool[int](4)
	w := p.Acquire(1)
	assert.NotNil(t, w)
	assert.Equal(t, uint64(1), w.ID)
}
