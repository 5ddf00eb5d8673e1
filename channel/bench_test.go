package channel

import "testing"

// BenchmarkBuiltinChannel gives a baseline from Go's built-in channel to
// compare against before measuring Chan's own throughput.
func BenchmarkBuiltinChannel(b *testing.B) {
	ch := make(chan int, 8192)

	b.ResetTimer()
	go func() {
		for i := 0; i < b.N; i++ {
			<-ch
		}
	}()
	for i := 0; i < b.N; i++ {
		ch <- i
	}
}

func BenchmarkChanBuffered(b *testing.B) {
	c, _ := Open[int](8192)
	defer func() {
		c.Close()
		c.Free()
	}()

	b.ResetTimer()
	go func() {
		for i := 0; i < b.N; i++ {
			c.Recv()
		}
	}()
	for i := 0; i < b.N; i++ {
		c.Send(i)
	}
}

func BenchmarkChanUnbuffered(b *testing.B) {
	c, _ := Open[int](0)
	defer func() {
		c.Close()
		c.Free()
	}()

	b.ResetTimer()
	go func() {
		for i := 0; i < b.N; i++ {
			c.Recv()
		}
	}()
	for i := 0; i < b.N; i++ {
		c.Send(i)
	}
}

func BenchmarkChanTrySend(b *testing.B) {
	c, _ := Open[int](1)
	defer func() {
		c.Close()
		c.Free()
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.TrySend(i)
		c.TryRecv()
	}
}
