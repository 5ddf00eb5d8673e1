package main

import (
	"fmt"
	"sync"

	"tchan/channel"
)

func main() {
	fmt.Println("tchan!")

	c, err := channel.Open[int](4)
	if err != nil {
		fmt.Println("open failed:", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			v, ok := c.Recv()
			if !ok {
				return
			}
			fmt.Println("recv:", v)
		}
	}()

	for i := 0; i < 5; i++ {
		c.Send(42 + i)
	}
	c.Close()
	wg.Wait()
	c.Free()
}
