package collections

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockingQueueOrder(t *testing.T) {
	q := NewBlockingQueue[int]()
	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}

	for i := 0; i < 5; i++ {
		require.Equal(t, i, q.Dequeue())
	}
}

func TestBlockingQueueDequeueWaitsForItem(t *testing.T) {
	q := NewBlockingQueue[string]()
	got := make(chan string)

	go func() {
		got <- q.Dequeue()
	}()

	select {
	case v := <-got:
		t.Fatalf("Dequeue returned %q from an empty queue", v)
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue("h0")

	select {
	case v := <-got:
		require.Equal(t, "h0", v)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake after Enqueue")
	}
}

func TestBlockingQueueManyConsumers(t *testing.T) {
	const consumers = 8
	const items = 1000

	q := NewBlockingQueue[int]()

	var mu sync.Mutex
	seen := make(map[int]bool, items)

	var wg sync.WaitGroup
	wg.Add(items)
	for c := 0; c < consumers; c++ {
		go func() {
			for {
				v := q.Dequeue()
				if v < 0 {
					return
				}

				mu.Lock()
				seen[v] = true
				mu.Unlock()
				wg.Done()
			}
		}()
	}

	for i := 0; i < items; i++ {
		q.Enqueue(i)
	}
	wg.Wait()

	for c := 0; c < consumers; c++ {
		q.Enqueue(-1)
	}

	require.Len(t, seen, items)
}
