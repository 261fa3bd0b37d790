package collections

import (
	"sync"
)

// BlockingQueue is a FIFO queue whose Dequeue blocks while the queue is empty. It is meant to be
// drained by a fixed set of worker goroutines.
type BlockingQueue[T any] interface {
	// Enqueue pushes an item onto the back of the queue and wakes a waiting consumer.
	Enqueue(item T)

	// Dequeue removes and returns the front item, blocking until one is available.
	Dequeue() T
}

type blockingSliceQueue[T any] struct {
	q        []T
	l        *sync.Mutex
	nonEmpty *sync.Cond
}

// NewBlockingQueue returns a slice backed BlockingQueue.
func NewBlockingQueue[T any]() BlockingQueue[T] {
	l := new(sync.Mutex)

	return &blockingSliceQueue[T]{
		q:        []T{},
		l:        l,
		nonEmpty: sync.NewCond(l),
	}
}

func (q *blockingSliceQueue[T]) Enqueue(item T) {
	q.l.Lock()
	defer q.l.Unlock()

	q.q = append(q.q, item)
	q.nonEmpty.Signal()
}

func (q *blockingSliceQueue[T]) Dequeue() T {
	q.l.Lock()
	defer q.l.Unlock()

	// spurious and stolen wakeups both land back in Wait
	for len(q.q) == 0 {
		q.nonEmpty.Wait()
	}

	var zero T

	e := q.q[0]
	q.q[0] = zero
	q.q = q.q[1:]
	return e
}
