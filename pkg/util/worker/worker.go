package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/detsql/detsql/pkg/collections"
	"github.com/pkg/errors"
)

var (
	// ErrPoolShutdown is returned by Run once Shutdown has been called.
	ErrPoolShutdown = errors.New("worker pool is shut down")

	// ErrGroupFull is returned by an ordered group's Push once it holds as many inputs as it
	// was sized for.
	ErrGroupFull = errors.New("work group is at capacity")
)

// Worker is a transformation function from input type T to output type U.
type Worker[T any, U any] func(T) U

// WorkerPool is a fixed set of goroutines executing a Worker on the inputs passed to Run.
type WorkerPool[T any, U any] interface {
	// Run queues input for the next free worker. The result is sent on onComplete if it is
	// non-nil. An error is returned if the pool is shut down.
	Run(input T, onComplete chan<- U) error

	// Shutdown stops the workers once they finish the inputs queued before it.
	Shutdown()
}

// WorkGroup tracks a batch of inputs run on a WorkerPool.
type WorkGroup[T any, U any] interface {
	// Push adds a new input to the work group.
	Push(T) error

	// Wait waits for every pushed input to complete and returns the results.
	Wait() []U
}

type entry[T any, U any] struct {
	payload    T
	onComplete chan<- U
	close      bool
}

type queuedWorkerPool[T any, U any] struct {
	queue      collections.BlockingQueue[entry[T, U]]
	work       Worker[T, U]
	workers    int
	isShutdown atomic.Bool
}

// NewWorkerPool starts workers goroutines running work. Sizes below 1 are raised to 1.
func NewWorkerPool[T any, U any](workers int, work Worker[T, U]) WorkerPool[T, U] {
	if workers < 1 {
		workers = 1
	}

	wp := &queuedWorkerPool[T, U]{
		workers: workers,
		work:    work,
		queue:   collections.NewBlockingQueue[entry[T, U]](),
	}

	for i := 0; i < workers; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *queuedWorkerPool[T, U]) Run(input T, onComplete chan<- U) error {
	if wp.isShutdown.Load() {
		return ErrPoolShutdown
	}

	wp.queue.Enqueue(entry[T, U]{
		payload:    input,
		onComplete: onComplete,
	})

	return nil
}

func (wp *queuedWorkerPool[T, U]) Shutdown() {
	if !wp.isShutdown.CompareAndSwap(false, true) {
		return
	}

	// one sentinel per worker, queued behind any outstanding work
	for i := 0; i < wp.workers; i++ {
		wp.queue.Enqueue(entry[T, U]{close: true})
	}
}

func (wp *queuedWorkerPool[T, U]) worker() {
	for {
		next := wp.queue.Dequeue()
		if next.close {
			return
		}

		result := wp.work(next.payload)
		if next.onComplete != nil {
			next.onComplete <- result
		}
	}
}

// ordered collects results in the order inputs were pushed. Push is not safe for concurrent use.
type ordered[T any, U any] struct {
	workPool WorkerPool[T, U]
	results  []U
	wg       sync.WaitGroup
	count    int
}

// NewOrderedGroup creates a WorkGroup that holds up to size inputs and returns their results in
// push order.
func NewOrderedGroup[T any, U any](pool WorkerPool[T, U], size int) WorkGroup[T, U] {
	return &ordered[T, U]{
		workPool: pool,
		results:  make([]U, size),
	}
}

func (ow *ordered[T, U]) Push(input T) error {
	index := ow.count
	if index >= len(ow.results) {
		return ErrGroupFull
	}

	onComplete := make(chan U, 1)
	if err := ow.workPool.Run(input, onComplete); err != nil {
		return err
	}

	ow.count++
	ow.wg.Add(1)

	go func() {
		defer ow.wg.Done()

		ow.results[index] = <-onComplete
	}()

	return nil
}

func (ow *ordered[T, U]) Wait() []U {
	ow.wg.Wait()
	return ow.results
}

// WaitWithTimeout waits for group like Wait, but gives up after timeout. The boolean is false if
// the timeout elapsed first, in which case the results must not be used; the group keeps
// running in the background.
func WaitWithTimeout[T any, U any](group WorkGroup[T, U], timeout time.Duration) ([]U, bool) {
	done := make(chan []U, 1)
	go func() {
		done <- group.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case results := <-done:
		return results, true
	case <-timer.C:
		return nil, false
	}
}
