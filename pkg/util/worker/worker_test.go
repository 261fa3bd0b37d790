package worker

import (
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

type void struct{}

var none = void{}

func TestWorkerPoolShutdown(t *testing.T) {
	const workers = 3

	routines := runtime.NumGoroutine()
	t.Logf("Go Routines Before: %d\n", routines)

	wp := NewWorkerPool(workers, func(any) any { return nil })
	t.Logf("Go Routines After: %d\n", runtime.NumGoroutine())

	wp.Shutdown()
	time.Sleep(time.Second)
	if runtime.NumGoroutine() != routines {
		t.Errorf("Go routines after shutdown: %d != Go routines at start of test: %d\n", runtime.NumGoroutine(), routines)
	}

	if err := wp.Run(1, nil); err != ErrPoolShutdown {
		t.Errorf("Expected ErrPoolShutdown after shutdown, got %v", err)
	}
}

func TestWorkerPoolExactWorkers(t *testing.T) {
	const workers = 3

	var running, peak atomic.Int32
	work := func(i int) void {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
		running.Add(-1)
		return none
	}

	pool := NewWorkerPool(workers, work)
	defer pool.Shutdown()

	group := NewOrderedGroup(pool, workers*3)
	for i := 0; i < workers*3; i++ {
		if err := group.Push(i); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := WaitWithTimeout(group, 5*time.Second); !ok {
		t.Fatalf("Failed to Complete Run for %d jobs in 5s\n", workers*3)
	}

	if peak.Load() > workers {
		t.Errorf("Expected at most %d concurrent workers, observed %d", workers, peak.Load())
	}
}

func TestOrderedWorkGroup(t *testing.T) {
	const workers = 5
	const tasks = 10

	work := func(i int) int {
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
		return i
	}

	pool := NewWorkerPool(workers, work)
	defer pool.Shutdown()

	ordered := NewOrderedGroup(pool, tasks)
	input := make([]int, tasks)

	// more tasks than workers, so some inputs wait in the queue
	for i := 0; i < tasks; i++ {
		input[i] = i + 1
		if err := ordered.Push(input[i]); err != nil {
			t.Fatal(err)
		}
	}

	if err := ordered.Push(tasks + 1); err != ErrGroupFull {
		t.Errorf("Expected ErrGroupFull, got %v", err)
	}

	results := ordered.Wait()
	for i := 0; i < tasks; i++ {
		if results[i] != input[i] {
			t.Errorf("Expected Results[%d](%d) to equal Input[%d](%d)\n", i, results[i], i, input[i])
		}
	}
}

func TestWaitWithTimeoutExpires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	pool := NewWorkerPool(1, func(i int) int {
		<-release
		return i
	})
	defer pool.Shutdown()

	group := NewOrderedGroup(pool, 1)
	if err := group.Push(1); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if _, ok := WaitWithTimeout(group, 100*time.Millisecond); ok {
		t.Fatalf("Expected timeout while the only task is blocked")
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitWithTimeout took %s, expected roughly 100ms", elapsed)
	}
}
