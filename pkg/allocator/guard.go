package allocator

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Guard is the exclusive access guard shared by the Counter and the EntryStore. Waiters are
// admitted in FIFO order, and a waiter whose context is done is removed from the wait set
// without acquiring the guard.
type Guard struct {
	sem *semaphore.Weighted
}

// NewGuard creates a new, unlocked Guard.
func NewGuard() *Guard {
	return &Guard{
		sem: semaphore.NewWeighted(1),
	}
}

// Lock blocks until the guard is acquired or ctx is done. On failure ctx.Err() is returned and
// the guard is left exactly as it was.
func (g *Guard) Lock(ctx context.Context) error {
	// a context that is already done must never win the guard, even when it is free
	if err := ctx.Err(); err != nil {
		return err
	}

	return g.sem.Acquire(ctx, 1)
}

// TryLock acquires the guard without blocking. It returns false if the guard is held.
func (g *Guard) TryLock() bool {
	return g.sem.TryAcquire(1)
}

// Unlock releases the guard. It panics if the guard is not held.
func (g *Guard) Unlock() {
	g.sem.Release(1)
}
