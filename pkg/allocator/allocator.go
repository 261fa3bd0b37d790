package allocator

import (
	"context"
	"time"
)

// AllocateAndInit is the guarded critical section: it advances counter and makes sure store
// holds an entry for key, as one step with respect to every other caller sharing guard. It
// returns the allocated id.
//
// If ctx is done before the guard is acquired, a *CancelledError is returned and counter,
// store and guard are untouched. Once the guard is held the critical section always runs to
// completion. No retries are attempted.
//
// Callers must share one guard per counter/store pair. Production code should use an
// Allocator, which enforces that pairing; this form exists so the synchronization can be
// driven directly with injected state.
func AllocateAndInit[T any](ctx context.Context, guard *Guard, counter *Counter, store *EntryStore[T], key string) (int64, error) {
	id, _, err := allocateAndInit(ctx, guard, counter, store, key)
	return id, err
}

// allocateAndInit additionally reports whether the entry for key was created by this call. The
// flag is informative only and never drives control flow.
func allocateAndInit[T any](ctx context.Context, guard *Guard, counter *Counter, store *EntryStore[T], key string) (int64, bool, error) {
	if err := guard.Lock(ctx); err != nil {
		return 0, false, &CancelledError{Key: key, Err: err}
	}
	defer guard.Unlock()

	id := counter.Next()
	created := store.EnsureInitialized(key)

	return id, created, nil
}

// Allocation describes a single successful allocation.
type Allocation[T any] struct {
	ID      int64
	Key     string
	Entry   *Entry[T]
	Created bool
	Wait    time.Duration
}

// Allocator owns the single guard/counter/store triple of a service. It is constructed once and
// shared by every request handler.
type Allocator[T any] struct {
	guard   *Guard
	counter *Counter
	store   *EntryStore[T]
}

// New creates an Allocator whose first identifier is initial.
func New[T any](initial int64) *Allocator[T] {
	return &Allocator[T]{
		guard:   NewGuard(),
		counter: NewCounter(initial),
		store:   NewEntryStore[T](),
	}
}

// Allocate returns a fresh identifier and guarantees an entry exists for key.
func (a *Allocator[T]) Allocate(ctx context.Context, key string) (int64, error) {
	return AllocateAndInit(ctx, a.guard, a.counter, a.store, key)
}

// AllocateEntry is Allocate, additionally returning the entry for key.
func (a *Allocator[T]) AllocateEntry(ctx context.Context, key string) (int64, *Entry[T], error) {
	alloc, err := a.AllocateDetailed(ctx, key)
	if err != nil {
		return 0, nil, err
	}
	return alloc.ID, alloc.Entry, nil
}

// AllocateDetailed is Allocate, returning the entry for key, whether this call created it and
// how long the call spent in the guarded section including the wait for the guard.
func (a *Allocator[T]) AllocateDetailed(ctx context.Context, key string) (Allocation[T], error) {
	start := time.Now()
	id, created, err := allocateAndInit(ctx, a.guard, a.counter, a.store, key)
	wait := time.Since(start)
	if err != nil {
		return Allocation[T]{Key: key, Wait: wait}, err
	}

	// entries are never removed, so the lookup cannot miss after a successful allocation
	entry, _ := a.store.Get(key)
	return Allocation[T]{
		ID:      id,
		Key:     key,
		Entry:   entry,
		Created: created,
		Wait:    wait,
	}, nil
}

// NextID returns the identifier the next successful allocation will receive. It waits for the
// guard, so it can be cancelled the same way Allocate can.
func (a *Allocator[T]) NextID(ctx context.Context) (int64, error) {
	if err := a.guard.Lock(ctx); err != nil {
		return 0, err
	}
	defer a.guard.Unlock()

	return a.counter.Peek(), nil
}

// Store returns a read-only view of the entry store. Entries are created by Allocate only.
func (a *Allocator[T]) Store() StoreReader[T] {
	return storeView[T]{store: a.store}
}
