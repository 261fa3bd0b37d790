package allocator

import (
	"sync"
	"time"
)

// Entry is the ordered, append-only collection stored for a single key. All methods are safe
// for concurrent use.
type Entry[T any] struct {
	lock      sync.RWMutex
	key       string
	records   []T
	createdAt time.Time
}

func newEntry[T any](key string) *Entry[T] {
	return &Entry[T]{
		key:       key,
		records:   []T{},
		createdAt: time.Now().UTC(),
	}
}

// Key returns the key the entry was created for.
func (e *Entry[T]) Key() string {
	return e.key
}

// CreatedAt returns the time the entry was constructed.
func (e *Entry[T]) CreatedAt() time.Time {
	return e.createdAt
}

// Append adds a record to the end of the collection and returns the new length.
func (e *Entry[T]) Append(record T) int {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.records = append(e.records, record)
	return len(e.records)
}

// Records returns a copy of the records in insertion order.
func (e *Entry[T]) Records() []T {
	e.lock.RLock()
	defer e.lock.RUnlock()

	records := make([]T, len(e.records))
	copy(records, e.records)
	return records
}

// Len returns the number of records in the collection.
func (e *Entry[T]) Len() int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return len(e.records)
}
