package allocator

import (
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// StoreReader is the read-only view of an EntryStore. It is what an Allocator hands out, so
// entries can only be created by an allocation.
type StoreReader[T any] interface {
	// Get returns the entry for key, if one has been created.
	Get(key string) (*Entry[T], bool)

	// Len returns the number of keys in the store.
	Len() int

	// Keys returns all keys in ascending order.
	Keys() []string

	// Each calls f for every entry in ascending key order until f returns false.
	Each(f func(string, *Entry[T]) bool)

	// Created returns the number of entries the store has constructed.
	Created() int64
}

// storeView hides the mutating methods of an EntryStore, including from type assertions.
type storeView[T any] struct {
	store *EntryStore[T]
}

func (v storeView[T]) Get(key string) (*Entry[T], bool) {
	return v.store.Get(key)
}

func (v storeView[T]) Len() int {
	return v.store.Len()
}

func (v storeView[T]) Keys() []string {
	return v.store.Keys()
}

func (v storeView[T]) Each(f func(string, *Entry[T]) bool) {
	v.store.Each(f)
}

func (v storeView[T]) Created() int64 {
	return v.store.Created()
}

var _ StoreReader[struct{}] = (*EntryStore[struct{}])(nil)

// EntryStore maps keys to their Entry. Entries are created at most once per key, are never
// replaced and are never removed, so an Entry returned by Get stays valid for the lifetime of
// the store.
type EntryStore[T any] struct {
	lock    sync.RWMutex
	entries map[string]*Entry[T]
	created atomic.Int64
}

// NewEntryStore creates an empty EntryStore.
func NewEntryStore[T any]() *EntryStore[T] {
	return &EntryStore[T]{
		entries: make(map[string]*Entry[T]),
	}
}

// EnsureInitialized creates the entry for key if it does not exist yet. It returns true if this
// call created the entry and false if it already existed.
func (s *EntryStore[T]) EnsureInitialized(key string) bool {
	_, created := s.loadOrCreate(key)
	return created
}

// loadOrCreate uses a read-locked fast path for existing keys. The entry is fully built before
// it is published under the write lock, so readers see either no entry or a complete one.
func (s *EntryStore[T]) loadOrCreate(key string) (*Entry[T], bool) {
	s.lock.RLock()
	entry, ok := s.entries[key]
	s.lock.RUnlock()
	if ok {
		return entry, false
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	// another caller may have won between the two locks
	if entry, ok = s.entries[key]; ok {
		return entry, false
	}

	entry = newEntry[T](key)
	s.entries[key] = entry
	s.created.Add(1)
	return entry, true
}

// Get returns the entry for key, if one has been created.
func (s *EntryStore[T]) Get(key string) (*Entry[T], bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	entry, ok := s.entries[key]
	return entry, ok
}

// Len returns the number of keys in the store.
func (s *EntryStore[T]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.entries)
}

// Created returns the number of entries the store has constructed. Because entries are never
// removed, this always equals Len(); it exists so callers can verify exactly-once creation
// independently of the map.
func (s *EntryStore[T]) Created() int64 {
	return s.created.Load()
}

// Keys returns all keys in ascending order.
func (s *EntryStore[T]) Keys() []string {
	s.lock.RLock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.lock.RUnlock()

	slices.Sort(keys)
	return keys
}

// Each calls f for every entry in ascending key order until f returns false. The store is not
// locked while f runs, so f may call back into the store.
func (s *EntryStore[T]) Each(f func(string, *Entry[T]) bool) {
	for _, key := range s.Keys() {
		entry, _ := s.Get(key)
		if !f(key, entry) {
			return
		}
	}
}
