package storage

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MemoryArchive is a map implementation of ArchiveStorage, used when the on-disk archive is
// disabled and in tests.
type MemoryArchive struct {
	lock  sync.RWMutex
	store map[string][]byte
}

// NewMemoryArchive creates a new map backed ArchiveStorage implementation
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		store: make(map[string][]byte),
	}
}

// StorageType returns StorageTypeMemory
func (ma *MemoryArchive) StorageType() StorageType {
	return StorageTypeMemory
}

// Put adds the data to storage, replacing any existing value.
func (ma *MemoryArchive) Put(key string, data []byte) error {
	ma.lock.Lock()
	defer ma.lock.Unlock()

	ma.store[key] = clone(data)
	return nil
}

// Get returns a copy of the value stored for key.
func (ma *MemoryArchive) Get(key string) ([]byte, bool, error) {
	ma.lock.RLock()
	defer ma.lock.RUnlock()

	v, ok := ma.store[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Each iterates through all key/values in key order and calls the handler func. If a handler
// returns an error, the iteration stops.
func (ma *MemoryArchive) Each(handler func(string, []byte) error) error {
	ma.lock.RLock()
	keys := maps.Keys(ma.store)
	ma.lock.RUnlock()

	slices.Sort(keys)
	for _, k := range keys {
		value, ok, _ := ma.Get(k)
		if !ok {
			continue
		}
		if err := handler(k, value); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for the memory archive
func (ma *MemoryArchive) Close() error {
	return nil
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
