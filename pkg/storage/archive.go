package storage

// ArchiveStorage persists the encoded entries of the service, one value per key.
type ArchiveStorage interface {
	// StorageType returns a string identifier for the type of storage used by the implementation.
	StorageType() StorageType

	// Put stores data for key, replacing any existing value.
	Put(key string, data []byte) error

	// Get returns the value for key. The bool result is false if the key does not exist.
	Get(key string) ([]byte, bool, error)

	// Each iterates through all key/values in key order and calls the handler func. If a
	// handler returns an error, the iteration stops and the error is returned.
	Each(handler func(string, []byte) error) error

	// Close closes the backing storage.
	Close() error
}

// StorageType is a string identifier for the type of storage used by an ArchiveStorage
// implementation.
type StorageType string

const (
	StorageTypeBolt   StorageType = "bolt"
	StorageTypeMemory StorageType = "memory"
)
