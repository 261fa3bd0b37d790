package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/util/retry"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	openAttempts = 5
	openDelay    = 250 * time.Millisecond
)

// BoltArchive is a boltdb implementation of ArchiveStorage
type BoltArchive struct {
	bucket []byte
	db     *bolt.DB
}

// OpenBoltDB opens (or creates) the boltdb file at path. The file lock is requested with the
// given timeout, and the open is retried a few times while another process holds it.
func OpenBoltDB(ctx context.Context, path string, timeout time.Duration) (*bolt.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Wrapf(err, "creating archive directory %s", dir)
		}
	}

	db, err := retry.Retry(ctx, func() (*bolt.DB, error) {
		db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
		if err != nil {
			log.Warnf("Failed to open archive %s: %s", path, err)
			return nil, err
		}
		return db, nil
	}, openAttempts, openDelay)

	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %s", path)
	}
	return db, nil
}

// NewBoltArchive creates a new boltdb backed ArchiveStorage implementation using bucket.
func NewBoltArchive(bucket string, db *bolt.DB) (*BoltArchive, error) {
	bucketKey := []byte(bucket)

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKey)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating bucket %s", bucket)
	}

	return &BoltArchive{
		bucket: bucketKey,
		db:     db,
	}, nil
}

// StorageType returns StorageTypeBolt
func (ba *BoltArchive) StorageType() StorageType {
	return StorageTypeBolt
}

// Put adds the data to storage, replacing any existing value.
func (ba *BoltArchive) Put(key string, data []byte) error {
	return ba.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ba.bucket).Put([]byte(key), data)
	})
}

// Get returns a copy of the value stored for key.
func (ba *BoltArchive) Get(key string) ([]byte, bool, error) {
	var value []byte
	var ok bool

	err := ba.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(ba.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}

		// bolt values are only valid for the life of the transaction
		value = make([]byte, len(v))
		copy(value, v)
		ok = true
		return nil
	})

	return value, ok, err
}

// Each iterates through all key/values for the storage and calls the handler func. If a handler
// returns an error, the iteration stops.
func (ba *BoltArchive) Each(handler func(string, []byte) error) error {
	return ba.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ba.bucket)

		return bucket.ForEach(func(k, v []byte) error {
			key := make([]byte, len(k))
			value := make([]byte, len(v))

			copy(key, k)
			copy(value, v)

			return handler(string(key), value)
		})
	})
}

// Close closes the backing storage
func (ba *BoltArchive) Close() error {
	return ba.db.Close()
}
