package poclog

import (
	"github.com/detsql/detsql/pkg/storage"
	"github.com/detsql/detsql/pkg/util/json"
	"github.com/pkg/errors"
)

// LoadSnapshot reads the archived Snapshot of key. The bool result is false if key was never
// archived.
func LoadSnapshot(archive storage.ArchiveStorage, key string) (*Snapshot, bool, error) {
	data, ok, err := archive.Get(key)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading archived entry %q", key)
	}
	if !ok {
		return nil, false, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false, errors.Wrapf(err, "decoding archived entry %q", key)
	}
	return &snapshot, true, nil
}

// ArchivedKeys returns the keys held by archive in key order, including keys archived by an
// earlier process that this one has not seen.
func ArchivedKeys(archive storage.ArchiveStorage) ([]string, error) {
	var keys []string
	err := archive.Each(func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing archived entries")
	}
	return keys, nil
}
