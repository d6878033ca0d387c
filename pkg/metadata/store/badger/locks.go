package badger

import (
	"context"
	"sort"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// GetLock returns the lock entry for name, or nil if unlocked.
func (s *Store) GetLock(ctx context.Context, name string) (*metadata.LockEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *metadata.LockEntry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyLock(name))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = decodeLock(val)
			return err
		})
	})
	if err != nil {
		return nil, metadata.NewStorageFailureError(err)
	}
	return entry, nil
}

// SetLock creates or overwrites the lock entry for name.
func (s *Store) SetLock(ctx context.Context, name string, entry metadata.LockEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		data, err := encodeLock(&entry)
		if err != nil {
			return err
		}
		return txn.Set(keyLock(name), data)
	})
	if err != nil {
		return metadata.NewStorageFailureError(err)
	}
	return nil
}

// ClearLock removes the lock entry for name. No-op if unlocked.
func (s *Store) ClearLock(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyLock(name))
	})
	if err != nil {
		return metadata.NewStorageFailureError(err)
	}
	return nil
}

// ListLocks returns all active locks ordered by file name.
func (s *Store) ListLocks(ctx context.Context) ([]metadata.LockInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []metadata.LockInfo
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLock)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), prefixLock)
			err := item.Value(func(val []byte) error {
				entry, err := decodeLock(val)
				if err != nil {
					return err
				}
				infos = append(infos, metadata.LockInfo{
					Name:       name,
					Holder:     entry.Holder,
					AcquiredAt: entry.AcquiredAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, metadata.NewStorageFailureError(err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
