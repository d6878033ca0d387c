package badger

import (
	"context"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// GetFile returns a snapshot of the record for name.
func (s *Store) GetFile(ctx context.Context, name string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *metadata.FileRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyFile(name))
		if err == badgerdb.ErrKeyNotFound {
			return metadata.NewNotFoundError(name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stored, err := decodeFile(val)
			if err != nil {
				return err
			}
			record = &stored.Record
			return nil
		})
	})
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil, err
		}
		return nil, metadata.NewStorageFailureError(err)
	}
	return record, nil
}

// ListFiles returns all records in insertion order.
func (s *Store) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stored []*storedFile
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFile)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				f, err := decodeFile(val)
				if err != nil {
					return err
				}
				stored = append(stored, f)
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

	sort.Slice(stored, func(i, j int) bool { return stored[i].Seq < stored[j].Seq })

	records := make([]*metadata.FileRecord, len(stored))
	for i, f := range stored {
		records[i] = &f.Record
	}
	return records, nil
}

// AppendVersion assigns the next version number and appends atomically.
func (s *Store) AppendVersion(ctx context.Context, name string, draft metadata.VersionDraft) (*metadata.VersionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, metadata.NewInvalidArgumentError("file name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var version metadata.VersionRecord
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		var stored *storedFile

		item, err := txn.Get(keyFile(name))
		switch err {
		case nil:
			if err := item.Value(func(val []byte) error {
				stored, err = decodeFile(val)
				return err
			}); err != nil {
				return err
			}
		case badgerdb.ErrKeyNotFound:
			seq, err := s.nextSeq(txn)
			if err != nil {
				return err
			}
			createdAt := draft.UploadedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			stored = &storedFile{
				Seq: seq,
				Record: metadata.FileRecord{
					Name:        name,
					CreatedAt:   createdAt,
					NextVersion: 1,
				},
			}
		default:
			return err
		}

		version = metadata.VersionRecord{
			Version:     stored.Record.NextVersion,
			StoragePath: draft.StoragePath,
			ContentHash: draft.ContentHash,
			UploadedBy:  draft.UploadedBy,
			UploadedAt:  draft.UploadedAt,
		}
		stored.Record.Versions = append(stored.Record.Versions, version)
		stored.Record.NextVersion++

		data, err := encodeFile(stored)
		if err != nil {
			return err
		}
		return txn.Set(keyFile(name), data)
	})
	if err != nil {
		return nil, metadata.NewStorageFailureError(err)
	}
	return &version, nil
}

// nextSeq increments and returns the insertion counter within txn.
func (s *Store) nextSeq(txn *badgerdb.Txn) (uint64, error) {
	var seq uint64

	item, err := txn.Get([]byte(keySeq))
	switch err {
	case nil:
		if err := item.Value(func(val []byte) error {
			seq = decodeSeq(val)
			return nil
		}); err != nil {
			return 0, err
		}
	case badgerdb.ErrKeyNotFound:
		// first file
	default:
		return 0, err
	}

	seq++
	if err := txn.Set([]byte(keySeq), encodeSeq(seq)); err != nil {
		return 0, err
	}
	return seq, nil
}
