// Package badger implements the metadata store on BadgerDB.
//
// Storage model:
//   - file:{name}  -> JSON(storedFile) — version history plus insertion seq
//   - lock:{name}  -> JSON(metadata.LockEntry)
//   - fileseq      -> big-endian uint64 insertion counter
//
// Badger transactions make each operation atomic; a store-wide mutex
// serializes mutations so concurrent AppendVersion calls never race on
// version or sequence assignment.
package badger

import (
	"context"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/caskfs/caskfs/internal/logger"
)

// Key prefixes for metadata storage.
const (
	prefixFile = "file:"
	prefixLock = "lock:"
	keySeq     = "fileseq"
)

// Store is a metadata.Store backed by BadgerDB.
type Store struct {
	db *badgerdb.DB
	mu sync.Mutex // serializes mutations store-wide
}

// Options configures the badger store.
type Options struct {
	// Dir is the database directory.
	Dir string

	// InMemory runs badger without touching disk. Test use only.
	InMemory bool
}

// New opens (or creates) a badger-backed store.
func New(opts Options) (*Store, error) {
	badgerOpts := badgerdb.DefaultOptions(opts.Dir)
	badgerOpts.InMemory = opts.InMemory
	if opts.InMemory {
		badgerOpts.Dir = ""
		badgerOpts.ValueDir = ""
	}
	// Badger logs through its own interface; route it to our logger at
	// debug level to keep startup output quiet.
	badgerOpts.Logger = badgerLogger{}

	db, err := badgerdb.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func keyFile(name string) []byte { return []byte(prefixFile + name) }
func keyLock(name string) []byte { return []byte(prefixLock + name) }

// HealthCheck verifies the database accepts reads.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySeq))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger adapts badger's logger interface onto internal/logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logger.Error(fmt.Sprintf(format, args...), logger.KeyBackend, "badger")
}

func (badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(fmt.Sprintf(format, args...), logger.KeyBackend, "badger")
}

func (badgerLogger) Infof(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), logger.KeyBackend, "badger")
}

func (badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), logger.KeyBackend, "badger")
}
