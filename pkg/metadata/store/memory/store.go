// Package memory implements a volatile metadata store for tests and
// ephemeral runs. It honors the same serialization and snapshot-isolation
// contract as the durable backends, and supports injecting commit failures
// so rollback behavior is testable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// Store is an in-memory metadata.Store.
type Store struct {
	mu    sync.RWMutex
	files []*metadata.FileRecord
	index map[string]int
	locks map[string]metadata.LockEntry

	// failCommit, when set, is consulted before every mutation commits.
	// A non-nil return aborts the mutation with ErrStorageFailure, leaving
	// state untouched. Used by tests to simulate durable-write failures.
	failCommit func() error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		index: make(map[string]int),
		locks: make(map[string]metadata.LockEntry),
	}
}

// FailCommits makes every subsequent mutation fail with ErrStorageFailure
// wrapping cause until RestoreCommits is called.
func (s *Store) FailCommits(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = func() error { return cause }
}

// RestoreCommits re-enables mutations after FailCommits.
func (s *Store) RestoreCommits() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = nil
}

// checkCommit is called with s.mu held for writing.
func (s *Store) checkCommit() error {
	if s.failCommit == nil {
		return nil
	}
	if err := s.failCommit(); err != nil {
		return metadata.NewStorageFailureError(err)
	}
	return nil
}

func cloneRecord(f *metadata.FileRecord) *metadata.FileRecord {
	copied := *f
	copied.Versions = make([]metadata.VersionRecord, len(f.Versions))
	copy(copied.Versions, f.Versions)
	return &copied
}

// GetFile returns a snapshot of the record for name.
func (s *Store) GetFile(ctx context.Context, name string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[name]
	if !ok {
		return nil, metadata.NewNotFoundError(name)
	}
	return cloneRecord(s.files[i]), nil
}

// ListFiles returns an insertion-ordered snapshot of all records.
func (s *Store) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*metadata.FileRecord, len(s.files))
	for i, f := range s.files {
		records[i] = cloneRecord(f)
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

	if err := s.checkCommit(); err != nil {
		return nil, err
	}

	i, ok := s.index[name]
	if !ok {
		createdAt := draft.UploadedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		s.files = append(s.files, &metadata.FileRecord{
			Name:        name,
			CreatedAt:   createdAt,
			NextVersion: 1,
		})
		i = len(s.files) - 1
		s.index[name] = i
	}

	record := s.files[i]
	version := metadata.VersionRecord{
		Version:     record.NextVersion,
		StoragePath: draft.StoragePath,
		ContentHash: draft.ContentHash,
		UploadedBy:  draft.UploadedBy,
		UploadedAt:  draft.UploadedAt,
	}
	record.Versions = append(record.Versions, version)
	record.NextVersion++

	return &version, nil
}

// GetLock returns the lock entry for name, or nil if unlocked.
func (s *Store) GetLock(ctx context.Context, name string) (*metadata.LockEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.locks[name]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// SetLock creates or overwrites the lock entry for name.
func (s *Store) SetLock(ctx context.Context, name string, entry metadata.LockEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCommit(); err != nil {
		return err
	}
	s.locks[name] = entry
	return nil
}

// ClearLock removes the lock entry for name. No-op if unlocked.
func (s *Store) ClearLock(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locks[name]; !ok {
		return nil
	}
	if err := s.checkCommit(); err != nil {
		return err
	}
	delete(s.locks, name)
	return nil
}

// ListLocks returns all active locks ordered by file name.
func (s *Store) ListLocks(ctx context.Context) ([]metadata.LockInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]metadata.LockInfo, 0, len(s.locks))
	for name, entry := range s.locks {
		infos = append(infos, metadata.LockInfo{
			Name:       name,
			Holder:     entry.Holder,
			AcquiredAt: entry.AcquiredAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
