// Package file implements the metadata store as in-memory authoritative
// state backed by an atomic JSON snapshot on disk.
//
// Every mutation is staged on a copy of the state, written durably
// (write-to-temp, fsync, rename), and only then swapped in as the visible
// state. A failed durable write therefore leaves the visible state at the
// last committed snapshot. A single mutex serializes all mutations
// store-wide; readers share an RWMutex and receive deep copies.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// snapshot is the on-disk layout: two durable records keyed by file name,
// written as a single document so a snapshot is always internally consistent.
type snapshot struct {
	// Files holds version histories in insertion order.
	Files []*metadata.FileRecord `json:"files"`

	// Locks is the lock table keyed by file name.
	Locks map[string]metadata.LockEntry `json:"locks"`
}

// state is the in-memory authoritative form of a snapshot, with an index
// for name lookups.
type state struct {
	files []*metadata.FileRecord
	index map[string]int // name -> position in files
	locks map[string]metadata.LockEntry
}

func newState() *state {
	return &state{
		index: make(map[string]int),
		locks: make(map[string]metadata.LockEntry),
	}
}

// clone deep-copies the state so a mutation can be staged without touching
// the visible state.
func (s *state) clone() *state {
	next := &state{
		files: make([]*metadata.FileRecord, len(s.files)),
		index: make(map[string]int, len(s.index)),
		locks: make(map[string]metadata.LockEntry, len(s.locks)),
	}
	for i, f := range s.files {
		next.files[i] = cloneRecord(f)
	}
	for name, i := range s.index {
		next.index[name] = i
	}
	for name, entry := range s.locks {
		next.locks[name] = entry
	}
	return next
}

func cloneRecord(f *metadata.FileRecord) *metadata.FileRecord {
	copied := *f
	copied.Versions = make([]metadata.VersionRecord, len(f.Versions))
	copy(copied.Versions, f.Versions)
	return &copied
}

// Store is a metadata.Store backed by a JSON snapshot file.
type Store struct {
	path string

	mu    sync.RWMutex
	state *state

	// persist writes a snapshot durably. Overridable in tests to inject
	// storage failures.
	persist func(*snapshot) error
}

// New creates a file-backed store at path, loading the existing snapshot if
// one is present. The parent directory is created as needed.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, metadata.NewInvalidArgumentError("snapshot path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	s := &Store{
		path:  path,
		state: newState(),
	}
	s.persist = s.writeSnapshot

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the snapshot from disk into memory. A missing file means a
// fresh store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode metadata snapshot %q: %w", s.path, err)
	}

	st := newState()
	st.files = snap.Files
	for i, f := range snap.Files {
		st.index[f.Name] = i
	}
	if snap.Locks != nil {
		st.locks = snap.Locks
	}
	s.state = st
	return nil
}

// writeSnapshot persists a snapshot with write-to-temp-then-rename so a
// crash mid-write never corrupts the committed snapshot.
func (s *Store) writeSnapshot(snap *snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// commit persists the staged state and, only on success, makes it visible.
// Called with s.mu held for writing.
func (s *Store) commit(staged *state) error {
	snap := &snapshot{
		Files: staged.files,
		Locks: staged.locks,
	}
	if err := s.persist(snap); err != nil {
		return metadata.NewStorageFailureError(err)
	}
	s.state = staged
	return nil
}

// GetFile returns a snapshot of the record for name.
func (s *Store) GetFile(ctx context.Context, name string) (*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.state.index[name]
	if !ok {
		return nil, metadata.NewNotFoundError(name)
	}
	return cloneRecord(s.state.files[i]), nil
}

// ListFiles returns an insertion-ordered snapshot of all records.
func (s *Store) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*metadata.FileRecord, len(s.state.files))
	for i, f := range s.state.files {
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

	staged := s.state.clone()

	i, ok := staged.index[name]
	if !ok {
		createdAt := draft.UploadedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		staged.files = append(staged.files, &metadata.FileRecord{
			Name:        name,
			CreatedAt:   createdAt,
			NextVersion: 1,
		})
		i = len(staged.files) - 1
		staged.index[name] = i
	}

	record := staged.files[i]
	version := metadata.VersionRecord{
		Version:     record.NextVersion,
		StoragePath: draft.StoragePath,
		ContentHash: draft.ContentHash,
		UploadedBy:  draft.UploadedBy,
		UploadedAt:  draft.UploadedAt,
	}
	record.Versions = append(record.Versions, version)
	record.NextVersion++

	if err := s.commit(staged); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetLock returns the lock entry for name, or nil if unlocked.
func (s *Store) GetLock(ctx context.Context, name string) (*metadata.LockEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.state.locks[name]
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

	staged := s.state.clone()
	staged.locks[name] = entry
	return s.commit(staged)
}

// ClearLock removes the lock entry for name. No-op if unlocked.
func (s *Store) ClearLock(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.locks[name]; !ok {
		return nil
	}

	staged := s.state.clone()
	delete(staged.locks, name)
	return s.commit(staged)
}

// ListLocks returns all active locks ordered by file name.
func (s *Store) ListLocks(ctx context.Context) ([]metadata.LockInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]metadata.LockInfo, 0, len(s.state.locks))
	for name, entry := range s.state.locks {
		infos = append(infos, metadata.LockInfo{
			Name:       name,
			Holder:     entry.Holder,
			AcquiredAt: entry.AcquiredAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// HealthCheck verifies the snapshot directory is writable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	probe, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("metadata directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Close is a no-op for the file store; state is already durable.
func (s *Store) Close() error {
	return nil
}
