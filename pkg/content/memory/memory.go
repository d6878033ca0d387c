// Package memory implements an in-memory content store for tests and
// ephemeral deployments.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/caskfs/caskfs/pkg/content"
)

// Store keeps blobs in a map. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// failWrites, when set, makes Write fail with this error. Test hook
	// for exercising storage failure paths.
	failWrites error
}

// New creates an empty in-memory content store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// FailWrites makes subsequent writes fail with cause until RestoreWrites.
func (s *Store) FailWrites(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = cause
}

// RestoreWrites clears a FailWrites condition.
func (s *Store) RestoreWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = nil
}

// Write buffers r into a new blob under a fresh UUID.
func (s *Store) Write(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	size, err := io.Copy(&buf, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites != nil {
		return "", 0, s.failWrites
	}

	id := uuid.NewString()
	s.blobs[id] = buf.Bytes()
	return id, size, nil
}

// Read returns a reader over a copy of the blob.
func (s *Store) Read(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Size returns the blob length.
func (s *Store) Size(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[id]
	if !ok {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return int64(len(data)), nil
}

// Exists reports whether the blob is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[id]
	return ok, nil
}

// Delete removes the blob. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, id)
	return nil
}

// Corrupt overwrites a stored blob in place. Test helper for exercising
// integrity verification; the real Store never mutates blobs.
func (s *Store) Corrupt(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; ok {
		s.blobs[id] = append([]byte(nil), data...)
	}
}

// BlobCount returns the number of stored blobs. Test helper.
func (s *Store) BlobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// HealthCheck always succeeds for the in-memory store.
func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}
