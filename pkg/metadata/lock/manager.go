// Package lock mediates exclusive write access to files by name.
//
// A lock is advisory and has no expiry: it is held until the holder
// releases it or an administrator forces release. Acquisition is
// fail-fast; a held lock is reported immediately with the current
// holder rather than waited on.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/metadata"
)

// Manager coordinates per-file locks on top of a metadata store. An
// internal mutex makes check-then-set sequences atomic across callers
// sharing this Manager.
type Manager struct {
	store metadata.Store
	mu    sync.Mutex

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewManager creates a lock manager over store.
func NewManager(store metadata.Store) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
	}
}

// Acquire takes the lock on name for principal. Re-acquiring a lock
// already held by the same principal succeeds without effect. If the
// lock is held by anyone else the call fails immediately with the
// current holder; it never blocks waiting for release.
func (m *Manager) Acquire(ctx context.Context, name, principal string) error {
	if name == "" {
		return metadata.NewInvalidArgumentError("file name is required")
	}
	if principal == "" {
		return metadata.NewInvalidArgumentError("lock holder is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.store.GetLock(ctx, name)
	if err != nil {
		return err
	}
	if entry != nil {
		if entry.Holder == principal {
			return nil
		}
		return metadata.NewFileLockedError(name, entry.Holder)
	}

	acquired := m.now()
	if err := m.store.SetLock(ctx, name, metadata.LockEntry{
		Holder:     principal,
		AcquiredAt: acquired,
	}); err != nil {
		return err
	}

	logger.Debug("lock acquired",
		logger.KeyFile, name,
		logger.KeyHolder, principal)
	return nil
}

// Release drops the lock on name. Releasing an unheld lock is a no-op.
func (m *Manager) Release(ctx context.Context, name string) error {
	if name == "" {
		return metadata.NewInvalidArgumentError("file name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ClearLock(ctx, name); err != nil {
		return err
	}

	logger.Debug("lock released", logger.KeyFile, name)
	return nil
}

// ReleaseHeld drops the lock on name if principal holds it. The holder
// check and the clear run under the manager mutex, so a release can
// never clear a lock acquired by someone else in between. Releasing an
// unheld lock is a no-op; a lock held by another principal yields the
// conflict error naming the actual holder.
func (m *Manager) ReleaseHeld(ctx context.Context, name, principal string) error {
	if name == "" {
		return metadata.NewInvalidArgumentError("file name is required")
	}
	if principal == "" {
		return metadata.NewInvalidArgumentError("lock holder is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.store.GetLock(ctx, name)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	if entry.Holder != principal {
		return metadata.NewFileLockedError(name, entry.Holder)
	}

	if err := m.store.ClearLock(ctx, name); err != nil {
		return err
	}

	logger.Debug("lock released",
		logger.KeyFile, name,
		logger.KeyHolder, principal)
	return nil
}

// ForceRelease drops the lock on name regardless of holder. The acting
// principal is recorded in the audit log; callers are responsible for
// verifying it carries the admin role.
func (m *Manager) ForceRelease(ctx context.Context, name, actingPrincipal string) error {
	if name == "" {
		return metadata.NewInvalidArgumentError("file name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.store.GetLock(ctx, name)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	if err := m.store.ClearLock(ctx, name); err != nil {
		return err
	}

	logger.Warn("lock force-released",
		logger.KeyFile, name,
		logger.KeyHolder, entry.Holder,
		logger.KeyPrincipal, actingPrincipal)
	return nil
}

// Holder returns the current lock entry for name, or nil if unlocked.
func (m *Manager) Holder(ctx context.Context, name string) (*metadata.LockEntry, error) {
	return m.store.GetLock(ctx, name)
}

// List returns all active locks ordered by file name.
func (m *Manager) List(ctx context.Context) ([]metadata.LockInfo, error) {
	return m.store.ListLocks(ctx)
}
