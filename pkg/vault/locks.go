package vault

import (
	"context"

	"github.com/caskfs/caskfs/pkg/metadata"
)

// AcquireLock takes an explicit lock on name for principal, reserving
// the file ahead of an upload. Semantics match the implicit lock taken
// by Submit: fail-fast with the current holder, idempotent re-entry.
func (c *Coordinator) AcquireLock(ctx context.Context, name string, principal Principal) error {
	err := c.locks.Acquire(ctx, name, principal.Name)
	if metadata.IsLocked(err) {
		c.metrics.RecordLockConflict()
	}
	return err
}

// ReleaseLock drops principal's lock on name. Only the holder may
// release; anyone else gets the conflict error with the actual holder.
// Releasing an unheld lock succeeds.
func (c *Coordinator) ReleaseLock(ctx context.Context, name string, principal Principal) error {
	return c.locks.ReleaseHeld(ctx, name, principal.Name)
}

// ForceUnlock drops the lock on name regardless of holder. Requires the
// admin role.
func (c *Coordinator) ForceUnlock(ctx context.Context, name string, actor Principal) error {
	if !actor.Admin {
		return metadata.NewPrivilegeRequiredError("force unlock requires the admin role")
	}
	return c.locks.ForceRelease(ctx, name, actor.Name)
}

// GetLock returns the lock entry for name, or nil if unlocked.
func (c *Coordinator) GetLock(ctx context.Context, name string) (*metadata.LockEntry, error) {
	return c.locks.Holder(ctx, name)
}

// ListLocks returns all held locks ordered by file name.
func (c *Coordinator) ListLocks(ctx context.Context) ([]metadata.LockInfo, error) {
	return c.locks.List(ctx)
}
