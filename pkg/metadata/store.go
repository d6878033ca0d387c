package metadata

import "context"

// Store is the durable record of all known files, their version history,
// and active locks.
//
// Consistency contract:
//   - Every mutating operation's effect is durable before the call returns
//     success. A failed durable write surfaces as ErrStorageFailure and
//     leaves the externally visible state equal to the last committed
//     snapshot (no partial visibility).
//   - Mutating operations are serialized against each other store-wide, not
//     per file: AppendVersion must never assign a duplicate version number
//     even under concurrent callers, because the backing persistence is a
//     single durable unit.
//   - Read operations may run concurrently with each other but always
//     observe a consistent snapshot, never a partially written record.
//
// Thread safety: implementations must be safe for concurrent use from
// multiple goroutines.
type Store interface {
	// GetFile returns a snapshot of the record for name.
	// Returns ErrNotFound if the name is unknown.
	GetFile(ctx context.Context, name string) (*FileRecord, error)

	// ListFiles returns a stable, insertion-ordered snapshot of all records.
	ListFiles(ctx context.Context) ([]*FileRecord, error)

	// AppendVersion assigns the next version number for name (1 for an
	// unknown name, creating the record), appends the version atomically,
	// and returns the completed record.
	AppendVersion(ctx context.Context, name string, draft VersionDraft) (*VersionRecord, error)

	// GetLock returns the lock entry for name, or nil if the file is
	// unlocked. A nil entry with a nil error is the "unlocked" answer, not
	// a failure.
	GetLock(ctx context.Context, name string) (*LockEntry, error)

	// SetLock creates or overwrites the lock entry for name.
	SetLock(ctx context.Context, name string, entry LockEntry) error

	// ClearLock removes the lock entry for name. Clearing an unlocked name
	// is a no-op.
	ClearLock(ctx context.Context, name string) error

	// ListLocks returns all active lock entries, ordered by file name.
	ListLocks(ctx context.Context) ([]LockInfo, error)

	// HealthCheck verifies the backing persistence is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources. The store must not be used afterwards.
	Close() error
}
