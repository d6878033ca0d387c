// Package metadata defines the durable metadata model for CaskFS: file
// version histories and the per-file lock table. The Store interface is the
// single source of truth for this state; everything above it (lock manager,
// version coordinator, API handlers) composes Store operations and never
// keeps independent copies that could diverge.
package metadata

import "time"

// VersionRecord is an immutable, numbered snapshot of a file's content.
//
// A record is created exactly once when an upload completes and is never
// mutated or removed afterwards. StoragePath is an opaque reference into the
// blob store; the metadata layer never inspects blob bytes itself.
type VersionRecord struct {
	// Version is the 1-based version number, unique and contiguous within
	// its FileRecord.
	Version uint64 `json:"version"`

	// StoragePath is the opaque blob store reference for this version's bytes.
	StoragePath string `json:"storage_path"`

	// ContentHash is the hex-encoded SHA-256 digest of the blob at upload time.
	ContentHash string `json:"content_hash"`

	// UploadedBy is the principal that performed the upload.
	UploadedBy string `json:"uploaded_by"`

	// UploadedAt is the server-side upload completion time.
	UploadedAt time.Time `json:"uploaded_at"`
}

// VersionDraft carries the fields of a VersionRecord that the caller knows
// before the store assigns the version number.
type VersionDraft struct {
	StoragePath string
	ContentHash string
	UploadedBy  string
	UploadedAt  time.Time
}

// FileRecord is the full version history of one logical file name.
//
// NextVersion is an explicit counter persisted alongside the version list so
// that version assignment never depends on re-deriving state from the slice
// length. Invariant: Versions[i].Version == i+1 and NextVersion ==
// len(Versions)+1.
type FileRecord struct {
	// Name is the unique logical file name.
	Name string `json:"name"`

	// CreatedAt is the time of the first upload for this name.
	CreatedAt time.Time `json:"created_at"`

	// NextVersion is the version number the next successful upload receives.
	NextVersion uint64 `json:"next_version"`

	// Versions is the ordered, gap-free version history, oldest first.
	Versions []VersionRecord `json:"versions"`
}

// CurrentVersion returns the latest version record, or nil for a record with
// no versions yet (which a well-formed store never returns).
func (f *FileRecord) CurrentVersion() *VersionRecord {
	if len(f.Versions) == 0 {
		return nil
	}
	return &f.Versions[len(f.Versions)-1]
}

// Version returns the record for the given version number, or nil if the
// version does not exist. Versions are contiguous from 1, so this is an
// index lookup guarded by a bounds check.
func (f *FileRecord) Version(n uint64) *VersionRecord {
	if n == 0 || n > uint64(len(f.Versions)) {
		return nil
	}
	return &f.Versions[n-1]
}

// LockEntry marks a file name as exclusively held by one principal.
// At most one LockEntry exists per file name at any instant.
type LockEntry struct {
	// Holder is the principal granted exclusive write access.
	Holder string `json:"holder"`

	// AcquiredAt is the time the lock was granted.
	AcquiredAt time.Time `json:"acquired_at"`
}

// LockInfo pairs a lock entry with the file name it guards, for listings.
type LockInfo struct {
	Name       string    `json:"name"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}
