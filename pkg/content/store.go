// Package content defines blob storage for uploaded file payloads.
//
// A content store holds only raw bytes. Which version a blob belongs to,
// who uploaded it, and its integrity hash live in the metadata layer;
// the two are tied together by an opaque content ID the store assigns
// on write.
package content

import (
	"context"
	"io"
)

// Store provides blob storage for file payloads.
//
// Implementations must be safe for concurrent use. Blobs are immutable:
// a write assigns a fresh ID and the bytes under that ID never change,
// so version history stays intact no matter how many uploads a file
// name receives.
type Store interface {
	// Write streams r into a new blob and returns its assigned ID and
	// the number of bytes stored. A failed write leaves no partial blob
	// behind.
	Write(ctx context.Context, r io.Reader) (id string, size int64, err error)

	// Read returns a reader over the blob. The caller closes it.
	// Returns ErrContentNotFound if no blob has this ID.
	Read(ctx context.Context, id string) (io.ReadCloser, error)

	// Size returns the blob size in bytes without reading the data.
	// Returns ErrContentNotFound if no blob has this ID.
	Size(ctx context.Context, id string) (int64, error)

	// Exists reports whether a blob with this ID is stored. A missing
	// blob is (false, nil), not an error.
	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes the blob. Deleting a missing blob is a no-op.
	Delete(ctx context.Context, id string) error

	// HealthCheck verifies the backing storage is reachable and writable.
	HealthCheck(ctx context.Context) error
}
