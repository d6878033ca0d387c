package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Digest computes a SHA-256 hash over streamed content. It is an
// io.Writer, so upload handlers can tee the request body through it
// while writing to a Store and obtain the hex digest without buffering
// the payload.
type Digest struct {
	h hash.Hash
}

// NewDigest returns an empty SHA-256 digest.
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum returns the lowercase hex encoding of the hash so far.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// HashStored reads the blob back from store and returns its SHA-256 hex
// digest. Used for integrity verification against the recorded hash.
func HashStored(ctx context.Context, store Store, id string) (string, error) {
	reader, err := store.Read(ctx, id)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	d := NewDigest()
	if _, err := io.Copy(d, reader); err != nil {
		return "", fmt.Errorf("failed to hash content %s: %w", id, err)
	}
	return d.Sum(), nil
}
