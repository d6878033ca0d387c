package vault

import (
	"context"

	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/content"
	"github.com/caskfs/caskfs/pkg/metadata"
)

// VerificationResult reports an integrity check of one stored version.
//
// Valid is a fact, not an error: a mismatch between the recorded and
// computed hashes yields Valid=false with a nil error from Verify.
type VerificationResult struct {
	Name         string `json:"name"`
	Version      uint64 `json:"version"`
	RecordedHash string `json:"recorded_hash"`
	ComputedHash string `json:"computed_hash"`
	Valid        bool   `json:"valid"`
}

// Verify re-hashes the stored payload of the given version and compares
// it against the hash recorded at upload time. Version 0 means the
// latest version.
//
// Errors are reserved for not being able to answer: unknown file or
// version, or the blob being unreadable.
func (c *Coordinator) Verify(ctx context.Context, name string, version uint64) (*VerificationResult, error) {
	record, err := c.resolve(ctx, name, version)
	if err != nil {
		return nil, err
	}

	hashStart := c.now()
	computed, err := content.HashStored(ctx, c.blobs, record.StoragePath)
	if err != nil {
		return nil, metadata.NewHashFailureError(name, err)
	}
	c.metrics.ObserveHashDuration(c.now().Sub(hashStart))

	result := &VerificationResult{
		Name:         name,
		Version:      record.Version,
		RecordedHash: record.ContentHash,
		ComputedHash: computed,
		Valid:        computed == record.ContentHash,
	}
	c.metrics.RecordVerification(result.Valid)

	if !result.Valid {
		logger.Warn("integrity verification failed",
			logger.KeyFile, name,
			logger.KeyVersion, record.Version,
			logger.KeyHash, record.ContentHash)
	}
	return result, nil
}
