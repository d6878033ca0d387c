// Package vault coordinates uploads, version history, integrity
// verification, and write locking across the metadata and content
// layers.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caskfs/caskfs/internal/logger"
	"github.com/caskfs/caskfs/pkg/content"
	"github.com/caskfs/caskfs/pkg/metadata"
	"github.com/caskfs/caskfs/pkg/metadata/lock"
	"github.com/caskfs/caskfs/pkg/notify"
)

// Upload outcome labels for metrics.
const (
	OutcomeCommitted    = "committed"
	OutcomeConflict     = "conflict"
	OutcomeStorageError = "storage_error"
	OutcomeRejected     = "rejected"
)

// Metrics receives versioning activity counts. Implementations must be
// safe on a nil typed pointer so disabled metrics cost nothing.
type Metrics interface {
	RecordUpload(outcome string, bytes int64)
	RecordDownload(bytes int64)
	RecordLockConflict()
	RecordVerification(valid bool)
	ObserveHashDuration(d time.Duration)
}

// nopMetrics is used when no collector is wired.
type nopMetrics struct{}

func (nopMetrics) RecordUpload(string, int64)        {}
func (nopMetrics) RecordDownload(int64)              {}
func (nopMetrics) RecordLockConflict()               {}
func (nopMetrics) RecordVerification(bool)           {}
func (nopMetrics) ObserveHashDuration(time.Duration) {}

// Principal identifies the authenticated caller of an operation.
type Principal struct {
	Name  string
	Admin bool
}

// Config wires a Coordinator's collaborators.
type Config struct {
	Metadata metadata.Store
	Content  content.Store
	Notifier notify.Notifier
	Metrics  Metrics
}

// Coordinator implements the versioning workflow. All mutations of a
// file's history go through Submit, which holds the file's lock for the
// duration of the upload and releases it on every exit path.
type Coordinator struct {
	meta     metadata.Store
	blobs    content.Store
	locks    *lock.Manager
	notifier notify.Notifier
	metrics  Metrics

	// now is the clock, overridable in tests.
	now func() time.Time
}

// New creates a Coordinator. Metadata and Content are required; a nil
// Notifier discards events and a nil Metrics records nothing.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if cfg.Content == nil {
		return nil, fmt.Errorf("content store is required")
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Coordinator{
		meta:     cfg.Metadata,
		blobs:    cfg.Content,
		locks:    lock.NewManager(cfg.Metadata),
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Submit uploads a new version of name on behalf of principal.
//
// The file's lock is taken for the duration of the call: a concurrent
// Submit or an explicit lock held by someone else fails immediately
// with the current holder. Whatever happens after acquisition, the lock
// is released before Submit returns, so a failed upload never leaves
// the file locked.
//
// The payload is hashed with SHA-256 while it streams into the content
// store; the version is committed to metadata only after the bytes are
// durably stored. A metadata failure removes the orphaned blob.
func (c *Coordinator) Submit(ctx context.Context, name string, principal string, payload io.Reader) (*metadata.VersionRecord, error) {
	if name == "" {
		c.metrics.RecordUpload(OutcomeRejected, 0)
		return nil, metadata.NewInvalidArgumentError("file name is required")
	}
	if principal == "" {
		c.metrics.RecordUpload(OutcomeRejected, 0)
		return nil, metadata.NewInvalidArgumentError("uploader is required")
	}

	if err := c.locks.Acquire(ctx, name, principal); err != nil {
		if metadata.IsLocked(err) {
			c.metrics.RecordLockConflict()
			c.metrics.RecordUpload(OutcomeConflict, 0)
		}
		return nil, err
	}
	defer func() {
		if err := c.locks.Release(context.WithoutCancel(ctx), name); err != nil {
			logger.Error("failed to release lock after upload",
				logger.KeyFile, name,
				logger.KeyError, err)
		}
	}()

	digest := content.NewDigest()
	hashStart := c.now()
	blobID, size, err := c.blobs.Write(ctx, io.TeeReader(payload, digest))
	if err != nil {
		c.metrics.RecordUpload(OutcomeStorageError, 0)
		return nil, metadata.NewStorageFailureError(err)
	}
	c.metrics.ObserveHashDuration(c.now().Sub(hashStart))

	uploadedAt := c.now()
	version, err := c.meta.AppendVersion(ctx, name, metadata.VersionDraft{
		StoragePath: blobID,
		ContentHash: digest.Sum(),
		UploadedBy:  principal,
		UploadedAt:  uploadedAt,
	})
	if err != nil {
		// The blob is unreferenced; remove it so failed uploads do not
		// accumulate storage.
		if delErr := c.blobs.Delete(context.WithoutCancel(ctx), blobID); delErr != nil {
			logger.Warn("failed to remove orphaned blob",
				logger.KeyFile, name,
				logger.KeyStorage, blobID,
				logger.KeyError, delErr)
		}
		c.metrics.RecordUpload(OutcomeStorageError, 0)
		return nil, err
	}

	c.metrics.RecordUpload(OutcomeCommitted, size)
	c.notifier.Publish(notify.Event{
		File:       name,
		Version:    version.Version,
		Hash:       version.ContentHash,
		Size:       size,
		UploadedBy: principal,
		UploadedAt: uploadedAt,
	})

	logger.Info("version committed",
		logger.KeyFile, name,
		logger.KeyVersion, version.Version,
		logger.KeyHash, version.ContentHash,
		logger.KeySize, size,
		logger.KeyPrincipal, principal)
	return version, nil
}

// GetFile returns the version history of name.
func (c *Coordinator) GetFile(ctx context.Context, name string) (*metadata.FileRecord, error) {
	return c.meta.GetFile(ctx, name)
}

// ListFiles returns all tracked files in creation order.
func (c *Coordinator) ListFiles(ctx context.Context) ([]*metadata.FileRecord, error) {
	return c.meta.ListFiles(ctx)
}

// Open returns a reader over the payload of the given version together
// with its record. Version 0 means the latest version.
func (c *Coordinator) Open(ctx context.Context, name string, version uint64) (io.ReadCloser, *metadata.VersionRecord, error) {
	record, err := c.resolve(ctx, name, version)
	if err != nil {
		return nil, nil, err
	}

	reader, err := c.blobs.Read(ctx, record.StoragePath)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return nil, nil, metadata.NewStorageFailureError(
				fmt.Errorf("blob missing for %s version %d: %w", name, record.Version, err))
		}
		return nil, nil, metadata.NewStorageFailureError(err)
	}

	size, err := c.blobs.Size(ctx, record.StoragePath)
	if err == nil {
		c.metrics.RecordDownload(size)
	}
	return reader, record, nil
}

// HealthCheck probes both backing stores.
func (c *Coordinator) HealthCheck(ctx context.Context) error {
	if err := c.meta.HealthCheck(ctx); err != nil {
		return fmt.Errorf("metadata store unhealthy: %w", err)
	}
	if err := c.blobs.HealthCheck(ctx); err != nil {
		return fmt.Errorf("content store unhealthy: %w", err)
	}
	return nil
}

// resolve returns the record for version of name, or the latest record
// when version is 0.
func (c *Coordinator) resolve(ctx context.Context, name string, version uint64) (*metadata.VersionRecord, error) {
	file, err := c.meta.GetFile(ctx, name)
	if err != nil {
		return nil, err
	}

	if version == 0 {
		record := file.CurrentVersion()
		if record == nil {
			return nil, metadata.NewVersionNotFoundError(name, version)
		}
		return record, nil
	}

	record := file.Version(version)
	if record == nil {
		return nil, metadata.NewVersionNotFoundError(name, version)
	}
	return record, nil
}
