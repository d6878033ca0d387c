package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/caskfs/caskfs/pkg/content"
	contentfs "github.com/caskfs/caskfs/pkg/content/fs"
	contentmemory "github.com/caskfs/caskfs/pkg/content/memory"
	contents3 "github.com/caskfs/caskfs/pkg/content/s3"
	"github.com/caskfs/caskfs/pkg/metadata"
	"github.com/caskfs/caskfs/pkg/metadata/store/badger"
	metafile "github.com/caskfs/caskfs/pkg/metadata/store/file"
	metamemory "github.com/caskfs/caskfs/pkg/metadata/store/memory"
)

// CreateMetadataStore creates a metadata store instance from configuration.
func CreateMetadataStore(cfg MetadataStoreConfig) (metadata.Store, error) {
	switch cfg.Backend {
	case "file":
		store, err := metafile.New(filepath.Join(cfg.Path, "metadata.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to open file metadata store: %w", err)
		}
		return store, nil
	case "badger":
		store, err := badger.New(badger.Options{Dir: cfg.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger metadata store: %w", err)
		}
		return store, nil
	case "memory":
		return metamemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend: %q", cfg.Backend)
	}
}

// CreateContentStore creates a content store instance from configuration.
func CreateContentStore(ctx context.Context, cfg ContentStoreConfig) (content.Store, error) {
	switch cfg.Backend {
	case "fs":
		store, err := contentfs.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open fs content store: %w", err)
		}
		return store, nil
	case "s3":
		client, err := contents3.NewClient(ctx,
			cfg.S3.Endpoint,
			cfg.S3.Region,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.S3.ForcePathStyle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		store, err := contents3.New(ctx, contents3.Config{
			Client:    client,
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 content store: %w", err)
		}
		return store, nil
	case "memory":
		return contentmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown content backend: %q", cfg.Backend)
	}
}
