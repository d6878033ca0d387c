package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caskfs/caskfs/internal/bytesize"
	"github.com/caskfs/caskfs/pkg/controlplane/store"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want text", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
	}
	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Metadata.Backend != "file" {
		t.Errorf("Metadata.Backend = %q, want file", cfg.Metadata.Backend)
	}
	if cfg.Content.Backend != "fs" {
		t.Errorf("Content.Backend = %q, want fs", cfg.Content.Backend)
	}
	if cfg.API.MaxUploadSize != bytesize.GiB {
		t.Errorf("API.MaxUploadSize = %d, want %d", cfg.API.MaxUploadSize, bytesize.GiB)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Logging.Level = %q, want INFO", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
shutdown_timeout: 10s
metadata:
  backend: badger
  path: /tmp/caskfs-meta
content:
  backend: fs
  path: /tmp/caskfs-blobs
api:
  port: 9999
  max_upload_size: 512Mi
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG (normalized)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
	if cfg.Metadata.Backend != "badger" {
		t.Errorf("Metadata.Backend = %q, want badger", cfg.Metadata.Backend)
	}
	if cfg.API.MaxUploadSize != 512*bytesize.MiB {
		t.Errorf("API.MaxUploadSize = %d, want %d", cfg.API.MaxUploadSize, 512*bytesize.MiB)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: info
content:
  backend: fs
  path: /tmp/caskfs-blobs
metadata:
  backend: file
  path: /tmp/caskfs-meta
`)
	t.Setenv("CASKFS_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG from environment", cfg.Logging.Level)
	}
}

func TestValidationRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name: "unknown content backend",
			contents: `
content:
  backend: ftp
`,
		},
		{
			name: "s3 backend without bucket",
			contents: `
content:
  backend: s3
metadata:
  backend: file
  path: /tmp/caskfs-meta
`,
		},
		{
			name: "badger backend without path",
			contents: `
metadata:
  backend: badger
  path: ""
content:
  backend: memory
`,
		},
		{
			name: "invalid log level",
			contents: `
logging:
  level: verbose
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.contents)
			if _, err := Load(path); err == nil {
				t.Error("Load() succeeded, want validation error")
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 8888
	cfg.Metadata.Backend = "badger"
	cfg.Metadata.Path = "/tmp/caskfs-meta"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.Port != 8888 {
		t.Errorf("API.Port = %d, want 8888", loaded.API.Port)
	}
	if loaded.Metadata.Backend != "badger" {
		t.Errorf("Metadata.Backend = %q, want badger", loaded.Metadata.Backend)
	}
}

func TestCreateStoresFromConfig(t *testing.T) {
	t.Run("memory backends", func(t *testing.T) {
		meta, err := CreateMetadataStore(MetadataStoreConfig{Backend: "memory"})
		if err != nil {
			t.Fatalf("CreateMetadataStore() error = %v", err)
		}
		defer meta.Close()

		blobs, err := CreateContentStore(t.Context(), ContentStoreConfig{Backend: "memory"})
		if err != nil {
			t.Fatalf("CreateContentStore() error = %v", err)
		}
		if err := blobs.HealthCheck(t.Context()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("file backends", func(t *testing.T) {
		dir := t.TempDir()
		meta, err := CreateMetadataStore(MetadataStoreConfig{Backend: "file", Path: filepath.Join(dir, "meta")})
		if err != nil {
			t.Fatalf("CreateMetadataStore() error = %v", err)
		}
		defer meta.Close()

		blobs, err := CreateContentStore(t.Context(), ContentStoreConfig{Backend: "fs", Path: filepath.Join(dir, "blobs")})
		if err != nil {
			t.Fatalf("CreateContentStore() error = %v", err)
		}
		if err := blobs.HealthCheck(t.Context()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("unknown backends", func(t *testing.T) {
		if _, err := CreateMetadataStore(MetadataStoreConfig{Backend: "etcd"}); err == nil {
			t.Error("expected error for unknown metadata backend")
		}
		if _, err := CreateContentStore(t.Context(), ContentStoreConfig{Backend: "ftp"}); err == nil {
			t.Error("expected error for unknown content backend")
		}
	})
}
