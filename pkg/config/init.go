package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caskfs/caskfs/internal/api"
)

// configTemplate is the sample configuration written by "caskfs init".
// It must stay parseable by Load.
const configTemplate = `# CaskFS Configuration File
#
# Generated by "caskfs init". Every value can be overridden with a
# CASKFS_* environment variable, e.g. CASKFS_LOGGING_LEVEL=DEBUG.

# Logging configuration
logging:
  level: INFO    # DEBUG, INFO, WARN, ERROR
  format: text   # text, json
  output: stdout # stdout, stderr, or a file path

# Maximum time to wait for in-flight requests during shutdown
shutdown_timeout: 30s

# Control plane database (user accounts)
database:
  type: sqlite
  sqlite:
    path: %s
  # For PostgreSQL instead:
  # type: postgres
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: caskfs
  #   user: caskfs
  #   password: ""
  #   sslmode: disable

# Prometheus metrics, served on /metrics when enabled
metrics:
  enabled: false

# REST API server
api:
  port: 8080
  max_upload_size: 1Gi
  jwt:
    # Randomly generated development secret. For production, prefer the
    # %s environment variable over this file.
    secret: %s
    access_token_duration: 15m
    refresh_token_duration: 168h

# Version history and lock metadata store
metadata:
  backend: file # file, badger, memory
  path: /var/lib/caskfs/metadata

# Blob storage
content:
  backend: fs # fs, s3, memory
  path: /var/lib/caskfs/blobs
  # For S3-compatible storage instead:
  # backend: s3
  # s3:
  #   endpoint: http://localhost:9000
  #   region: us-east-1
  #   bucket: caskfs
  #   force_path_style: true
`

// InitConfig writes a sample configuration file at the default location
// and returns its path. It refuses to overwrite an existing file unless
// force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file at the given path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	secret, err := generateRandomSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	sqlitePath := filepath.Join(getConfigDir(), "controlplane.db")
	content := fmt.Sprintf(configTemplate, sqlitePath, api.EnvAPISecret, secret)

	// The file holds a JWT secret, keep it private.
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateRandomSecret returns 32 bytes of entropy as a hex string,
// matching what "openssl rand -hex 32" would produce.
func generateRandomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
