package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct-level validation tags
// plus the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if cfg.Metadata.Backend != "memory" && cfg.Metadata.Path == "" {
		return fmt.Errorf("metadata.path is required for the %q backend", cfg.Metadata.Backend)
	}

	switch cfg.Content.Backend {
	case "fs":
		if cfg.Content.Path == "" {
			return fmt.Errorf("content.path is required for the fs backend")
		}
	case "s3":
		if cfg.Content.S3.Bucket == "" {
			return fmt.Errorf("content.s3.bucket is required for the s3 backend")
		}
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	return nil
}
