package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConfigSuccess(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("config file was not created at %s: %v", configPath, err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected file mode 0600, got %o", perm)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# CaskFS Configuration File",
		"logging:",
		"database:",
		"metrics:",
		"api:",
		"metadata:",
		"content:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("config file missing section: %s", section)
		}
	}

	// The generated file must round-trip through the loader.
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if len(cfg.API.JWT.Secret) != 64 {
		t.Errorf("expected 64-char hex secret, got %d chars", len(cfg.API.JWT.Secret))
	}
	if cfg.Metadata.Backend != "file" {
		t.Errorf("expected file metadata backend, got %s", cfg.Metadata.Backend)
	}
}

func TestInitConfigAlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("first InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfigForce(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("first InitConfig failed: %v", err)
	}
	first, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("forced InitConfig failed: %v", err)
	}
	second, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	// A fresh secret is generated every time.
	if string(first) == string(second) {
		t.Error("expected forced init to regenerate the config file")
	}
}

func TestInitConfigToPathCustomLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "caskfs.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
}
