package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadReadsConfigFromDataDir(t *testing.T) {
	dir := t.TempDir()
	content := `{"server_url": "https://monitor.example.com", "debug": true}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != "https://monitor.example.com" {
		t.Fatalf("ServerURL = %q", cfg.ServerURL)
	}
	if !cfg.Debug {
		t.Fatalf("Debug = false, want true")
	}
	if cfg.StatusAddr != defaultStatusAddr {
		t.Fatalf("StatusAddr = %q, want default", cfg.StatusAddr)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `{"server_url": "https://file.example.com"}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv(envServerURL, "https://env.example.com")
	t.Setenv(envStatusAddr, "localhost:9999")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != "https://env.example.com" {
		t.Fatalf("ServerURL = %q, want the env override", cfg.ServerURL)
	}
	if cfg.StatusAddr != "localhost:9999" {
		t.Fatalf("StatusAddr = %q, want the env override", cfg.StatusAddr)
	}
}

func TestMissingServerURLIsAnError(t *testing.T) {
	t.Setenv(envServerURL, "")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("Load() without a server URL returned nil error")
	}
}

func TestMalformedConfigIsAnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(envServerURL, "")

	if _, err := Load(dir); err == nil {
		t.Fatalf("Load() accepted malformed JSON")
	}
}
