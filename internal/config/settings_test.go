package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.ServerAddress() != defaultServerAddress {
		t.Fatalf("expected default address, got %q", cfg.ServerAddress())
	}
	if cfg.LogLevel() != "info" {
		t.Fatalf("expected default level, got %q", cfg.LogLevel())
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeSettings(t, `
[server]
address = "10.0.0.5:9000"

[logging]
level = "debug"

[[workspaces]]
id = "ws-1"
name = "app"
path = "/repos/app"
`)
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddress() != "10.0.0.5:9000" {
		t.Fatalf("address not overlaid: %q", cfg.ServerAddress())
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("level not overlaid: %q", cfg.LogLevel())
	}
	if len(cfg.Workspaces) != 1 || cfg.Workspaces[0].Path != "/repos/app" {
		t.Fatalf("workspaces not parsed: %+v", cfg.Workspaces)
	}
}

func TestPartialSettingsKeepOtherDefaults(t *testing.T) {
	path := writeSettings(t, `
[logging]
level = "error"
`)
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddress() != defaultServerAddress {
		t.Fatalf("address default lost: %q", cfg.ServerAddress())
	}
	if cfg.LogLevel() != "error" {
		t.Fatalf("level not applied: %q", cfg.LogLevel())
	}
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	path := writeSettings(t, "\n")
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerAddress() != defaultServerAddress {
		t.Fatalf("expected defaults, got %q", cfg.ServerAddress())
	}
}
