package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9000\"\nredis:\n  addr: localhost:6379\ncatalog:\n  ttl: 2m\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PROGRESS_DATABASE_URL", "postgres://progress@localhost/progress")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected port 9000, got %q", cfg.Server.Port)
	}
	if cfg.ProgressBackend() != BackendPostgres {
		t.Fatalf("expected postgres backend, got %s", cfg.ProgressBackend())
	}
	if got := TTLDuration(cfg.Catalog.TTL, time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProgressBackend() != BackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.ProgressBackend())
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("remote:\n  timeout: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}

func TestProgressBackendPrefersRemote(t *testing.T) {
	var cfg Config
	cfg.Remote.BaseURL = "http://progress.internal"
	cfg.Postgres.URL = "postgres://localhost/db"
	cfg.Redis.Addr = "localhost:6379"
	if cfg.ProgressBackend() != BackendRemote {
		t.Fatalf("expected remote backend, got %s", cfg.ProgressBackend())
	}
}
