package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFile_ReturnsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path == "" {
		t.Fatalf("expected config path")
	}
	if got := cfg.Host(); got != DefaultHost {
		t.Fatalf("cfg.Host() = %q, want %q", got, DefaultHost)
	}
	if got := cfg.Port(); got != DefaultPort {
		t.Fatalf("cfg.Port() = %d, want %d", got, DefaultPort)
	}
	if got := cfg.StorageBackend(); got != DefaultBackend {
		t.Fatalf("cfg.StorageBackend() = %q, want %q", got, DefaultBackend)
	}
	if got := cfg.SnapshotKey(); got != "thinkbot:config:v1" {
		t.Fatalf("cfg.SnapshotKey() = %q", got)
	}
	if cfg.ParallelBranches() {
		t.Fatalf("cfg.ParallelBranches() = true, want false")
	}
}

func TestEnsureDefaultConfig_CreatesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := EnsureDefaultConfig()
	if err != nil {
		t.Fatalf("EnsureDefaultConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist at %s: %v", path, err)
	}

	cfg, gotPath, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if filepath.Clean(gotPath) != filepath.Clean(path) {
		t.Fatalf("Load() path = %s, want %s", gotPath, path)
	}
	if got := cfg.Port(); got != DefaultPort {
		t.Fatalf("cfg.Port() = %d, want %d", got, DefaultPort)
	}
	if got := cfg.LogLevel(); got != DefaultLogLevel {
		t.Fatalf("cfg.LogLevel() = %q, want %q", got, DefaultLogLevel)
	}
}

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	configDir := filepath.Join(home, ".thinkbot")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoad_ParsesSections(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, `server:
  host: 0.0.0.0
  port: 9090
storage:
  backend: bolt
  path: /tmp/x.bolt
orchestrator:
  parallel_branches: true
  max_parallel: 2
extraction:
  timeout_seconds: 5
`)

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Host(); got != "0.0.0.0" {
		t.Fatalf("cfg.Host() = %q, want %q", got, "0.0.0.0")
	}
	if got := cfg.Port(); got != 9090 {
		t.Fatalf("cfg.Port() = %d, want %d", got, 9090)
	}
	if got := cfg.StoragePath(); got != "/tmp/x.bolt" {
		t.Fatalf("cfg.StoragePath() = %q", got)
	}
	if !cfg.ParallelBranches() || cfg.MaxParallel() != 2 {
		t.Fatalf("orchestrator = (%v, %d), want (true, 2)", cfg.ParallelBranches(), cfg.MaxParallel())
	}
	if got := cfg.ExtractTimeoutSeconds(); got != 5 {
		t.Fatalf("cfg.ExtractTimeoutSeconds() = %d, want 5", got)
	}
}

func TestLoad_RejectsInvalidPort(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "server:\n  port: 70000\n")

	if _, _, err := Load(); err == nil || !strings.Contains(err.Error(), "Port") {
		t.Fatalf("Load() error = %v, want port validation error", err)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "storage:\n  backend: cassandra\n")

	if _, _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want backend validation error")
	}
}

func TestStoragePath_DefaultsPerBackend(t *testing.T) {
	bolt := "bolt"
	cfg := &AppConfig{Storage: StorageConfig{Backend: &bolt}}
	if got := filepath.Base(cfg.StoragePath()); got != "thinkbot.bolt" {
		t.Fatalf("StoragePath() base = %q, want thinkbot.bolt", got)
	}
	var nilCfg *AppConfig
	if got := filepath.Base(nilCfg.StoragePath()); got != "thinkbot.db" {
		t.Fatalf("nil StoragePath() base = %q, want thinkbot.db", got)
	}
}
