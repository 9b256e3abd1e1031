package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"server_address": ":9000", "preview_dir": "previews", "max_workers": 4},
		"chat_api": {"base_url": "http://chat.local/", "timeout_seconds": 5},
		"databases": {"sqlite3": {"dsn": ":memory:"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("server address mismatch: %s", cfg.BasicConfig.ServerAddress)
	}
	if cfg.ChatAPI.BaseURL != "http://chat.local" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.ChatAPI.BaseURL)
	}
	if cfg.BasicConfig.MaxWorkers != 4 || cfg.BasicConfig.QueueSize != 64 {
		t.Fatalf("expected file value merged with defaults: %+v", cfg.BasicConfig)
	}
	if want := filepath.Join(filepath.Dir(path), "previews"); cfg.BasicConfig.PreviewDir != want {
		t.Fatalf("preview dir not resolved: want %s got %s", want, cfg.BasicConfig.PreviewDir)
	}
	if cfg.Databases["sqlite3"].DSN != ":memory:" {
		t.Fatalf("database dsn mismatch: %#v", cfg.Databases)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `{"chat_api": {"base_url": "http://chat.local"}}`)
	t.Setenv("SHOPASSIST_CHAT_API_BASE_URL", "http://override.local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ChatAPI.BaseURL != "http://override.local" {
		t.Fatalf("env override ignored: %s", cfg.ChatAPI.BaseURL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}
