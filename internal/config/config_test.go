package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		path := writeConfig(t, "server_url: https://jobs.example.com\napi_key: k\nproject_id: p1\n")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.PollInterval != 60 {
			t.Errorf("PollInterval = %d, want 60", cfg.PollInterval)
		}
		if cfg.JitterSeconds != 15 {
			t.Errorf("JitterSeconds = %d, want 15", cfg.JitterSeconds)
		}
		if cfg.FlushInterval != 30 {
			t.Errorf("FlushInterval = %d, want 30", cfg.FlushInterval)
		}
		if cfg.PreviewCount != 5 {
			t.Errorf("PreviewCount = %d, want 5", cfg.PreviewCount)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.DataDir == "" {
			t.Error("expected default DataDir")
		}
		if err := cfg.RequireAPI(); err != nil {
			t.Errorf("RequireAPI: %v", err)
		}
	})

	t.Run("reads every field", func(t *testing.T) {
		path := writeConfig(t, `
server_url: https://jobs.example.com
api_key: secret
project_id: proj
log_level: debug
poll_interval: 10
jitter_seconds: 2
flush_interval: 5
data_dir: /tmp/jc
preview_count: 12
tenant_id: t1
nats_servers: nats://localhost:4222
nats_nkey_seed: SUAAA
websocket_enabled: true
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.PollInterval != 10 || cfg.JitterSeconds != 2 || cfg.FlushInterval != 5 {
			t.Errorf("intervals not read: %+v", cfg)
		}
		if cfg.PreviewCount != 12 || cfg.DataDir != "/tmp/jc" || cfg.LogLevel != "debug" {
			t.Errorf("fields not read: %+v", cfg)
		}
		if !cfg.NATSEnabled() || !cfg.WebSocketEnabled {
			t.Errorf("event settings not read: %+v", cfg)
		}
		if cfg.JobCachePath() != "/tmp/jc/jobs.db" || cfg.OutboxPath() != "/tmp/jc/outbox.db" {
			t.Errorf("unexpected paths: %s %s", cfg.JobCachePath(), cfg.OutboxPath())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"negative poll interval", "poll_interval: -1\n", ErrInvalidPollInterval},
		{"negative flush interval", "flush_interval: -5\n", ErrInvalidFlushInterval},
		{"preview count too large", "preview_count: 51\n", ErrInvalidPreviewCount},
		{"preview count negative", "preview_count: -1\n", ErrInvalidPreviewCount},
		{"nats without seed", "nats_servers: nats://x\n", ErrNATSIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRequireAPI(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireAPI(); !errors.Is(err, ErrServerURLRequired) {
		t.Errorf("got %v, want ErrServerURLRequired", err)
	}
	cfg.ServerURL = "https://jobs.example.com"
	if err := cfg.RequireAPI(); !errors.Is(err, ErrAPIKeyRequired) {
		t.Errorf("got %v, want ErrAPIKeyRequired", err)
	}
	cfg.APIKey = "k"
	if err := cfg.RequireAPI(); !errors.Is(err, ErrProjectRequired) {
		t.Errorf("got %v, want ErrProjectRequired", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.PreviewCount != 5 || cfg.PollInterval != 60 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.ServerURL = "https://jobs.example.com"
	cfg.APIKey = "secret"
	cfg.ProjectID = "proj"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.APIKey != "secret" || loaded.ProjectID != "proj" {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
}
