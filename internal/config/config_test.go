// ABOUTME: Tests for configuration loading, env expansion and defaults
// ABOUTME: Uses temp files for YAML fixtures

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:9090"
database:
  path: "/tmp/gw.db"
auth:
  jwt_secret: "s3cret"
  token_ttl: "12h"
presence:
  online_broadcast_delay: "250ms"
  write_timeout: "3s"
  send_buffer: 128
logging:
  level: "debug"
  format: "json"
metrics:
  enabled: true
  path: "/internal/metrics"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:9090" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "/tmp/gw.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("TokenTTL = %v, want 12h", cfg.Auth.TokenTTL)
	}
	if cfg.Presence.OnlineBroadcastDelay != 250*time.Millisecond {
		t.Errorf("OnlineBroadcastDelay = %v, want 250ms", cfg.Presence.OnlineBroadcastDelay)
	}
	if cfg.Presence.WriteTimeout != 3*time.Second {
		t.Errorf("WriteTimeout = %v, want 3s", cfg.Presence.WriteTimeout)
	}
	if cfg.Presence.SendBuffer != 128 {
		t.Errorf("SendBuffer = %d, want 128", cfg.Presence.SendBuffer)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gw.db"
auth:
  jwt_secret: "s3cret"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Presence.OnlineBroadcastDelay != 400*time.Millisecond {
		t.Errorf("default OnlineBroadcastDelay = %v, want 400ms", cfg.Presence.OnlineBroadcastDelay)
	}
	if cfg.Presence.WriteTimeout != 5*time.Second {
		t.Errorf("default WriteTimeout = %v, want 5s", cfg.Presence.WriteTimeout)
	}
	if cfg.Presence.SendBuffer != 64 {
		t.Errorf("default SendBuffer = %d, want 64", cfg.Presence.SendBuffer)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("default TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %q", cfg.Metrics.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_GW_SECRET", "from-env")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gw.db"
auth:
  jwt_secret: "${TEST_GW_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "from-env")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: "/tmp/gw.db"
auth:
  jwt_secret: "s"
`,
			wantErr: "http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: "localhost:8080"
auth:
  jwt_secret: "s"
`,
			wantErr: "database.path",
		},
		{
			name: "missing jwt secret",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gw.db"
`,
			wantErr: "jwt_secret",
		},
		{
			name: "bad duration",
			content: `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gw.db"
auth:
  jwt_secret: "s"
presence:
  write_timeout: "not-a-duration"
`,
			wantErr: "write_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() succeeded for a missing file")
	}
}
