package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Agent section only; server section absent.
	p := writeConfig(t, `agent:
  server_base_url: "http://localhost:3000"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.Inventory.TTL != DefaultInventoryTTL {
		t.Errorf("inventory.ttl: got %v, want %v", cfg.Server.Inventory.TTL, DefaultInventoryTTL)
	}
	if cfg.Server.Inventory.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Errorf("inventory.max_body_bytes: got %d", cfg.Server.Inventory.MaxBodyBytes)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d", cfg.Server.HTTPPort)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEYS
    header: x-inv-key
  inventory:
    ttl: 72h
    max_body_bytes: 1048576
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.Auth.Mode != "apikey" {
		t.Errorf("auth.mode: got %q, want apikey", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-inv-key" {
		t.Errorf("header: got %q, want x-inv-key", cfg.Server.Auth.EffectiveHeader())
	}
	if cfg.Server.Inventory.TTL != 72*time.Hour {
		t.Errorf("inventory.ttl: got %v, want 72h", cfg.Server.Inventory.TTL)
	}
	if cfg.Server.Inventory.MaxBodyBytes != 1<<20 {
		t.Errorf("max_body_bytes: got %d", cfg.Server.Inventory.MaxBodyBytes)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-agent-key" {
		t.Errorf("EffectiveHeader: got %q, want x-agent-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_AGENT_KEYS", " first , ,second")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_AGENT_KEYS
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	keys := cfg.Server.Auth.Keys()
	if len(keys) != 2 || keys[0] != "first" || keys[1] != "second" {
		t.Errorf("Keys(): got %q", keys)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown auth mode":  "server:\n  auth:\n    mode: oauth2\n",
		"apikey without env": "server:\n  auth:\n    mode: apikey\n",
		"port out of range":  "server:\n  http_port: 70000\n",
		"negative ttl":       "server:\n  inventory:\n    ttl: -1h\n",
		"zero body limit":    "server:\n  inventory:\n    max_body_bytes: 0\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
