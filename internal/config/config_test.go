// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing and defaults

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
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  base_url: "https://parlor.example.com"

database:
  path: "./test.db"

auth:
  token_path: "/tmp/token"

cache:
  agent_ttl: "5m"

preview:
  confirmed_capacity: 128

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.BaseURL != "https://parlor.example.com" {
		t.Errorf("base_url = %q", cfg.Server.BaseURL)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Auth.TokenPath != "/tmp/token" {
		t.Errorf("auth.token_path = %q", cfg.Auth.TokenPath)
	}
	if cfg.Cache.AgentTTL != 5*time.Minute {
		t.Errorf("agent_ttl = %v, want 5m", cfg.Cache.AgentTTL)
	}
	if cfg.Preview.ConfirmedCapacity != 128 {
		t.Errorf("confirmed_capacity = %d", cfg.Preview.ConfirmedCapacity)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("PARLOR_TEST_URL", "https://expanded.example.com")

	path := writeConfig(t, `
server:
  base_url: "${PARLOR_TEST_URL}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.BaseURL != "https://expanded.example.com" {
		t.Errorf("base_url = %q, want expanded value", cfg.Server.BaseURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
logging: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.BaseURL == "" {
		t.Error("expected default base_url")
	}
	if cfg.Database.Path == "" {
		t.Error("expected default database path")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("logging.format = %q, want text", cfg.Logging.Format)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
cache:
  agent_ttl: "five minutes"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "agent_ttl") {
		t.Errorf("error = %v, want mention of agent_ttl", err)
	}
}

func TestLoad_NegativeCapacity(t *testing.T) {
	path := writeConfig(t, `
preview:
  confirmed_capacity: -1
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for negative capacity")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.BaseURL == "" {
		t.Error("expected default base_url")
	}
}
