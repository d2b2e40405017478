package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: test-service
environment: staging
auth:
  jwt:
    secret: file-secret
    access_token_ttl: 45m
redis:
  addr: localhost:7000
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg Config
	if err := Load("test-service", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Name != "test-service" {
		t.Errorf("expected name 'test-service', got %q", cfg.Name)
	}
	if cfg.Auth.JWT.Secret != "file-secret" {
		t.Errorf("expected secret from file, got %q", cfg.Auth.JWT.Secret)
	}
	if cfg.Auth.JWT.AccessTokenTTL != 45*time.Minute {
		t.Errorf("expected 45m ttl, got %s", cfg.Auth.JWT.AccessTokenTTL)
	}
	if cfg.Redis.Addr != "localhost:7000" {
		t.Errorf("expected redis addr from file, got %q", cfg.Redis.Addr)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
auth:
  jwt:
    secret: file-secret
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("AUTH_JWT_SECRET", "env-secret")

	var cfg Config
	if err := Load("test-service", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.JWT.Secret != "env-secret" {
		t.Errorf("expected env to win, got %q", cfg.Auth.JWT.Secret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg Config
	if err := Load("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml")); err != nil {
		t.Fatalf("expected Load to succeed with missing file, got %v", err)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("AUTH_JWT_SECRET")

	want := map[string]bool{
		"auth_jwt_secret": false,
		"auth.jwt.secret": false,
		"auth.jwt_secret": false,
	}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("expected variant %q, got %v", k, variants)
		}
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.Auth.JWT.Secret = "s"
	cfg.LLM.Endpoint = "http://localhost"
	cfg.LLM.APIKey = "k"
	cfg.ApplyDefaults()

	if cfg.Name != "aphorist" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if cfg.Environment != "development" {
		t.Errorf("expected default environment, got %q", cfg.Environment)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Environment = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid environment")
	}
}
