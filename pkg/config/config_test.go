package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfigMissingFile(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadServerConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitegate.toml")
	cfg := NewDefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:9000"
	cfg.SecretKey = "file-secret"
	cfg.Upstream.Model = "gpt-4o"
	cfg.RateLimit.RequestsPerWindow = 30
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("listen_addr: %q", loaded.ListenAddr)
	}
	if loaded.SecretKey != "file-secret" {
		t.Fatalf("secret_key: %q", loaded.SecretKey)
	}
	if loaded.Upstream.Model != "gpt-4o" {
		t.Fatalf("model: %q", loaded.Upstream.Model)
	}
	if loaded.RateLimit.RequestsPerWindow != 30 {
		t.Fatalf("requests_per_window: %d", loaded.RateLimit.RequestsPerWindow)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitegate.toml")
	cfg := NewDefaultServerConfig()
	cfg.SecretKey = "file-secret"
	cfg.RedisURL = "redis://file:6379"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Setenv(EnvSecretKey, "env-secret")
	t.Setenv(EnvUpstreamAPIKey, "sk-env")
	t.Setenv(EnvRedisURL, "redis://env:6379")

	loaded, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.SecretKey != "env-secret" {
		t.Fatalf("expected env secret to win, got %q", loaded.SecretKey)
	}
	if loaded.Upstream.APIKey != "sk-env" {
		t.Fatalf("expected env api key, got %q", loaded.Upstream.APIKey)
	}
	if loaded.RedisURL != "redis://env:6379" {
		t.Fatalf("expected env redis url, got %q", loaded.RedisURL)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitegate.toml")
	if err := os.WriteFile(path, []byte("listen_addr = \"  127.0.0.1:8081  \"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ListenAddr != "127.0.0.1:8081" {
		t.Fatalf("expected trimmed listen_addr, got %q", loaded.ListenAddr)
	}
	if loaded.RateLimit.RequestsPerWindow != 120 || loaded.RateLimit.WindowSeconds != 3600 {
		t.Fatalf("expected rate limit defaults, got %+v", loaded.RateLimit)
	}
	if loaded.Upstream.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", loaded.Upstream.Model)
	}
	if len(loaded.CORSOrigins) != 1 || loaded.CORSOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors default, got %v", loaded.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultServerConfig()
	cfg.SecretKey = "s"
	cfg.Upstream.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	missingSecret := cfg
	missingSecret.SecretKey = ""
	if err := missingSecret.Validate(); err == nil {
		t.Fatal("expected missing secret key to fail")
	}

	missingKey := cfg
	missingKey.Upstream.APIKey = ""
	if err := missingKey.Validate(); err == nil {
		t.Fatal("expected missing upstream api key to fail")
	}

	tlsNoDomain := cfg
	tlsNoDomain.TLS.Enabled = true
	tlsNoDomain.TLS.Domain = ""
	if err := tlsNoDomain.Validate(); err == nil {
		t.Fatal("expected enabled tls without domain to fail")
	}
}
