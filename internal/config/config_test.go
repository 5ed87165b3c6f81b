package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9090"
mongo:
  database: "vidtube_test"
jwt:
  secret: "access"
  refresh_secret: "refresh"
pagination:
  max_limit: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != ":9090" {
		t.Errorf("server.port = %q", cfg.Server.Port)
	}
	if cfg.Mongo.Database != "vidtube_test" {
		t.Errorf("mongo.database = %q", cfg.Mongo.Database)
	}
	if cfg.Pagination.DefaultLimit != 20 {
		t.Errorf("pagination.default_limit = %d, want default 20", cfg.Pagination.DefaultLimit)
	}
	if cfg.Pagination.MaxLimit != 50 {
		t.Errorf("pagination.max_limit = %d", cfg.Pagination.MaxLimit)
	}
	if cfg.JWT.ExpireTime != 24*time.Hour {
		t.Errorf("jwt.expire_time = %v", cfg.JWT.ExpireTime)
	}
	if got := cfg.Redis.Addr(); got != "localhost:6379" {
		t.Errorf("redis addr = %q", got)
	}
	if cfg.Kafka.MaxAttempts != 5 || cfg.Kafka.RetryBackoff != 500*time.Millisecond {
		t.Errorf("kafka retry = %d, %v", cfg.Kafka.MaxAttempts, cfg.Kafka.RetryBackoff)
	}
}

func TestLoad_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("VIDTUBE_JWT_SECRET", "env-access")
	t.Setenv("VIDTUBE_JWT_REFRESH_SECRET", "env-refresh")
	t.Setenv("VIDTUBE_MONGO_URI", "mongodb://mongo:27017")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.JWT.Secret != "env-access" || cfg.JWT.RefreshSecret != "env-refresh" {
		t.Errorf("jwt secrets not taken from env: %+v", cfg.JWT)
	}
	if cfg.Mongo.URI != "mongodb://mongo:27017" {
		t.Errorf("mongo.uri = %q", cfg.Mongo.URI)
	}
}

func TestLoad_RequiresSecrets(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \":8080\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when jwt secrets are missing")
	}
}

func TestValidate_PaginationLimits(t *testing.T) {
	cfg := Config{
		JWT:        JWTConfig{Secret: "a", RefreshSecret: "b"},
		Pagination: PaginationConfig{DefaultLimit: 20, MaxLimit: 10},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max_limit < default_limit")
	}
}
