package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  app_env: dev\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", c.Server.Addr)
	}
	if c.App.LogLevel != "info" {
		t.Errorf("App.LogLevel = %q, want info", c.App.LogLevel)
	}
	if c.Cache.Kind != "memory" {
		t.Errorf("Cache.Kind = %q, want memory", c.Cache.Kind)
	}
	if c.Rate.MaxRequests != 60 {
		t.Errorf("Rate.MaxRequests = %d, want 60", c.Rate.MaxRequests)
	}
	if c.Rate.Refresh.Limit != 5 {
		t.Errorf("Rate.Refresh.Limit = %d, want 5", c.Rate.Refresh.Limit)
	}
	if c.Rate.Refresh.Window != "10m" {
		t.Errorf("Rate.Refresh.Window = %q, want 10m", c.Rate.Refresh.Window)
	}
}

func TestLoad_YAMLValues(t *testing.T) {
	path := writeConfig(t, `
app:
  app_env: prod
  log_level: warn
server:
  addr: ":9090"
  cors_allowed_origins: ["https://player.example.com"]
cache:
  kind: redis
  redis:
    addr: "localhost:6379"
    db: 3
rate:
  enabled: true
  window: "30s"
  max_requests: 120
security:
  refresh_key_hash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.App.Env != "prod" {
		t.Errorf("App.Env = %q, want prod", c.App.Env)
	}
	if c.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", c.Server.Addr)
	}
	if len(c.Server.CORSAllowedOrigins) != 1 || c.Server.CORSAllowedOrigins[0] != "https://player.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", c.Server.CORSAllowedOrigins)
	}
	if c.Cache.Redis.DB != 3 {
		t.Errorf("Redis.DB = %d, want 3", c.Cache.Redis.DB)
	}
	if c.Cache.Redis.Prefix != "musekit" {
		t.Errorf("Redis.Prefix = %q, want default musekit", c.Cache.Redis.Prefix)
	}
	if !c.Rate.Enabled || c.Rate.MaxRequests != 120 {
		t.Errorf("Rate = %+v", c.Rate)
	}
	if c.Security.RefreshKeyHash == "" {
		t.Error("RefreshKeyHash not loaded")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":8080\"\nrate:\n  max_requests: 10\n")

	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("RATE_MAX_REQUESTS", "99")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("REFRESH_KEY_HASH", "  $argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA  ")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Server.Addr != ":7070" {
		t.Errorf("Server.Addr = %q, want :7070", c.Server.Addr)
	}
	if c.Rate.MaxRequests != 99 {
		t.Errorf("Rate.MaxRequests = %d, want 99", c.Rate.MaxRequests)
	}
	if !c.Rate.Enabled {
		t.Error("Rate.Enabled not overridden")
	}
	if len(c.Server.CORSAllowedOrigins) != 2 || c.Server.CORSAllowedOrigins[1] != "https://b.test" {
		t.Errorf("CORSAllowedOrigins = %v", c.Server.CORSAllowedOrigins)
	}
	if c.Security.RefreshKeyHash != "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA" {
		t.Errorf("RefreshKeyHash not trimmed: %q", c.Security.RefreshKeyHash)
	}
}

func TestLoad_InvalidCacheKind(t *testing.T) {
	path := writeConfig(t, "cache:\n  kind: memcached\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid cache kind")
	}
}

func TestLoad_RedisRequiresAddr(t *testing.T) {
	path := writeConfig(t, "cache:\n  kind: redis\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted redis cache without addr")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "rate:\n  window: \"sixty seconds\"\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid rate window")
	}
}

func TestDurationHelpers(t *testing.T) {
	path := writeConfig(t, "rate:\n  window: \"45s\"\n  refresh:\n    window: \"2m\"\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.RateWindow(); got != 45*time.Second {
		t.Errorf("RateWindow = %v, want 45s", got)
	}
	if got := c.RefreshWindow(); got != 2*time.Minute {
		t.Errorf("RefreshWindow = %v, want 2m", got)
	}
	if got := c.MemoryDefaultTTL(); got != 2*time.Minute {
		t.Errorf("MemoryDefaultTTL = %v, want default 2m", got)
	}
}
