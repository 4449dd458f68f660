package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.MaxENTEntries != 100000 {
		t.Errorf("expected MaxENTEntries=100000, got %d", cfg.MaxENTEntries)
	}
	if cfg.DirectDNSKey {
		t.Error("expected DirectDNSKey=false")
	}
	if cfg.MaxNSEC3Iterations != 500 {
		t.Errorf("expected MaxNSEC3Iterations=500, got %d", cfg.MaxNSEC3Iterations)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Workers)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("unexpected log settings %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.LockTTL().Seconds() != 300 {
		t.Errorf("expected 300s lock TTL, got %v", cfg.LockTTL())
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("ZONEKEEPER_DATABASE_URL", "postgres://zk@localhost/zk")
	t.Setenv("ZONEKEEPER_MAX_ENT_ENTRIES", "10")
	t.Setenv("ZONEKEEPER_DIRECT_DNSKEY", "true")
	t.Setenv("ZONEKEEPER_WORKERS", "16")
	t.Setenv("ZONEKEEPER_LOG_LEVEL", "debug")
	t.Setenv("ZONEKEEPER_REDIS_ADDR", "localhost:6379")
	t.Setenv("ZONEKEEPER_API_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://zk@localhost/zk" {
		t.Errorf("unexpected DatabaseURL %q", cfg.DatabaseURL)
	}
	if cfg.MaxENTEntries != 10 || !cfg.DirectDNSKey || cfg.Workers != 16 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %q", cfg.LogLevel)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.APIToken != "secret" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_WhenEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error {
		return errors.New("mocked error")
	}
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatalf("expected env load error, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ZONEKEEPER_LOG_LEVEL", "trace"},
		{"ZONEKEEPER_LOG_FORMAT", "xml"},
		{"ZONEKEEPER_WORKERS", "0"},
		{"ZONEKEEPER_WORKERS", "not_a_number"},
		{"ZONEKEEPER_MAX_ENT_ENTRIES", "0"},
		{"ZONEKEEPER_REDIS_ADDR", "no-port"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
