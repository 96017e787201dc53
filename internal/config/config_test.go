package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.DeliveryRatePerSec != 50 {
		t.Errorf("DeliveryRatePerSec = %d, want 50", cfg.DeliveryRatePerSec)
	}
	if cfg.DispatcherConcurrency != 64 {
		t.Errorf("DispatcherConcurrency = %d, want 64", cfg.DispatcherConcurrency)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DELIVERY_RATE_PER_SEC", "250")
	t.Setenv("DISPATCHER_CONCURRENCY", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.DeliveryRatePerSec != 250 {
		t.Errorf("DeliveryRatePerSec = %d, want 250", cfg.DeliveryRatePerSec)
	}
	if cfg.DispatcherConcurrency != 8 {
		t.Errorf("DispatcherConcurrency = %d, want 8", cfg.DispatcherConcurrency)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when required variables are missing")
	}
}
