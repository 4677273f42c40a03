package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AUTO_MIGRATE", "REPORT_CACHE_TTL_SECONDS", "ACCESS_TOKEN_TTL_MINUTES", "TIMEZONE", "REFRESH_WORKERS"} {
		t.Setenv(key, "")
	}
	t.Setenv("INSIGHTS_REFRESH_SPEC", "")
	os.Unsetenv("INSIGHTS_REFRESH_SPEC")

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if !cfg.AutoMigrate {
		t.Fatalf("expected auto migrate by default")
	}
	if cfg.ReportCacheTTL() != time.Minute {
		t.Fatalf("expected 60s cache ttl, got %s", cfg.ReportCacheTTL())
	}
	if cfg.AccessTokenTTL() != 7*24*time.Hour {
		t.Fatalf("expected 7 day token ttl, got %s", cfg.AccessTokenTTL())
	}
	if cfg.Timezone != "Asia/Kolkata" {
		t.Fatalf("expected IST default, got %s", cfg.Timezone)
	}
	if cfg.InsightsRefreshSpec != "@every 30m" {
		t.Fatalf("expected default refresh spec, got %q", cfg.InsightsRefreshSpec)
	}
	if cfg.RefreshWorkers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.RefreshWorkers)
	}
}

func TestLoadEmptyRefreshSpecDisablesJob(t *testing.T) {
	t.Setenv("INSIGHTS_REFRESH_SPEC", "")

	if spec := Load().InsightsRefreshSpec; spec != "" {
		t.Fatalf("expected disabled refresh, got %q", spec)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "-5")
	t.Setenv("REFRESH_WORKERS", "lots")
	t.Setenv("AUTO_MIGRATE", "false")

	cfg := Load()
	if cfg.ReportCacheTTLSeconds != 60 || cfg.RefreshWorkers != 4 {
		t.Fatalf("expected fallbacks, got ttl=%d workers=%d", cfg.ReportCacheTTLSeconds, cfg.RefreshWorkers)
	}
	if cfg.AutoMigrate {
		t.Fatalf("expected AUTO_MIGRATE=false to be honoured")
	}
}
