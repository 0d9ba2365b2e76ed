package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("DISCOVERY_BASE_URL", "http://discovery.local/")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.GetDiscoveryBaseURL() != "http://discovery.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.GetDiscoveryBaseURL())
	}
	if cfg.GetDiscoveryTimeout() != 30*time.Second {
		t.Fatalf("expected 30s discovery timeout, got %s", cfg.GetDiscoveryTimeout())
	}
	if cfg.GetSearchDefaultLimit() != 3 || cfg.GetSearchMaxLimit() != 200 {
		t.Fatalf("unexpected search limits %d/%d", cfg.GetSearchDefaultLimit(), cfg.GetSearchMaxLimit())
	}
	if cfg.GetDeliveryHistoryCap() != 5000 {
		t.Fatalf("expected history cap 5000, got %d", cfg.GetDeliveryHistoryCap())
	}
	if cfg.GetAuthCookieName() != "sb-access-token" {
		t.Fatalf("unexpected cookie name %q", cfg.GetAuthCookieName())
	}
}

func TestLoadFallsBackToLegacyDiscoveryVariable(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VPS_API_BASE", "http://vps.local")
	if err := os.Unsetenv("DISCOVERY_BASE_URL"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetDiscoveryBaseURL() != "http://vps.local" {
		t.Fatalf("expected legacy base url, got %q", cfg.GetDiscoveryBaseURL())
	}
}

func TestLoadExplicitEmptyDiscoveryURLIsRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DISCOVERY_BASE_URL", "")
	t.Setenv("VPS_API_BASE", "http://vps.local")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DISCOVERY_BASE_URL is set but empty")
	}
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when AUTH_JWT_SECRET is missing")
	}
}

func TestLoadRejectsDefaultAboveMax(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SEARCH_DEFAULT_LIMIT", "50")
	t.Setenv("SEARCH_MAX_LIMIT", "10")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when default limit exceeds max")
	}
}

func TestCORSWildcardForbidsCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for wildcard origins with credentials")
	}
}
