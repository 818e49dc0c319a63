package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("CATALOG_TTL_SECONDS", "not-a-number")
	t.Setenv("LOYALTY_EXPIRY_DAYS", "-3")

	cfg := Load()
	if cfg.CatalogTTLSeconds != 300 {
		t.Fatalf("expected catalog TTL fallback 300, got %d", cfg.CatalogTTLSeconds)
	}
	if cfg.LoyaltyExpiryDays != 365 {
		t.Fatalf("expected expiry fallback 365, got %d", cfg.LoyaltyExpiryDays)
	}
}
