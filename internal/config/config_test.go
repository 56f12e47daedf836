package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
api_base_url: https://core.example-metering.com/v1
api_key: k
api_credentials: c
organizations:
  Acme Foods:
    - Freezer 1
    - Oven
  Globex: []
resolution_seconds: 300
daily_at: "07:30"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENERGYWATCH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ResolutionSeconds != 300 || cfg.DailyAt != "07:30" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Organizations["Acme Foods"]) != 2 {
		t.Errorf("organizations = %v", cfg.Organizations)
	}

	names := cfg.OrganizationNames()
	if len(names) != 2 || names[0] != "Acme Foods" || names[1] != "Globex" {
		t.Errorf("names = %v, want stable sorted order", names)
	}
}

func TestLoadRequiresOrganizations(t *testing.T) {
	t.Setenv("ENERGYWATCH_CONFIG", "")
	t.Setenv("ENERGYWATCH_API_URL", "https://core.example-metering.com/v1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when no organizations are configured")
	}
}

func TestEnvFallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("organizations:\n  Acme: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENERGYWATCH_CONFIG", path)
	t.Setenv("ENERGYWATCH_RESOLUTION", "120")
	t.Setenv("ENERGYWATCH_LISTEN_ADDR", ":9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ResolutionSeconds != 120 || cfg.ListenAddr != ":9999" {
		t.Errorf("cfg = %+v", cfg)
	}
}
