package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetAppConfigDefaults(t *testing.T) {
	for _, k := range []string{"TENDER_DB_PATH", "TENDER_CONFIG_PATH", "TENDER_COOKIES_PATH", "TENDER_HEADLESS",
		"TENDER_AUTOSAVE_EVERY", "TENDER_POLL_INTERVAL", "TENDER_LOOKUP_CACHE_TTL", "TENDER_SERVE_ADDR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("HOME", "/home/tester")

	cfg, err := GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() error = %v", err)
	}
	if cfg.DBPath != "./local-data/tender.db" {
		t.Errorf("DBPath = %s, want ./local-data/tender.db", cfg.DBPath)
	}
	if cfg.CookiesPath != "/home/tester/.yandex_parser_auth/cookies.json" {
		t.Errorf("CookiesPath = %s", cfg.CookiesPath)
	}
	if !cfg.Headless {
		t.Errorf("Headless = false, want true")
	}
	if cfg.AutoSaveEvery != 3 {
		t.Errorf("AutoSaveEvery = %d, want 3", cfg.AutoSaveEvery)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", cfg.PollInterval)
	}
	if cfg.LookupCacheTTL != 24*time.Hour {
		t.Errorf("LookupCacheTTL = %v, want 24h", cfg.LookupCacheTTL)
	}
	if cfg.ServeAddr != ":8080" {
		t.Errorf("ServeAddr = %s, want :8080", cfg.ServeAddr)
	}
}

func TestGetAppConfigFromEnv(t *testing.T) {
	t.Setenv("TENDER_DB_PATH", "/tmp/x.db")
	t.Setenv("TENDER_HEADLESS", "false")
	t.Setenv("TENDER_AUTOSAVE_EVERY", "5")
	t.Setenv("TENDER_POLL_INTERVAL", "250ms")
	t.Setenv("TENDER_COOKIES_PATH", "/etc/cookies.json")

	cfg, err := GetAppConfig()
	if err != nil {
		t.Fatalf("GetAppConfig() error = %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Headless || cfg.AutoSaveEvery != 5 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if cfg.CookiesPath != "/etc/cookies.json" {
		t.Errorf("CookiesPath = %s", cfg.CookiesPath)
	}

	t.Setenv("TENDER_AUTOSAVE_EVERY", "-1")
	if _, err := GetAppConfig(); err == nil {
		t.Error("expected error for negative autosave interval")
	}
}

func TestLoadSiteConfigMissingFile(t *testing.T) {
	cfg, err := LoadSiteConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSiteConfig() error = %v", err)
	}
	if cfg.Limits.Results != 5 || cfg.Limits.QueryLen != 50 {
		t.Errorf("defaults not applied: %+v", cfg.Limits)
	}
}

func TestLoadSiteConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
search_url: "https://example.com/search?q="
limits:
  results: 3
navigation:
  pause: 2s
labels:
  business: ["с ндс"]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadSiteConfig(path)
	if err != nil {
		t.Fatalf("LoadSiteConfig() error = %v", err)
	}
	if cfg.SearchURL != "https://example.com/search?q=" {
		t.Errorf("SearchURL = %s", cfg.SearchURL)
	}
	if cfg.Limits.Results != 3 {
		t.Errorf("Limits.Results = %d, want 3", cfg.Limits.Results)
	}
	if cfg.Limits.PriceLines != 4 {
		t.Errorf("Limits.PriceLines = %d, want default 4", cfg.Limits.PriceLines)
	}
	if cfg.Navigation.Pause != 2*time.Second {
		t.Errorf("Navigation.Pause = %v, want 2s", cfg.Navigation.Pause)
	}
	if len(cfg.Labels.Business) != 1 || cfg.Labels.Business[0] != "с ндс" {
		t.Errorf("Labels.Business = %v", cfg.Labels.Business)
	}
	if len(cfg.Labels.Regular) != 2 {
		t.Errorf("Labels.Regular = %v, want defaults", cfg.Labels.Regular)
	}
}

func TestLoadSiteConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("limits:\n  results: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSiteConfig(path); err == nil {
		t.Error("expected validation error")
	}
}
