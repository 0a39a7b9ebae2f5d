package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCoversAllVenues(t *testing.T) {
	cfg := Default()
	for _, venue := range []string{"binance", "mexc", "kucoin", "okx", "kraken", "bitfinex", "luno"} {
		settings, ok := cfg.Venue(venue)
		if !ok {
			t.Fatalf("missing defaults for %s", venue)
		}
		if settings.BaseURL == "" {
			t.Fatalf("%s has no base URL", venue)
		}
		if settings.HTTPTimeout <= 0 {
			t.Fatalf("%s has no HTTP timeout", venue)
		}
		if settings.TakerFee == "" {
			t.Fatalf("%s has no taker fee", venue)
		}
	}
}

func TestVenueLookupIsCaseInsensitive(t *testing.T) {
	cfg := Default()
	if _, ok := cfg.Venue("  Binance "); !ok {
		t.Fatalf("expected case-insensitive venue lookup")
	}
}

func TestFromEnvOverridesBaseURL(t *testing.T) {
	t.Setenv("KRAKEN_BASE_URL", "http://localhost:9999")
	t.Setenv("KRAKEN_HTTP_TIMEOUT", "5s")
	cfg := FromEnv()
	venue, _ := cfg.Venue("kraken")
	if venue.BaseURL != "http://localhost:9999" {
		t.Fatalf("env override ignored: %s", venue.BaseURL)
	}
	if venue.HTTPTimeout != 5*time.Second {
		t.Fatalf("timeout override ignored: %v", venue.HTTPTimeout)
	}
}

func TestLoadMergesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "execgate.yaml")
	payload := []byte(`
environment: staging
venues:
  kucoin:
    baseUrl: http://localhost:8080
    minRequestInterval: 50ms
    minLots:
      xrp: "0.5"
telemetry:
  otlpEndpoint: http://localhost:4318
`)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded {
		t.Fatalf("expected file to be loaded")
	}
	if cfg.Environment != EnvStaging {
		t.Fatalf("environment not merged: %s", cfg.Environment)
	}
	venue, _ := cfg.Venue("kucoin")
	if venue.BaseURL != "http://localhost:8080" {
		t.Fatalf("base URL not merged: %s", venue.BaseURL)
	}
	if venue.MinRequestInterval != 50*time.Millisecond {
		t.Fatalf("interval not merged: %v", venue.MinRequestInterval)
	}
	if venue.MinLots["XRP"] != "0.5" {
		t.Fatalf("min lot not merged: %v", venue.MinLots)
	}
	// Untouched defaults survive the merge.
	if venue.TakerFee != "0.001" {
		t.Fatalf("taker fee clobbered: %s", venue.TakerFee)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://localhost:4318" {
		t.Fatalf("telemetry endpoint not merged")
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded {
		t.Fatalf("missing file must not report loaded")
	}
	if _, ok := cfg.Venue("binance"); !ok {
		t.Fatalf("defaults missing after fallback")
	}
}
