package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("STALE_AFTER", "")
	t.Setenv("SCRAPE_CITIES", "")

	cfg := Load()
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize: got %d, want 100", cfg.BatchSize)
	}
	if cfg.StaleAfter != 7*24*time.Hour {
		t.Errorf("StaleAfter: got %v, want 168h", cfg.StaleAfter)
	}
	if len(cfg.Cities) != 5 || cfg.Cities[0] != "Vilnius" {
		t.Errorf("Cities: got %v", cfg.Cities)
	}
	if cfg.Schedule != "0 3 * * *" {
		t.Errorf("Schedule: got %q", cfg.Schedule)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("SCRAPER_TIMEOUT", "90s")
	t.Setenv("RUN_SCRAPER_ON_START", "true")
	t.Setenv("SCRAPE_CITIES", " Vilnius , ,Kaunas")
	t.Setenv("GEOCODER_RPS", "0.5")
	t.Setenv("BATCH_INTERVAL", "250ms")

	cfg := Load()
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize: got %d, want 25", cfg.BatchSize)
	}
	if cfg.ScraperTimeout != 90*time.Second {
		t.Errorf("ScraperTimeout: got %v, want 90s", cfg.ScraperTimeout)
	}
	if !cfg.RunOnStart {
		t.Error("RunOnStart should be true")
	}
	if len(cfg.Cities) != 2 || cfg.Cities[1] != "Kaunas" {
		t.Errorf("Cities: got %v", cfg.Cities)
	}
	if cfg.GeocoderRPS != 0.5 {
		t.Errorf("GeocoderRPS: got %v, want 0.5", cfg.GeocoderRPS)
	}
	if cfg.BatchInterval != 250*time.Millisecond {
		t.Errorf("BatchInterval: got %v, want 250ms", cfg.BatchInterval)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BATCH_SIZE", "lots")
	t.Setenv("BATCH_DELAY", "soon")

	cfg := Load()
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize: got %d, want fallback 100", cfg.BatchSize)
	}
	if cfg.BatchDelay != 500*time.Millisecond {
		t.Errorf("BatchDelay: got %v, want fallback 500ms", cfg.BatchDelay)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "nt", PostgresSSLMode: "disable",
	}
	want := "host=db port=5433 user=u password=p dbname=nt sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}
