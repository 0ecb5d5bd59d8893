package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
http:
  addr: 127.0.0.1:9000
database:
  driver: SQLite
  url: ":memory:"
scrape:
  apiKey: from-file
  timeout: 2m
  downloadDelays: ["1s", "3s"]
tracing:
  enabled: true
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := FromEnv()
	cfg.Scrape.RobotID = "from-env"
	if err := Overlay(&cfg, path); err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.Database.Driver != "sqlite" || cfg.Database.DSN != ":memory:" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Scrape.APIKey != "from-file" || cfg.Scrape.RobotID != "from-env" {
		t.Errorf("scrape = %+v", cfg.Scrape)
	}
	if cfg.Scrape.Timeout != 2*time.Minute || len(cfg.Scrape.DownloadRetryDelays) != 2 {
		t.Errorf("timings = %v %v", cfg.Scrape.Timeout, cfg.Scrape.DownloadRetryDelays)
	}
	if !cfg.Tracing.Enabled {
		t.Error("tracing should be enabled by the file")
	}
}

func TestOverlay_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("scrape:\n  pollMax: fast\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := FromEnv()
	if err := Overlay(&cfg, path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SCRAPE_TIMEOUT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scrape.PollInitial != time.Second || cfg.Scrape.PollMax != 10*time.Second || cfg.Scrape.Timeout != 5*time.Minute {
		t.Errorf("scrape defaults = %+v", cfg.Scrape)
	}
	if cfg.HTTPAddr == "" {
		t.Error("empty http addr")
	}
}
