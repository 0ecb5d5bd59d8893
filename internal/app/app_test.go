package app

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/config"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/ingest"
	reportentity "github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
	settingentity "github.com/ovaphlow/pitchfork/service-credit-report/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Database: database.Config{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "credit.db")},
		Scrape:   scrape.DefaultConfig(),
	}
}

func TestNew_WiresIngestion(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	run, err := a.Ingest.Ingest(ctx, ingest.Request{RunID: "run-1", UserID: "user-1", DryRun: true})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if run.Status != reportentity.StatusCompleted {
		t.Errorf("status = %s", run.Status)
	}
}

func TestNew_AppliesStoredScrapeSettings(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	logger := zap.NewNop().Sugar()

	first, err := New(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Settings.SaveScrape(ctx, settingentity.ScrapeSettings{RobotID: "robot-db", APIKey: "key-db"}); err != nil {
		t.Fatalf("SaveScrape: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg.SettingsFromDB = true
	cfg.Scrape.RobotID = "robot-env"
	second, err := New(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("New again: %v", err)
	}
	defer second.Close()
	if second.Scrape.RobotID != "robot-db" || second.Scrape.APIKey != "key-db" {
		t.Errorf("scrape = %+v", second.Scrape)
	}
	if second.Scrape.BaseURL != scrape.DefaultConfig().BaseURL {
		t.Errorf("base url overwritten: %q", second.Scrape.BaseURL)
	}
}
