// Package config aggregates every component's settings into one struct that
// binaries build once at startup and pass down explicitly.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/event"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/observability"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/utilities"
)

type Config struct {
	HTTPAddr       string
	Database       database.Config
	Log            utilities.Config
	Scrape         scrape.Config
	Redis          event.RedisConfig
	Tracing        observability.TracingConfig
	DocumentsDir   string
	SettingsFromDB bool
}

// fileConfig is the YAML overlay shape. Empty values leave env values alone.
type fileConfig struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
		Dev   *bool  `yaml:"dev"`
	} `yaml:"log"`
	Scrape struct {
		BaseURL        string   `yaml:"baseUrl"`
		APIKey         string   `yaml:"apiKey"`
		RobotID        string   `yaml:"robotId"`
		PollInitial    string   `yaml:"pollInitial"`
		PollMax        string   `yaml:"pollMax"`
		Timeout        string   `yaml:"timeout"`
		DownloadDelays []string `yaml:"downloadDelays"`
	} `yaml:"scrape"`
	Redis struct {
		Addr    string `yaml:"addr"`
		Channel string `yaml:"channel"`
	} `yaml:"redis"`
	Tracing struct {
		Enabled  *bool  `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"tracing"`
	Documents struct {
		Dir string `yaml:"dir"`
	} `yaml:"documents"`
}

// FromEnv builds the config from environment variables and defaults.
func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	return Config{
		HTTPAddr:       addr,
		Database:       database.ConfigFromEnv(),
		Log:            utilities.ConfigFromEnv(),
		Scrape:         scrape.ConfigFromEnv(),
		Redis:          event.RedisConfigFromEnv(),
		Tracing:        observability.TracingConfigFromEnv(),
		DocumentsDir:   os.Getenv("DOCUMENTS_DIR"),
		SettingsFromDB: os.Getenv("SETTINGS_FROM_DB") == "1",
	}
}

// Load reads the environment and applies CONFIG_FILE when it is set.
func Load() (Config, error) {
	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := Overlay(&cfg, path); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Overlay applies the non-empty values of a YAML file on top of cfg.
func Overlay(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.HTTPAddr, fc.HTTP.Addr)
	setString(&cfg.Database.Driver, strings.ToLower(fc.Database.Driver))
	setString(&cfg.Database.DSN, fc.Database.URL)
	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.File, fc.Log.File)
	if fc.Log.Dev != nil {
		cfg.Log.Dev = *fc.Log.Dev
	}
	setString(&cfg.Scrape.BaseURL, strings.TrimRight(fc.Scrape.BaseURL, "/"))
	setString(&cfg.Scrape.APIKey, fc.Scrape.APIKey)
	setString(&cfg.Scrape.RobotID, fc.Scrape.RobotID)
	for _, d := range []struct {
		dst *time.Duration
		raw string
	}{
		{&cfg.Scrape.PollInitial, fc.Scrape.PollInitial},
		{&cfg.Scrape.PollMax, fc.Scrape.PollMax},
		{&cfg.Scrape.Timeout, fc.Scrape.Timeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		*d.dst = v
	}
	if len(fc.Scrape.DownloadDelays) > 0 {
		delays, ok := scrape.ParseDelays(strings.Join(fc.Scrape.DownloadDelays, ","))
		if !ok {
			return fmt.Errorf("config file %s: invalid scrape.downloadDelays", path)
		}
		cfg.Scrape.DownloadRetryDelays = delays
	}
	setString(&cfg.Redis.Addr, fc.Redis.Addr)
	setString(&cfg.Redis.Channel, fc.Redis.Channel)
	if fc.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *fc.Tracing.Enabled
	}
	setString(&cfg.Tracing.Endpoint, fc.Tracing.Endpoint)
	setString(&cfg.DocumentsDir, fc.Documents.Dir)
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
