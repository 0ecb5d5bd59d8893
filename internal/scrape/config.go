package scrape

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds upstream credentials and timing. It is passed in explicitly;
// the client never reads the environment itself.
type Config struct {
	BaseURL        string
	APIKey         string
	RobotID        string
	PollInitial    time.Duration
	PollMax        time.Duration
	PollMultiplier float64
	Timeout        time.Duration
	// DownloadRetryDelays are the waits between download attempts.
	DownloadRetryDelays []time.Duration
	HTTPTimeout         time.Duration
	MaxPayloadBytes     int64
}

// DefaultConfig returns the production timings with no credentials.
func DefaultConfig() Config {
	return Config{
		BaseURL:             "https://api.browse.ai/v2",
		PollInitial:         time.Second,
		PollMax:             10 * time.Second,
		PollMultiplier:      1.5,
		Timeout:             5 * time.Minute,
		DownloadRetryDelays: []time.Duration{30 * time.Second, 90 * time.Second},
		HTTPTimeout:         30 * time.Second,
		MaxPayloadBytes:     64 << 20,
	}
}

// ConfigFromEnv reads scrape config from environment variables
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("SCRAPE_BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	cfg.APIKey = os.Getenv("SCRAPE_API_KEY")
	cfg.RobotID = os.Getenv("SCRAPE_ROBOT_ID")
	if d, err := time.ParseDuration(os.Getenv("SCRAPE_POLL_INITIAL")); err == nil && d > 0 {
		cfg.PollInitial = d
	}
	if d, err := time.ParseDuration(os.Getenv("SCRAPE_POLL_MAX")); err == nil && d > 0 {
		cfg.PollMax = d
	}
	if d, err := time.ParseDuration(os.Getenv("SCRAPE_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if v := os.Getenv("SCRAPE_DOWNLOAD_DELAYS"); v != "" {
		if delays, ok := ParseDelays(v); ok {
			cfg.DownloadRetryDelays = delays
		}
	}
	if n, err := strconv.ParseInt(os.Getenv("SCRAPE_MAX_PAYLOAD_BYTES"), 10, 64); err == nil && n > 0 {
		cfg.MaxPayloadBytes = n
	}
	return cfg
}

// ParseDelays reads a comma separated duration list such as "30s,90s".
func ParseDelays(s string) ([]time.Duration, bool) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil || d < 0 {
			return nil, false
		}
		out = append(out, d)
	}
	return out, true
}
