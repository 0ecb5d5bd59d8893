// Package scrape talks to the upstream scraping robot: it polls a run until it
// reaches a final status and fetches the captured lists it produced.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/observability"
)

// Upstream run statuses.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in-progress"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
)

// Task is one upstream run as reported by the status endpoint.
type Task struct {
	ID                       string          `json:"id"`
	Status                   string          `json:"status"`
	CapturedLists            json.RawMessage `json:"capturedLists,omitempty"`
	CapturedDataTemporaryURL string          `json:"capturedDataTemporaryUrl,omitempty"`
}

// taskEnvelope accepts both {"status", "result"} and a result-only body.
type taskEnvelope struct {
	Status string `json:"status"`
	Result *Task  `json:"result"`
}

var errStillRunning = errors.New("scrape: run still in progress")

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.SugaredLogger
}

// NewClient constructs a Client. A nil httpClient gets one with cfg.HTTPTimeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if cfg.PollMultiplier < 1 {
		cfg.PollMultiplier = 1.5
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultConfig().MaxPayloadBytes
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// DefaultRobot is the robot used when a request does not name one.
func (c *Client) DefaultRobot() string { return c.cfg.RobotID }

// GetTask fetches the current state of one run.
func (c *Client) GetTask(ctx context.Context, robotID, runID string) (*Task, error) {
	if c.cfg.APIKey == "" || c.cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/robots/" + url.PathEscape(robotID) + "/tasks/" + url.PathEscape(runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrBadCredentials
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: robot %s run %s", ErrRobotNotFound, robotID, runID)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("get task: unexpected status %d", resp.StatusCode)
	}

	var env taskEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.cfg.MaxPayloadBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	task := env.Result
	if task == nil {
		task = &Task{}
	}
	if task.Status == "" {
		task.Status = env.Status
	}
	if task.ID == "" {
		task.ID = runID
	}
	return task, nil
}

// WaitForRun polls until the run succeeds, fails or cfg.Timeout elapses. The
// poll interval grows geometrically up to cfg.PollMax.
func (c *Client) WaitForRun(ctx context.Context, robotID, runID string) (*Task, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "scrape.wait")
	span.SetAttributes(attribute.String("robot_id", robotID), attribute.String("run_id", runID))
	defer span.End()

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.PollInitial
	b.MaxInterval = c.cfg.PollMax
	b.Multiplier = c.cfg.PollMultiplier
	b.RandomizationFactor = 0

	poll := func() (*Task, error) {
		task, err := c.GetTask(waitCtx, robotID, runID)
		if err != nil {
			observability.ScrapePolls.WithLabelValues("error").Inc()
			if errors.Is(err, ErrBadCredentials) || errors.Is(err, ErrRobotNotFound) || errors.Is(err, ErrNotConfigured) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		observability.ScrapePolls.WithLabelValues(task.Status).Inc()
		switch task.Status {
		case StatusSuccessful:
			return task, nil
		case StatusFailed:
			return nil, backoff.Permanent(fmt.Errorf("%w: run %s", ErrRunFailed, runID))
		}
		return nil, errStillRunning
	}

	task, err := backoff.Retry(waitCtx, poll,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.cfg.Timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debugw("scrape run not ready", "run_id", runID, "next_poll", next, "err", err)
		}),
	)
	if err == nil {
		return task, nil
	}
	span.RecordError(err)
	if Code(err) != "" {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: run %s after %s (last: %v)", ErrRunTimeout, runID, c.cfg.Timeout, err)
}

// schedule is a fixed list of waits between attempts.
type schedule struct {
	delays []time.Duration
	next   int
}

func (s *schedule) NextBackOff() time.Duration {
	if s.next >= len(s.delays) {
		return backoff.Stop
	}
	d := s.delays[s.next]
	s.next++
	return d
}

func (s *schedule) Reset() { s.next = 0 }

// Download fetches captured data from a temporary URL, retrying on the
// configured schedule. Client errors other than 408 and 429 are not retried.
func (c *Client) Download(ctx context.Context, rawURL string) (json.RawMessage, error) {
	attempt := func() (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			err := fmt.Errorf("download: status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
				resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxPayloadBytes))
		if err != nil {
			return nil, err
		}
		return capturedListsOf(body)
	}

	data, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(&schedule{delays: c.cfg.DownloadRetryDelays}),
		backoff.WithMaxTries(uint(len(c.cfg.DownloadRetryDelays))+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warnw("captured data download failed, retrying", "next_attempt", next, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return data, nil
}

// capturedListsOf accepts either the bare lists object or a wrapper holding
// capturedLists.
func capturedListsOf(body []byte) (json.RawMessage, error) {
	var wrapper struct {
		CapturedLists json.RawMessage `json:"capturedLists"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode captured data: %w", err))
	}
	if len(wrapper.CapturedLists) > 0 && string(wrapper.CapturedLists) != "null" {
		return wrapper.CapturedLists, nil
	}
	return json.RawMessage(body), nil
}

// CollectCapturedLists waits for the run and returns its captured lists,
// downloading them when the status response only carries a temporary URL.
func (c *Client) CollectCapturedLists(ctx context.Context, robotID, runID string) (json.RawMessage, error) {
	task, err := c.WaitForRun(ctx, robotID, runID)
	if err != nil {
		return nil, err
	}
	if len(task.CapturedLists) > 0 && string(task.CapturedLists) != "null" {
		return task.CapturedLists, nil
	}
	if task.CapturedDataTemporaryURL != "" {
		return c.Download(ctx, task.CapturedDataTemporaryURL)
	}
	c.logger.Warnw("scrape run finished without captured data", "run_id", runID)
	return json.RawMessage("{}"), nil
}
