// Package event publishes ingestion outcome signals for monitoring.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

// Event types.
const (
	TypeCompleted = "ingestion.completed"
	TypePartial   = "ingestion.partial"
	TypeFailed    = "ingestion.failed"
	TypeWarning   = "ingestion.warning"
)

// Event is the outbound signal for one ingestion outcome.
type Event struct {
	ID             string           `json:"id"`
	Type           string           `json:"type"`
	RunID          string           `json:"runId"`
	UserID         string           `json:"userId"`
	Status         string           `json:"status"`
	RowCounts      entity.RowCounts `json:"rowCounts"`
	MissingBureaus []string         `json:"missingBureaus,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	ErrorCode      string           `json:"errorCode,omitempty"`
	At             time.Time        `json:"at"`
}

// TypeFor maps a terminal run status to its event type.
func TypeFor(status string) string {
	switch status {
	case entity.StatusCompleted:
		return TypeCompleted
	case entity.StatusPartial:
		return TypePartial
	}
	return TypeFailed
}

type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// LogSink writes events to the service log.
type LogSink struct {
	logger *zap.SugaredLogger
}

func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, ev Event) error {
	kv := []any{
		"event_id", ev.ID,
		"run_id", ev.RunID,
		"user_id", ev.UserID,
		"status", ev.Status,
		"row_counts", ev.RowCounts,
	}
	if len(ev.MissingBureaus) > 0 {
		kv = append(kv, "missing_bureaus", ev.MissingBureaus)
	}
	if ev.ErrorCode != "" {
		kv = append(kv, "error_code", ev.ErrorCode)
	}
	switch ev.Type {
	case TypeFailed, TypeWarning:
		s.logger.Warnw(ev.Type, kv...)
	default:
		s.logger.Infow(ev.Type, kv...)
	}
	return nil
}

type RedisConfig struct {
	Addr    string
	Channel string
}

// RedisConfigFromEnv reads REDIS_ADDR and REDIS_CHANNEL.
func RedisConfigFromEnv() RedisConfig {
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "credit-report.ingestions"
	}
	return RedisConfig{Addr: strings.TrimSpace(os.Getenv("REDIS_ADDR")), Channel: ch}
}

// RedisSink publishes events as JSON on a pub/sub channel.
type RedisSink struct {
	rdb     *goredis.Client
	channel string
}

// NewRedisSink connects and pings the server.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisSink{rdb: rdb, channel: cfg.Channel}, nil
}

func (s *RedisSink) Emit(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, raw).Err()
}

func (s *RedisSink) Close() error { return s.rdb.Close() }

// Multi fans an event out to every sink and combines their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Emit(ctx, ev))
	}
	return err
}

// Recorder keeps events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
