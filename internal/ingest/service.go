// Package ingest runs one ingestion end to end: raw storage, canonical build,
// normalized persistence, completeness and the outbound event.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/canonical"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/document"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/event"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/observability"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/parser"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/utilities"
)

// WarnNoRows is the warning attached to a run that normalized to nothing.
const WarnNoRows = "no normalized rows were produced"

// Scraper is the upstream collaborator used by CollectScrapeRun.
type Scraper interface {
	DefaultRobot() string
	CollectCapturedLists(ctx context.Context, robotID, runID string) (json.RawMessage, error)
}

// Config carries the settings the service needs at construction time.
type Config struct {
	// MaxPayloadBytes bounds inbound request bodies in the HTTP handler.
	MaxPayloadBytes int64
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Request is one inbound ingestion trigger.
type Request struct {
	RunID       string          `json:"runId"`
	UserID      string          `json:"userId"`
	CollectedAt *time.Time      `json:"collectedAt,omitempty"`
	DryRun      bool            `json:"dryRun,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// envelope is the payload shape: exactly one of capturedLists, text or reportId.
type envelope struct {
	CapturedLists json.RawMessage `json:"capturedLists,omitempty"`
	Text          *string         `json:"text,omitempty"`
	ReportID      string          `json:"reportId,omitempty"`
}

type Service struct {
	repo    *repo.Repo
	docs    document.Source
	scraper Scraper
	sink    event.Sink
	logger  *zap.SugaredLogger
	cfg     Config
}

// NewService wires the ingestion pipeline. docs and scraper may be nil when
// the deployment does not use those input paths.
func NewService(r *repo.Repo, docs document.Source, scraper Scraper, sink event.Sink, logger *zap.SugaredLogger, cfg Config) *Service {
	if sink == nil {
		sink = event.NewLogSink(logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{repo: r, docs: docs, scraper: scraper, sink: sink, logger: logger, cfg: cfg}
}

func tracer() trace.Tracer { return otel.Tracer(observability.TracerName) }

// Ingest processes one request and returns the run's terminal ledger entry.
// A failed run is returned together with the error that failed it.
func (s *Service) Ingest(ctx context.Context, req Request) (*entity.Run, error) {
	source := ""
	if req.DryRun {
		source = entity.SourceDryRun
		if strings.TrimSpace(req.RunID) == "" {
			req.RunID = "dry-" + uuid.NewString()
		}
		payload, err := json.Marshal(map[string]any{"capturedLists": canonical.SampleCapturedLists()})
		if err != nil {
			return nil, err
		}
		req.Payload = payload
	}
	if err := requireIDs(req.RunID, req.UserID); err != nil {
		return nil, err
	}
	collectedAt := s.cfg.Now()
	if req.CollectedAt != nil && !req.CollectedAt.IsZero() {
		collectedAt = *req.CollectedAt
	}

	ctx, span := tracer().Start(ctx, "ingest")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", req.RunID), attribute.Bool("dry_run", req.DryRun))

	in, stored, kind, derr := s.decode(ctx, req.Payload)
	if source == "" {
		source = kind
	}
	run, err := s.begin(ctx, req.RunID, req.UserID, source)
	if err != nil {
		return nil, err
	}
	if derr != nil {
		return s.fail(ctx, run, derr)
	}
	return s.complete(ctx, run, collectedAt, in, stored)
}

// Renormalize rebuilds a run's report from its stored raw payload without
// contacting any upstream source.
func (s *Service) Renormalize(ctx context.Context, runID, userID string) (*entity.Run, error) {
	if err := requireIDs(runID, userID); err != nil {
		return nil, err
	}
	raw, err := s.repo.LoadRaw(ctx, runID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && raw.UserID != userID) {
		return nil, fmt.Errorf("%w: raw payload for run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	ctx, span := tracer().Start(ctx, "ingest")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID), attribute.Bool("renormalize", true))

	in, stored, kind, derr := s.decode(ctx, raw.Payload)
	source := raw.Source
	if source == "" {
		source = kind
	}
	run, err := s.begin(ctx, runID, userID, source)
	if err != nil {
		return nil, err
	}
	if derr != nil {
		return s.fail(ctx, run, derr)
	}
	return s.complete(ctx, run, raw.CollectedAt, in, stored)
}

// CollectScrapeRun waits for an upstream scrape run, downloads its captured
// lists and ingests them. robotID falls back to the configured robot.
func (s *Service) CollectScrapeRun(ctx context.Context, robotID, runID, userID string) (*entity.Run, error) {
	if err := requireIDs(runID, userID); err != nil {
		return nil, err
	}
	ctx, span := tracer().Start(ctx, "ingest")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID), attribute.String("robot_id", robotID))

	run, err := s.begin(ctx, runID, userID, entity.SourceScrape)
	if err != nil {
		return nil, err
	}
	if s.scraper == nil {
		return s.fail(ctx, run, scrape.ErrNotConfigured)
	}
	if robotID == "" {
		robotID = s.scraper.DefaultRobot()
	}
	lists, err := s.scraper.CollectCapturedLists(ctx, robotID, runID)
	if err != nil {
		return s.fail(ctx, run, err)
	}
	payload, err := json.Marshal(map[string]json.RawMessage{"capturedLists": lists})
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("%w: captured lists: %v", ErrSchemaInvalid, err))
	}
	in, stored, _, derr := s.decode(ctx, payload)
	if derr != nil {
		return s.fail(ctx, run, derr)
	}
	return s.complete(ctx, run, s.cfg.Now(), in, stored)
}

// Parse runs the free-text parser without persisting anything.
func (s *Service) Parse(text string) *parser.ParseResult {
	res := parser.Parse(text)
	observability.ParseConfidence.Observe(float64(res.ConfidenceScore))
	return res
}

// Run returns the ledger entry of (runID, userID).
func (s *Service) Run(ctx context.Context, runID, userID string) (*entity.Run, error) {
	run, err := s.repo.GetRun(ctx, runID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return run, err
}

// Runs lists a user's recent runs, newest first.
func (s *Service) Runs(ctx context.Context, userID string, limit int) ([]entity.Run, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrSchemaInvalid)
	}
	return s.repo.ListRuns(ctx, userID, limit)
}

// Report returns the stored canonical report of (runID, userID).
func (s *Service) Report(ctx context.Context, runID, userID string) (*entity.CreditReport, error) {
	report, err := s.repo.LoadReport(ctx, runID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, runID)
	}
	return report, err
}

func requireIDs(runID, userID string) error {
	switch {
	case strings.TrimSpace(runID) == "":
		return fmt.Errorf("%w: runId is required", ErrSchemaInvalid)
	case strings.TrimSpace(userID) == "":
		return fmt.Errorf("%w: userId is required", ErrSchemaInvalid)
	}
	return nil
}

// decode turns a payload envelope into builder input, the bytes to store as
// the raw record, and the source it came from. A reportId is resolved here so
// the stored record carries the text and replays never refetch it.
func (s *Service) decode(ctx context.Context, payload json.RawMessage) (canonical.Input, []byte, string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil, "", fmt.Errorf("%w: payload is required", ErrSchemaInvalid)
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, "", fmt.Errorf("%w: payload: %v", ErrSchemaInvalid, err)
	}
	switch {
	case len(env.CapturedLists) > 0 && string(env.CapturedLists) != "null":
		var lists canonical.CapturedLists
		if err := json.Unmarshal(env.CapturedLists, &lists); err != nil {
			return nil, nil, entity.SourceScrape, fmt.Errorf("%w: capturedLists must be an object", ErrSchemaInvalid)
		}
		if lists == nil {
			lists = canonical.CapturedLists{}
		}
		return lists, payload, entity.SourceScrape, nil
	case env.Text != nil:
		return canonical.RawText{Text: *env.Text}, payload, entity.SourceText, nil
	case env.ReportID != "":
		if s.docs == nil {
			return nil, nil, entity.SourceText, fmt.Errorf("%w: reportId given but no document source is configured", ErrSchemaInvalid)
		}
		text, err := s.docs.Text(ctx, env.ReportID)
		if errors.Is(err, document.ErrNotFound) || errors.Is(err, document.ErrInvalidID) {
			return nil, nil, entity.SourceText, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
		}
		if err != nil {
			return nil, nil, entity.SourceText, err
		}
		stored, err := json.Marshal(envelope{ReportID: env.ReportID, Text: &text})
		if err != nil {
			return nil, nil, entity.SourceText, err
		}
		return canonical.RawText{Text: text}, stored, entity.SourceText, nil
	}
	return nil, nil, "", fmt.Errorf("%w: payload needs capturedLists, text or reportId", ErrSchemaInvalid)
}

func (s *Service) begin(ctx context.Context, runID, userID, source string) (*entity.Run, error) {
	run := &entity.Run{
		RunID:     runID,
		UserID:    userID,
		Source:    source,
		Status:    entity.StatusProcessing,
		Warnings:  []string{},
		StartedAt: s.cfg.Now().UTC(),
	}
	if err := s.repo.MarkRun(ctx, *run); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBUpsert, err)
	}
	return run, nil
}

func (s *Service) complete(ctx context.Context, run *entity.Run, collectedAt time.Time, in canonical.Input, stored []byte) (*entity.Run, error) {
	err := s.repo.SaveRaw(ctx, entity.RawRecord{
		RunID:       run.RunID,
		UserID:      run.UserID,
		CollectedAt: collectedAt,
		Source:      run.Source,
		Payload:     stored,
	})
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("%w: %w", ErrDBUpsert, err))
	}

	_, nspan := tracer().Start(ctx, "ingest.normalize")
	res, err := canonical.Build(run.RunID, run.UserID, collectedAt, in)
	nspan.End()
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("%w: %w", ErrSchemaInvalid, err))
	}

	pctx, pspan := tracer().Start(ctx, "ingest.persist")
	counts, err := s.repo.ReplaceReport(pctx, res.Report, res.Confidence)
	pspan.End()
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("%w: %w", ErrDBUpsert, err))
	}

	run.RowCounts = counts
	run.ConfidenceScore = res.Confidence
	run.Warnings = append(run.Warnings, res.Warnings...)
	run.Status = entity.StatusCompleted
	empty := counts.Total() == 0
	if _, ok := in.(canonical.CapturedLists); ok {
		run.MissingBureaus = canonical.MissingBureaus(res.Report.Scores)
		if !empty {
			run.Status = canonical.Status(run.MissingBureaus)
		}
	}
	// An empty document is a valid outcome: completed, flagged by a warning event.
	if empty {
		run.Warnings = append(run.Warnings, WarnNoRows)
	}
	finished := s.cfg.Now().UTC()
	run.FinishedAt = &finished

	var markErr error
	if err := s.repo.MarkRun(context.WithoutCancel(ctx), *run); err != nil {
		markErr = fmt.Errorf("%w: %w", ErrDBUpsert, err)
	}

	s.emit(ctx, run, event.TypeFor(run.Status))
	if empty {
		s.emit(ctx, run, event.TypeWarning)
	}
	s.observe(run, res.Confidence)
	s.logger.Infow("ingestion finished",
		"run_id", run.RunID,
		"user_id", run.UserID,
		"source", run.Source,
		"status", run.Status,
		"row_counts", run.RowCounts,
		"missing_bureaus", run.MissingBureaus,
		"warnings", len(run.Warnings),
	)
	return run, markErr
}

// fail records a terminal failure. The ledger write ignores ctx cancellation
// so a timed-out run is never left processing.
func (s *Service) fail(ctx context.Context, run *entity.Run, cause error) (*entity.Run, error) {
	finished := s.cfg.Now().UTC()
	run.Status = entity.StatusFailed
	run.ErrorCode = CodeOf(cause)
	run.Error = cause.Error()
	run.FinishedAt = &finished

	err := cause
	if merr := s.repo.MarkRun(context.WithoutCancel(ctx), *run); merr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %w", ErrDBUpsert, merr))
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(cause)
	span.SetStatus(codes.Error, run.ErrorCode)

	s.emit(ctx, run, event.TypeFailed)
	s.observe(run, nil)
	s.logger.Warnw("ingestion failed",
		"run_id", run.RunID,
		"user_id", run.UserID,
		"source", run.Source,
		"error_code", run.ErrorCode,
		"err", cause,
	)
	return run, err
}

func (s *Service) emit(ctx context.Context, run *entity.Run, typ string) {
	ev := event.Event{
		ID:             utilities.NewSnowflakeID(),
		Type:           typ,
		RunID:          run.RunID,
		UserID:         run.UserID,
		Status:         run.Status,
		RowCounts:      run.RowCounts,
		MissingBureaus: run.MissingBureaus,
		Warnings:       run.Warnings,
		ErrorCode:      run.ErrorCode,
		At:             s.cfg.Now().UTC(),
	}
	if err := s.sink.Emit(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warnw("emit ingestion event", "run_id", run.RunID, "type", typ, "err", err)
	}
}

func (s *Service) observe(run *entity.Run, confidence *int) {
	observability.IngestionsTotal.WithLabelValues(run.Source, run.Status).Inc()
	observability.IngestionDuration.WithLabelValues(run.Source).Observe(s.cfg.Now().Sub(run.StartedAt).Seconds())
	if confidence != nil {
		observability.ParseConfidence.Observe(float64(*confidence))
	}
	if run.Status == entity.StatusFailed {
		return
	}
	observability.RowsWritten.WithLabelValues("credit_reports").Add(float64(run.RowCounts.Reports))
	observability.RowsWritten.WithLabelValues("credit_scores").Add(float64(run.RowCounts.Scores))
	observability.RowsWritten.WithLabelValues("credit_accounts").Add(float64(run.RowCounts.Accounts))
}
