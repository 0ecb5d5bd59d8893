package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/document"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/event"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

type fakeScraper struct {
	lists json.RawMessage
	err   error
	robot string
}

func (f *fakeScraper) DefaultRobot() string { return "default-robot" }

func (f *fakeScraper) CollectCapturedLists(_ context.Context, robotID, _ string) (json.RawMessage, error) {
	f.robot = robotID
	return f.lists, f.err
}

type fixture struct {
	svc  *Service
	db   *sqlx.DB
	repo *repo.Repo
	docs *document.DBSource
	rec  *event.Recorder
}

func newFixture(t *testing.T, scraper Scraper) fixture {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	r := repo.NewRepo(db)
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	docs := document.NewDBSource(db)
	if err := docs.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	rec := &event.Recorder{}
	svc := NewService(r, docs, scraper, rec, zap.NewNop().Sugar(), Config{})
	return fixture{svc: svc, db: db, repo: r, docs: docs, rec: rec}
}

func eventTypes(evs []event.Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

var collected = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestIngest_AllEmptyPayloadCompletesWithWarning(t *testing.T) {
	f := newFixture(t, nil)
	run, err := f.svc.Ingest(context.Background(), Request{
		RunID: "run-empty", UserID: "user-1", CollectedAt: &collected,
		Payload: json.RawMessage(`{"capturedLists": {}}`),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if run.Status != entity.StatusCompleted {
		t.Errorf("status = %s", run.Status)
	}
	if run.RowCounts != (entity.RowCounts{}) {
		t.Errorf("counts = %+v, want all zero", run.RowCounts)
	}
	want := []string{event.TypeCompleted, event.TypeWarning}
	evs := f.rec.Events()
	if got := eventTypes(evs); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	for _, ev := range evs {
		if ev.RowCounts != (entity.RowCounts{}) {
			t.Errorf("%s event counts = %+v, want all zero", ev.Type, ev.RowCounts)
		}
	}
	stored, err := f.repo.GetRun(context.Background(), "run-empty", "user-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != entity.StatusCompleted || stored.FinishedAt == nil {
		t.Errorf("stored run = %+v", stored)
	}
}

func TestIngest_MissingBureauIsPartial(t *testing.T) {
	f := newFixture(t, nil)
	run, err := f.svc.Ingest(context.Background(), Request{
		RunID: "run-partial", UserID: "user-1", CollectedAt: &collected,
		Payload: json.RawMessage(`{"capturedLists": {"Credit Score": ["Equifax 700", "Experian 701"]}}`),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if run.Status != entity.StatusPartial {
		t.Errorf("status = %s", run.Status)
	}
	if !reflect.DeepEqual(run.MissingBureaus, []string{"transunion"}) {
		t.Errorf("missing = %v", run.MissingBureaus)
	}
	if run.RowCounts.Scores != 2 {
		t.Errorf("scores = %d", run.RowCounts.Scores)
	}
	evs := f.rec.Events()
	if len(evs) != 1 || evs[0].Type != event.TypePartial {
		t.Errorf("events = %v", eventTypes(evs))
	}
}

func TestIngest_DryRunUsesSample(t *testing.T) {
	f := newFixture(t, nil)
	run, err := f.svc.Ingest(context.Background(), Request{UserID: "user-1", DryRun: true})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if run.RunID == "" || run.Source != entity.SourceDryRun {
		t.Errorf("run = %+v", run)
	}
	if run.Status != entity.StatusCompleted {
		t.Errorf("status = %s, missing = %v", run.Status, run.MissingBureaus)
	}
	if run.RowCounts.Scores != 3 || run.RowCounts.Accounts != 3 {
		t.Errorf("counts = %+v", run.RowCounts)
	}
}

func TestIngest_IsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := Request{RunID: "run-twice", UserID: "user-1", CollectedAt: &collected, DryRun: true}

	first, err := f.svc.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	firstReport, err := f.svc.Report(ctx, "run-twice", "user-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	second, err := f.svc.Ingest(ctx, req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.RowCounts != second.RowCounts {
		t.Errorf("counts differ: %+v vs %+v", first.RowCounts, second.RowCounts)
	}
	stored, err := f.repo.StoredCounts(ctx, "run-twice", "user-1")
	if err != nil {
		t.Fatalf("StoredCounts: %v", err)
	}
	if stored.Scores != first.RowCounts.Scores || stored.Accounts != first.RowCounts.Accounts {
		t.Errorf("stored = %+v, reported = %+v", stored, first.RowCounts)
	}
	secondReport, err := f.svc.Report(ctx, "run-twice", "user-1")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !reflect.DeepEqual(firstReport, secondReport) {
		t.Error("stored report changed on re-ingest")
	}
}

func TestIngest_SchemaInvalid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Ingest(ctx, Request{UserID: "user-1", Payload: json.RawMessage(`{"text":""}`)}); CodeOf(err) != CodeSchemaInvalid {
		t.Errorf("missing runId: code = %q (%v)", CodeOf(err), err)
	}

	cases := map[string]string{
		"no payload":     ``,
		"not json":       `{`,
		"unknown shape":  `{"foo": 1}`,
		"lists as array": `{"capturedLists": []}`,
		"missing doc":    `{"reportId": "nope"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			run, err := f.svc.Ingest(ctx, Request{RunID: "run-bad", UserID: "user-1", Payload: json.RawMessage(payload)})
			if CodeOf(err) != CodeSchemaInvalid {
				t.Fatalf("code = %q (%v)", CodeOf(err), err)
			}
			if run == nil || run.Status != entity.StatusFailed || run.ErrorCode != CodeSchemaInvalid {
				t.Errorf("run = %+v", run)
			}
			if StatusFor(err) != http.StatusBadRequest {
				t.Errorf("http status = %d", StatusFor(err))
			}
		})
	}
}

func TestIngest_StorageFailureMarksRunFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.db.ExecContext(ctx, `DROP TABLE credit_scores`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	run, err := f.svc.Ingest(ctx, Request{
		RunID: "run-db", UserID: "user-1", CollectedAt: &collected,
		Payload: json.RawMessage(`{"capturedLists": {"Credit Score": ["Equifax 700"]}}`),
	})
	if err == nil {
		t.Fatal("expected a storage error")
	}
	if !errors.Is(err, ErrDBUpsert) || CodeOf(err) != CodeDBUpsert {
		t.Fatalf("code = %q (%v)", CodeOf(err), err)
	}
	if StatusFor(err) != http.StatusInternalServerError {
		t.Errorf("http status = %d", StatusFor(err))
	}
	if run == nil || run.Status != entity.StatusFailed || run.ErrorCode != CodeDBUpsert {
		t.Fatalf("run = %+v", run)
	}

	stored, err := f.repo.GetRun(ctx, "run-db", "user-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != entity.StatusFailed || stored.ErrorCode != CodeDBUpsert {
		t.Errorf("ledger = %+v", stored)
	}
	evs := f.rec.Events()
	if len(evs) != 1 || evs[0].Type != event.TypeFailed {
		t.Errorf("events = %v", eventTypes(evs))
	}
}

func TestIngest_ReportIDResolvesDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	text := "Experian Credit Report\nwww.experian.com\n\nPERSONAL INFORMATION\nName: JANE DOE\n"
	if err := f.docs.Put(ctx, "doc-1", "user-1", text); err != nil {
		t.Fatalf("Put: %v", err)
	}
	run, err := f.svc.Ingest(ctx, Request{RunID: "run-doc", UserID: "user-1", Payload: json.RawMessage(`{"reportId":"doc-1"}`)})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if run.Source != entity.SourceText || run.ConfidenceScore == nil {
		t.Errorf("run = %+v", run)
	}
	raw, err := f.repo.LoadRaw(ctx, "run-doc")
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw.Payload, &env); err != nil || env.Text == nil || *env.Text != text {
		t.Errorf("stored payload = %s", raw.Payload)
	}
}

func TestRenormalize(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Ingest(ctx, Request{RunID: "run-r", UserID: "user-1", CollectedAt: &collected, DryRun: true}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	run, err := f.svc.Renormalize(ctx, "run-r", "user-1")
	if err != nil {
		t.Fatalf("Renormalize: %v", err)
	}
	if run.Source != entity.SourceDryRun || run.Status != entity.StatusCompleted || run.RowCounts.Scores != 3 {
		t.Errorf("run = %+v", run)
	}
	if _, err := f.svc.Renormalize(ctx, "run-r", "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user: err = %v", err)
	}
	if _, err := f.svc.Renormalize(ctx, "run-missing", "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run: err = %v", err)
	}
}

func TestCollectScrapeRun_UsesDefaultRobot(t *testing.T) {
	fs := &fakeScraper{lists: json.RawMessage(`{"Credit Score": ["Equifax 701", "Experian 698", "TransUnion 712"]}`)}
	f := newFixture(t, fs)
	run, err := f.svc.CollectScrapeRun(context.Background(), "", "run-s", "user-1")
	if err != nil {
		t.Fatalf("CollectScrapeRun: %v", err)
	}
	if fs.robot != "default-robot" {
		t.Errorf("robot = %q", fs.robot)
	}
	if run.Status != entity.StatusCompleted || run.Source != entity.SourceScrape || run.RowCounts.Scores != 3 {
		t.Errorf("run = %+v", run)
	}
}

func TestCollectScrapeRun_FailureCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()
	client := scrape.NewClient(scrape.Config{
		BaseURL:        srv.URL,
		APIKey:         "bad",
		RobotID:        "robot-1",
		PollInitial:    5 * time.Millisecond,
		PollMax:        10 * time.Millisecond,
		PollMultiplier: 1.5,
		Timeout:        200 * time.Millisecond,
		HTTPTimeout:    time.Second,
	}, nil, zap.NewNop().Sugar())

	f := newFixture(t, client)
	run, err := f.svc.CollectScrapeRun(context.Background(), "", "run-auth", "user-1")
	if CodeOf(err) != scrape.CodeBadCredentials {
		t.Fatalf("code = %q (%v)", CodeOf(err), err)
	}
	if run.Status != entity.StatusFailed || run.ErrorCode != scrape.CodeBadCredentials {
		t.Errorf("run = %+v", run)
	}
	if StatusFor(err) != http.StatusBadGateway {
		t.Errorf("http status = %d", StatusFor(err))
	}
	stored, err := f.repo.GetRun(context.Background(), "run-auth", "user-1")
	if err != nil || stored.Status != entity.StatusFailed {
		t.Errorf("stored = %+v, err = %v", stored, err)
	}
	evs := f.rec.Events()
	if len(evs) != 1 || evs[0].Type != event.TypeFailed || evs[0].ErrorCode != scrape.CodeBadCredentials {
		t.Errorf("events = %+v", evs)
	}
}

func TestCollectScrapeRun_NotConfigured(t *testing.T) {
	f := newFixture(t, nil)
	run, err := f.svc.CollectScrapeRun(context.Background(), "robot", "run-x", "user-1")
	if !errors.Is(err, scrape.ErrNotConfigured) || run.Status != entity.StatusFailed {
		t.Errorf("run = %+v, err = %v", run, err)
	}
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("boom"), ""},
		{ErrSchemaInvalid, CodeSchemaInvalid},
		{errors.Join(errors.New("x"), ErrDBUpsert), CodeDBUpsert},
		{scrape.ErrRunTimeout, scrape.CodeRunTimeout},
		{scrape.ErrDownload, scrape.CodeRunFailed},
	}
	for _, c := range cases {
		if got := CodeOf(c.err); got != c.want {
			t.Errorf("CodeOf(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
