package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/event"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/ingest"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/setting"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	r := repo.NewRepo(db)
	if err := r.EnsureSchema(t.Context()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	logger := zap.NewNop().Sugar()
	svc := ingest.NewService(r, nil, nil, &event.Recorder{}, logger, ingest.Config{})
	cfg := scrape.DefaultConfig()
	cfg.APIKey = "secret"
	return RegisterRoutes(logger, Handlers{
		Ingest:   ingest.NewHandler(svc, logger),
		Settings: setting.NewHandler(logger, cfg),
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndHeaders(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/credit-report-api/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestIngestThenReadBack(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/credit-report-api/ingestions", `{"runId":"run-1","userId":"user-1","dryRun":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest = %d %s", rec.Code, rec.Body.String())
	}
	var run struct {
		Status    string `json:"status"`
		RowCounts struct {
			Scores int `json:"scores"`
		} `json:"rowCounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.Status != "completed" || run.RowCounts.Scores != 3 {
		t.Errorf("run = %+v", run)
	}

	if rec := do(t, h, http.MethodGet, "/credit-report-api/runs/run-1?userId=user-1", ""); rec.Code != http.StatusOK {
		t.Errorf("get run = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/credit-report-api/reports/run-1?userId=user-1", ""); rec.Code != http.StatusOK {
		t.Errorf("get report = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/credit-report-api/runs/run-1?userId=other", ""); rec.Code != http.StatusNotFound {
		t.Errorf("other user run = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/credit-report-api/ingestions/run-1/renormalize?userId=user-1", ""); rec.Code != http.StatusOK {
		t.Errorf("renormalize = %d %s", rec.Code, rec.Body.String())
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/credit-report-api/ingestions", `{"runId":"r","userId":"u","payload":{"foo":1}}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), ingest.CodeSchemaInvalid) {
		t.Errorf("invalid payload = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/credit-report-api/ingestions", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", rec.Code)
	}
}

func TestParseEndpoint(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/credit-report-api/parse", `{"text":"TransUnion Credit Report\nwww.transunion.com\n"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("parse = %d", rec.Code)
	}
	var res struct {
		Bureau struct {
			Name string `json:"name"`
		} `json:"bureau"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Bureau.Name != "TransUnion" {
		t.Errorf("bureau = %q", res.Bureau.Name)
	}
}

func TestScrapeSettingsHidesKey(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/credit-report-api/settings/scrape", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("settings = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret") || !strings.Contains(rec.Body.String(), `"apiKeySet":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsAndUnknownRoute(t *testing.T) {
	h := newTestServer(t)
	if rec := do(t, h, http.MethodGet, "/credit-report-api/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/credit-report-api/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown = %d", rec.Code)
	}
}
