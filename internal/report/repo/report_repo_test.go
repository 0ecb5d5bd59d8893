package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/canonical"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	r := NewRepo(db)
	ctx := context.Background()
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema must be repeatable: %v", err)
	}
	return r
}

func sampleReport(t *testing.T, runID string) *entity.CreditReport {
	t.Helper()
	res, err := canonical.Build(runID, "user-1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), canonical.SampleCapturedLists())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return res.Report
}

func TestRawRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	collected := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	rec := entity.RawRecord{RunID: "run-1", UserID: "user-1", CollectedAt: collected, Source: entity.SourceScrape, Payload: []byte(`{"capturedLists":{}}`)}
	if err := r.SaveRaw(ctx, rec); err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
	first, err := r.LoadRaw(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	if string(first.Payload) != `{"capturedLists":{}}` || !first.CollectedAt.Equal(collected) || first.Digest == "" {
		t.Errorf("raw = %+v", first)
	}

	rec.Payload = []byte(`{"text":"x"}`)
	rec.StoredAt = time.Now().Add(time.Hour)
	if err := r.SaveRaw(ctx, rec); err != nil {
		t.Fatalf("SaveRaw again: %v", err)
	}
	second, _ := r.LoadRaw(ctx, "run-1")
	if string(second.Payload) != `{"text":"x"}` {
		t.Errorf("payload not replaced: %s", second.Payload)
	}
	if !second.StoredAt.Equal(first.StoredAt) {
		t.Error("stored_at should keep the first write")
	}

	if _, err := r.LoadRaw(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceReport_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	conf := 80

	first, err := r.ReplaceReport(ctx, sampleReport(t, "run-1"), &conf)
	if err != nil {
		t.Fatalf("ReplaceReport: %v", err)
	}
	stored1, err := r.StoredCounts(ctx, "run-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	ids1 := accountIDs(t, r)

	second, err := r.ReplaceReport(ctx, sampleReport(t, "run-1"), &conf)
	if err != nil {
		t.Fatalf("ReplaceReport again: %v", err)
	}
	stored2, _ := r.StoredCounts(ctx, "run-1", "user-1")
	ids2 := accountIDs(t, r)

	if first != second || stored1 != stored2 {
		t.Errorf("counts differ: %+v/%+v stored %+v/%+v", first, second, stored1, stored2)
	}
	if stored2.Reports != 1 || stored2.Scores != 3 || stored2.Accounts != 3 {
		t.Errorf("stored = %+v", stored2)
	}
	if len(ids1) != len(ids2) {
		t.Fatalf("ids differ: %v vs %v", ids1, ids2)
	}
	for i := range ids1 {
		if ids1[i] != ids2[i] {
			t.Errorf("row id changed: %s -> %s", ids1[i], ids2[i])
		}
	}

	loaded, err := r.LoadReport(ctx, "run-1", "user-1")
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if len(loaded.Accounts.RealEstate) != 2 || loaded.Version != entity.SchemaVersion {
		t.Errorf("loaded = %+v", loaded.Accounts)
	}
}

func TestReplaceReport_ShrinksOnReingest(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if _, err := r.ReplaceReport(ctx, sampleReport(t, "run-1"), nil); err != nil {
		t.Fatal(err)
	}
	empty := entity.NewCreditReport("run-1", "user-1", time.Now())
	counts, err := r.ReplaceReport(ctx, empty, nil)
	if err != nil {
		t.Fatal(err)
	}
	if counts != (entity.RowCounts{}) {
		t.Errorf("counts = %+v, want all zero", counts)
	}
	stored, _ := r.StoredCounts(ctx, "run-1", "user-1")
	if stored != (entity.RowCounts{}) {
		t.Errorf("stale rows survived: %+v", stored)
	}
	if _, err := r.LoadReport(ctx, "run-1", "user-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadReport of an empty report: err = %v, want ErrNotFound", err)
	}
}

func TestReplaceReport_DuplicateScoresCollapse(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	rep := entity.NewCreditReport("run-2", "user-1", time.Now())
	a, b := 700, 705
	rep.Scores = []entity.Score{
		{Bureau: entity.BureauEquifax, Score: &a, Position: 1},
		{Bureau: entity.BureauEquifax, Score: &b, Position: 2},
	}
	if _, err := r.ReplaceReport(ctx, rep, nil); err != nil {
		t.Fatalf("ReplaceReport: %v", err)
	}
	stored, _ := r.StoredCounts(ctx, "run-2", "user-1")
	if stored.Scores != 1 {
		t.Errorf("scores = %d, want 1", stored.Scores)
	}
}

func TestRunLedger(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	run := entity.Run{RunID: "run-1", UserID: "user-1", Source: entity.SourceScrape, Status: entity.StatusProcessing, StartedAt: started}
	if err := r.MarkRun(ctx, run); err != nil {
		t.Fatalf("MarkRun: %v", err)
	}

	finished := started.Add(2 * time.Second)
	conf := 42
	run.Status = entity.StatusPartial
	run.MissingBureaus = []string{"transunion"}
	run.RowCounts = entity.RowCounts{Reports: 1, Scores: 2}
	run.ConfidenceScore = &conf
	run.FinishedAt = &finished
	if err := r.MarkRun(ctx, run); err != nil {
		t.Fatalf("MarkRun terminal: %v", err)
	}

	got, err := r.GetRun(ctx, "run-1", "user-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != entity.StatusPartial || len(got.MissingBureaus) != 1 || got.RowCounts.Scores != 2 {
		t.Errorf("run = %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) || !got.StartedAt.Equal(started) {
		t.Errorf("times = %v %v", got.StartedAt, got.FinishedAt)
	}
	if got.ConfidenceScore == nil || *got.ConfidenceScore != 42 {
		t.Errorf("confidence = %v", got.ConfidenceScore)
	}

	runs, err := r.ListRuns(ctx, "user-1", 10)
	if err != nil || len(runs) != 1 {
		t.Errorf("ListRuns = %v, %v", runs, err)
	}
	if _, err := r.GetRun(ctx, "run-1", "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func accountIDs(t *testing.T, r *Repo) []string {
	t.Helper()
	var ids []string
	if err := r.db.Select(&ids, "SELECT id FROM credit_accounts ORDER BY id"); err != nil {
		t.Fatal(err)
	}
	return ids
}
