package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

type runRow struct {
	RunID           string         `db:"run_id"`
	UserID          string         `db:"user_id"`
	Source          string         `db:"source"`
	Status          string         `db:"status"`
	RowCounts       string         `db:"row_counts"`
	MissingBureaus  string         `db:"missing_bureaus"`
	Warnings        string         `db:"warnings"`
	ErrorCode       string         `db:"error_code"`
	Error           string         `db:"error"`
	ConfidenceScore sql.NullInt64  `db:"confidence_score"`
	StartedAt       string         `db:"started_at"`
	FinishedAt      sql.NullString `db:"finished_at"`
}

// MarkRun writes the full ledger entry for (run.RunID, run.UserID).
func (r *Repo) MarkRun(ctx context.Context, run entity.Run) error {
	counts, _ := json.Marshal(run.RowCounts)
	missing, _ := json.Marshal(orEmpty(run.MissingBureaus))
	warnings, _ := json.Marshal(orEmpty(run.Warnings))
	var finished sql.NullString
	if run.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*run.FinishedAt), Valid: true}
	}
	q := r.db.Rebind(`INSERT INTO ingestion_runs (run_id, user_id, source, status, row_counts, missing_bureaus,
			warnings, error_code, error, confidence_score, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, user_id) DO UPDATE SET
			source = excluded.source,
			status = excluded.status,
			row_counts = excluded.row_counts,
			missing_bureaus = excluded.missing_bureaus,
			warnings = excluded.warnings,
			error_code = excluded.error_code,
			error = excluded.error,
			confidence_score = excluded.confidence_score,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`)
	_, err := r.db.ExecContext(ctx, q, run.RunID, run.UserID, run.Source, run.Status,
		string(counts), string(missing), string(warnings), run.ErrorCode, run.Error,
		nullInt(run.ConfidenceScore), formatTime(run.StartedAt), finished)
	if err != nil {
		return fmt.Errorf("mark run %s %s: %w", run.RunID, run.Status, err)
	}
	return nil
}

// GetRun returns the ledger entry for (runID, userID).
func (r *Repo) GetRun(ctx context.Context, runID, userID string) (*entity.Run, error) {
	var row runRow
	q := r.db.Rebind(`SELECT run_id, user_id, source, status, row_counts, missing_bureaus, warnings,
			error_code, error, confidence_score, started_at, finished_at
		FROM ingestion_runs WHERE run_id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &row, q, runID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return row.toEntity(), nil
}

// ListRuns returns the most recent runs of a user, newest first.
func (r *Repo) ListRuns(ctx context.Context, userID string, limit int) ([]entity.Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []runRow
	q := r.db.Rebind(`SELECT run_id, user_id, source, status, row_counts, missing_bureaus, warnings,
			error_code, error, confidence_score, started_at, finished_at
		FROM ingestion_runs WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, q, userID, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]entity.Run, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toEntity())
	}
	return out, nil
}

func (row runRow) toEntity() *entity.Run {
	run := &entity.Run{
		RunID:     row.RunID,
		UserID:    row.UserID,
		Source:    row.Source,
		Status:    row.Status,
		ErrorCode: row.ErrorCode,
		Error:     row.Error,
		StartedAt: parseTime(row.StartedAt),
	}
	_ = json.Unmarshal([]byte(row.RowCounts), &run.RowCounts)
	_ = json.Unmarshal([]byte(row.MissingBureaus), &run.MissingBureaus)
	_ = json.Unmarshal([]byte(row.Warnings), &run.Warnings)
	if row.ConfidenceScore.Valid {
		v := int(row.ConfidenceScore.Int64)
		run.ConfidenceScore = &v
	}
	if row.FinishedAt.Valid {
		t := parseTime(row.FinishedAt.String)
		run.FinishedAt = &t
	}
	return run
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
