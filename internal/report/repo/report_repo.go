package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/normalize"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/utilities"
)

var ErrNotFound = errors.New("not found")

// Repo persists raw payloads, canonical reports and the run ledger. Writes for
// one (run_id, user_id) must be serialised by the caller.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing *sqlx.DB connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// SaveRaw stores the inbound payload verbatim, keyed by run_id. A repeated
// save replaces the payload and keeps the first stored_at.
func (r *Repo) SaveRaw(ctx context.Context, rec entity.RawRecord) error {
	if rec.Digest == "" {
		rec.Digest = utilities.Digest(rec.Payload)
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now()
	}
	q := r.db.Rebind(`INSERT INTO credit_report_raw (run_id, user_id, collected_at, source, payload, digest, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			user_id = excluded.user_id,
			collected_at = excluded.collected_at,
			source = excluded.source,
			payload = excluded.payload,
			digest = excluded.digest`)
	_, err := r.db.ExecContext(ctx, q,
		rec.RunID, rec.UserID, formatTime(rec.CollectedAt), rec.Source,
		string(rec.Payload), rec.Digest, formatTime(rec.StoredAt))
	if err != nil {
		return fmt.Errorf("save raw %s: %w", rec.RunID, err)
	}
	return nil
}

type rawRow struct {
	RunID       string `db:"run_id"`
	UserID      string `db:"user_id"`
	CollectedAt string `db:"collected_at"`
	Source      string `db:"source"`
	Payload     string `db:"payload"`
	Digest      string `db:"digest"`
	StoredAt    string `db:"stored_at"`
}

// LoadRaw returns the stored payload for runID.
func (r *Repo) LoadRaw(ctx context.Context, runID string) (*entity.RawRecord, error) {
	var row rawRow
	q := r.db.Rebind(`SELECT run_id, user_id, collected_at, source, payload, digest, stored_at
		FROM credit_report_raw WHERE run_id = ?`)
	if err := r.db.GetContext(ctx, &row, q, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load raw %s: %w", runID, err)
	}
	return &entity.RawRecord{
		RunID:       row.RunID,
		UserID:      row.UserID,
		CollectedAt: parseTime(row.CollectedAt),
		Source:      row.Source,
		Payload:     []byte(row.Payload),
		Digest:      row.Digest,
		StoredAt:    parseTime(row.StoredAt),
	}, nil
}

// ReplaceReport deletes every normalized row of (run_id, user_id) and writes
// the report again in one transaction. Scores and accounts are upserted on
// their natural keys so duplicates inside one report collapse to one row.
func (r *Repo) ReplaceReport(ctx context.Context, report *entity.CreditReport, confidence *int) (entity.RowCounts, error) {
	doc, err := json.Marshal(report)
	if err != nil {
		return entity.RowCounts{}, fmt.Errorf("encode report: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.RowCounts{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"credit_scores", "credit_accounts", "credit_reports"} {
		q := tx.Rebind("DELETE FROM " + table + " WHERE run_id = ? AND user_id = ?")
		if _, err := tx.ExecContext(ctx, q, report.RunID, report.UserID); err != nil {
			return entity.RowCounts{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	// An empty report leaves no rows behind; the run ledger records the outcome.
	reports := 0
	if report.EntityCount() > 0 {
		q := tx.Rebind(`INSERT INTO credit_reports (run_id, user_id, collected_at, version, document, confidence_score)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, q, report.RunID, report.UserID, formatTime(report.CollectedAt),
			report.Version, string(doc), nullInt(confidence)); err != nil {
			return entity.RowCounts{}, fmt.Errorf("insert report: %w", err)
		}
		reports = 1
	}

	for _, s := range report.Scores {
		if err := upsertScore(ctx, tx, report, s); err != nil {
			return entity.RowCounts{}, err
		}
	}
	accounts := report.Accounts.All()
	for _, a := range accounts {
		if err := upsertAccount(ctx, tx, report, a); err != nil {
			return entity.RowCounts{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return entity.RowCounts{}, fmt.Errorf("commit: %w", err)
	}
	return entity.RowCounts{
		Reports:  reports,
		Scores:   len(report.Scores),
		Accounts: len(accounts),
		Entities: report.EntityCount() - len(report.Scores) - len(accounts),
	}, nil
}

func upsertScore(ctx context.Context, tx *sqlx.Tx, report *entity.CreditReport, s entity.Score) error {
	q := tx.Rebind(`INSERT INTO credit_scores (id, run_id, user_id, bureau, score, status, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, bureau, run_id) DO UPDATE SET
			score = excluded.score,
			status = excluded.status,
			position = excluded.position`)
	id := utilities.KeyID(report.UserID, s.Bureau, report.RunID)
	if _, err := tx.ExecContext(ctx, q, id, report.RunID, report.UserID, s.Bureau,
		nullInt(s.Score), s.Status, s.Position); err != nil {
		return fmt.Errorf("upsert score %s: %w", s.Bureau, err)
	}
	return nil
}

func upsertAccount(ctx context.Context, tx *sqlx.Tx, report *entity.CreditReport, a entity.Account) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	openedKey := normalize.ISODate(a.OpenedOn)
	id := utilities.KeyID(report.UserID, a.Creditor, a.AccountNumberMask, a.Bureau, openedKey, a.Category)
	q := tx.Rebind(`INSERT INTO credit_accounts (id, run_id, user_id, category, bureau, creditor,
			account_number_mask, opened_key, opened_on, reported_on, closed_on, last_activity_on,
			balance, high_balance, credit_limit, past_due, account_status, payment_status,
			negative, position, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, creditor, account_number_mask, bureau, opened_key, category) DO UPDATE SET
			run_id = excluded.run_id,
			opened_on = excluded.opened_on,
			reported_on = excluded.reported_on,
			closed_on = excluded.closed_on,
			last_activity_on = excluded.last_activity_on,
			balance = excluded.balance,
			high_balance = excluded.high_balance,
			credit_limit = excluded.credit_limit,
			past_due = excluded.past_due,
			account_status = excluded.account_status,
			payment_status = excluded.payment_status,
			negative = excluded.negative,
			position = excluded.position,
			document = excluded.document`)
	_, err = tx.ExecContext(ctx, q,
		id, report.RunID, report.UserID, a.Category, a.Bureau, a.Creditor,
		a.AccountNumberMask, openedKey, nullDate(a.OpenedOn), nullDate(a.ReportedOn), nullDate(a.ClosedOn), nullDate(a.LastActivityOn),
		nullFloat(a.Balance), nullFloat(a.HighBalance), nullFloat(a.CreditLimit), nullFloat(a.PastDue),
		a.AccountStatus, a.PaymentStatus, a.Negative, a.Position, string(doc))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.Creditor, err)
	}
	return nil
}

// LoadReport returns the stored canonical document.
func (r *Repo) LoadReport(ctx context.Context, runID, userID string) (*entity.CreditReport, error) {
	var doc string
	q := r.db.Rebind(`SELECT document FROM credit_reports WHERE run_id = ? AND user_id = ?`)
	if err := r.db.GetContext(ctx, &doc, q, runID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load report %s: %w", runID, err)
	}
	var report entity.CreditReport
	if err := json.Unmarshal([]byte(doc), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &report, nil
}

// StoredCounts counts the normalized rows currently held for (runID, userID).
func (r *Repo) StoredCounts(ctx context.Context, runID, userID string) (entity.RowCounts, error) {
	var c entity.RowCounts
	for _, t := range []struct {
		table string
		dst   *int
	}{
		{"credit_reports", &c.Reports},
		{"credit_scores", &c.Scores},
		{"credit_accounts", &c.Accounts},
	} {
		q := r.db.Rebind("SELECT COUNT(*) FROM " + t.table + " WHERE run_id = ? AND user_id = ?")
		if err := r.db.GetContext(ctx, t.dst, q, runID, userID); err != nil {
			return c, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: normalize.ISODate(t), Valid: true}
}
