// Package document supplies text already extracted from uploaded report
// documents. Extraction itself happens elsewhere.
package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrInvalidID = errors.New("invalid report id")
)

var reportIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Source returns the extracted text for a report id.
type Source interface {
	Text(ctx context.Context, reportID string) (string, error)
}

// DirSource reads <dir>/<reportID>.txt.
type DirSource struct {
	Dir string
}

func (s DirSource) Text(_ context.Context, reportID string) (string, error) {
	if !reportIDPattern.MatchString(reportID) {
		return "", ErrInvalidID
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, reportID+".txt"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read document %s: %w", reportID, err)
	}
	return string(b), nil
}

// DBSource stores extracted text in the report_documents table.
type DBSource struct {
	db *sqlx.DB
}

func NewDBSource(db *sqlx.DB) *DBSource {
	return &DBSource{db: db}
}

// EnsureTable creates report_documents if missing.
func (s *DBSource) EnsureTable(ctx context.Context) error {
	ts := "timestamptz"
	if s.db.DriverName() == database.DriverSQLite {
		ts = "TEXT"
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS report_documents (
		report_id varchar(128) PRIMARY KEY,
		user_id varchar(64) NOT NULL DEFAULT '',
		body text NOT NULL,
		extracted_at `+ts+` NOT NULL
	)`)
	return err
}

// Put stores or replaces the text of one report.
func (s *DBSource) Put(ctx context.Context, reportID, userID, text string) error {
	if !reportIDPattern.MatchString(reportID) {
		return ErrInvalidID
	}
	q := s.db.Rebind(`INSERT INTO report_documents (report_id, user_id, body, extracted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_id) DO UPDATE SET user_id = excluded.user_id, body = excluded.body, extracted_at = excluded.extracted_at`)
	_, err := s.db.ExecContext(ctx, q, reportID, userID, text, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *DBSource) Text(ctx context.Context, reportID string) (string, error) {
	var text string
	q := s.db.Rebind(`SELECT body FROM report_documents WHERE report_id = ?`)
	if err := s.db.GetContext(ctx, &text, q, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load document %s: %w", reportID, err)
	}
	return text, nil
}
