package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

// Repo is the repository implementation for settings.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing *sqlx.DB connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable ensures the settings table and its index exist.
// Fields:
// - id varchar(32) PRIMARY KEY
// - category varchar(32) (indexed)
// - metadata jsonb
func (r *Repo) EnsureTable(ctx context.Context) error {
	createTable := `CREATE TABLE IF NOT EXISTS settings (
		id varchar(32) PRIMARY KEY,
		category varchar(32) DEFAULT '',
		metadata jsonb DEFAULT '{}'::jsonb
	)`
	if r.db.DriverName() == database.DriverSQLite {
		createTable = `CREATE TABLE IF NOT EXISTS settings (
			id TEXT PRIMARY KEY,
			category TEXT DEFAULT '',
			metadata TEXT DEFAULT '{}'
		)`
	}
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_settings_category ON settings (category)`)
	return err
}

type settingRow struct {
	ID       string `db:"id"`
	Category string `db:"category"`
	Metadata string `db:"metadata"`
}

// GetByID returns one setting or sql.ErrNoRows.
func (r *Repo) GetByID(ctx context.Context, id string) (*entity.Setting, error) {
	var row settingRow
	q := r.db.Rebind(`SELECT id, category, metadata FROM settings WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return entity.NewSetting(row.ID, row.Category, []byte(row.Metadata)), nil
}

// Upsert writes a setting, replacing its metadata if it exists.
func (r *Repo) Upsert(ctx context.Context, s *entity.Setting) error {
	meta := string(s.Metadata)
	if meta == "" {
		meta = "{}"
	}
	q := r.db.Rebind(`INSERT INTO settings (id, category, metadata) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET category = excluded.category, metadata = excluded.metadata`)
	_, err := r.db.ExecContext(ctx, q, s.ID, s.Category, meta)
	return err
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
